package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/repolens/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

// addOutputFlags registers --output-format and --out on cmd.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// openCommandSink opens the --out target, falling back to the command's stdout.
func openCommandSink(cmd *cobra.Command) (*outputSink, error) {
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return nil, err
	}
	outPath = strings.TrimSpace(outPath)
	if outPath == "" || outPath == "-" {
		return &outputSink{writer: cmd.OutOrStdout(), close: func() error { return nil }, path: "-"}, nil
	}
	return openSink(outPath)
}

func openSink(path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: os.Stdout, close: func() error { return nil }, path: "-"}, nil
	}

	// #nosec G301 -- output directories use 0755 like the data directory
	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	// #nosec G304 -- path comes from the --out flag
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

// render writes one formatted value followed by a newline.
func render(cmd *cobra.Command, format func(output.Formatter) (string, error)) error {
	outFormat, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	rendered, err := format(output.NewFormatter(outFormat))
	if err != nil {
		return err
	}

	sink, err := openCommandSink(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	if strings.TrimSpace(rendered) == "" {
		return nil
	}
	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}
