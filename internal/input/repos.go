// Package input reads the repository lists an extraction run works through.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/core"
)

// Required CSV header columns.
var requiredColumns = []string{"name", "num_downloads", "owners_and_repo"}

const repoColumn = "owners_and_repo"

// ParseRepositoryRef parses "owner/name". Only the first slash separates the
// two parts.
func ParseRepositoryRef(value string) (core.RepositoryRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(value), "/")
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if !ok || owner == "" || name == "" {
		return core.RepositoryRef{}, fmt.Errorf("invalid repository %q: expected owner/name", value)
	}
	return core.RepositoryRef{Owner: owner, Name: name}, nil
}

// Reader parses repository CSV files.
type Reader struct {
	Logger *zap.Logger
}

// ReadRepositoriesFile opens path and reads it with ReadRepositories.
func (r *Reader) ReadRepositoriesFile(path string) ([]core.RepositoryRef, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file

	return r.ReadRepositories(file)
}

// ReadRepositories parses a CSV with the header columns name, num_downloads
// and owners_and_repo. Rows with a malformed owners_and_repo value are
// skipped with a warning; duplicates keep their first position.
func (r *Reader) ReadRepositories(src io.Reader) ([]core.RepositoryRef, error) {
	logger := r.logger()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("repository list is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF")))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("repository list must contain columns %s (missing %s)",
			strings.Join(requiredColumns, ", "), strings.Join(missing, ", "))
	}
	repoIdx := columns[repoColumn]

	seen := make(map[string]struct{})
	refs := make([]core.RepositoryRef, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read repository list: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if repoIdx >= len(record) {
			logger.Warn("Skipping row without owners_and_repo", zap.Int("line", line))
			continue
		}

		ref, err := ParseRepositoryRef(record[repoIdx])
		if err != nil {
			logger.Warn("Skipping row with invalid owners_and_repo",
				zap.Int("line", line),
				zap.String("value", record[repoIdx]))
			continue
		}

		key := strings.ToLower(ref.String())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, ref)
	}

	logger.Info("Loaded repository list", zap.Int("repositories", len(refs)))
	return refs, nil
}

func (r *Reader) logger() *zap.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
