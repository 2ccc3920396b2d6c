package output

import (
	"encoding/json"

	"github.com/namelens/repolens/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatRun(run *core.RunSummary) (string, error) {
	if run == nil {
		return "", nil
	}
	return f.marshal(run)
}

func (f *JSONFormatter) FormatRuns(runs []core.RunSummary) (string, error) {
	if runs == nil {
		runs = []core.RunSummary{}
	}
	return f.marshal(runs)
}

func (f *JSONFormatter) FormatProjects(projects []core.Project) (string, error) {
	if projects == nil {
		projects = []core.Project{}
	}
	return f.marshal(projects)
}

func (f *JSONFormatter) FormatQuota(records []core.QuotaRecord) (string, error) {
	if records == nil {
		records = []core.QuotaRecord{}
	}
	return f.marshal(records)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
