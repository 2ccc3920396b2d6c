package output

import "github.com/namelens/repolens/internal/core"

// MarkdownFormatter renders the same tables as TableFormatter in GitHub
// flavored markdown, for pasting into issues and reports.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatRun(run *core.RunSummary) (string, error) {
	if run == nil {
		return "", nil
	}
	rendered := "## Extraction run\n\n" + runTable(run).RenderMarkdown()
	if failures := failureTable(run); failures != nil {
		rendered += "\n\n### Failures\n\n" + failures.RenderMarkdown()
	}
	return rendered, nil
}

func (f *MarkdownFormatter) FormatRuns(runs []core.RunSummary) (string, error) {
	return runsTable(runs).RenderMarkdown(), nil
}

func (f *MarkdownFormatter) FormatProjects(projects []core.Project) (string, error) {
	return projectsTable(projects).RenderMarkdown(), nil
}

func (f *MarkdownFormatter) FormatQuota(records []core.QuotaRecord) (string, error) {
	return quotaTable(records).RenderMarkdown(), nil
}
