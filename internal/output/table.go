package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/namelens/repolens/internal/core"
)

// maxFailureRows caps how many failed repositories a run summary lists.
const maxFailureRows = 20

// TableFormatter renders results as rounded ASCII tables.
type TableFormatter struct{}

func (f *TableFormatter) FormatRun(run *core.RunSummary) (string, error) {
	if run == nil {
		return "", nil
	}
	rendered := runTable(run).Render()
	if failures := failureTable(run); failures != nil {
		rendered += "\n\n" + failures.Render()
	}
	return rendered, nil
}

func (f *TableFormatter) FormatRuns(runs []core.RunSummary) (string, error) {
	return runsTable(runs).Render(), nil
}

func (f *TableFormatter) FormatProjects(projects []core.Project) (string, error) {
	return projectsTable(projects).Render(), nil
}

func (f *TableFormatter) FormatQuota(records []core.QuotaRecord) (string, error) {
	return quotaTable(records).Render(), nil
}

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	return t
}

func runTable(run *core.RunSummary) table.Writer {
	t := newTable(table.Row{"Run", "Source", "Started", "Duration", "Total", "Loaded", "Skipped", "Failed"})
	t.AppendRow(runRow(*run, true))
	return t
}

func runsTable(runs []core.RunSummary) table.Writer {
	t := newTable(table.Row{"Run", "Source", "Started", "Duration", "Total", "Loaded", "Skipped", "Failed"})
	var loaded, failed int
	for _, run := range runs {
		t.AppendRow(runRow(run, false))
		loaded += run.Loaded
		failed += run.Failed
	}
	if len(runs) > 0 {
		t.AppendFooter(table.Row{fmt.Sprintf("%d runs", len(runs)), "", "", "", "", loaded, "", failed})
	}
	return t
}

func runRow(run core.RunSummary, fullID bool) table.Row {
	id := run.ID
	if !fullID {
		id = shortID(id)
	}
	return table.Row{
		id,
		valueOrDash(run.Source),
		formatTime(run.StartedAt),
		formatDuration(run.Duration()),
		run.Total,
		run.Loaded,
		run.Skipped,
		run.Failed,
	}
}

func failureTable(run *core.RunSummary) table.Writer {
	if len(run.Failures) == 0 {
		return nil
	}
	t := newTable(table.Row{"Failed repository"})
	for i, name := range run.Failures {
		if i == maxFailureRows {
			t.AppendFooter(table.Row{fmt.Sprintf("... and %d more", len(run.Failures)-maxFailureRows)})
			break
		}
		t.AppendRow(table.Row{name})
	}
	return t
}

func projectsTable(projects []core.Project) table.Writer {
	t := newTable(table.Row{"Repository", "Stars", "Forks", "Language", "License", "Pushed", "Flags", "Topics"})
	for _, p := range projects {
		t.AppendRow(table.Row{
			p.OwnerLogin + "/" + p.Name,
			p.StargazerCount,
			p.ForkCount,
			stringOrDash(p.PrimaryLanguage),
			stringOrDash(p.LicenseName),
			timeOrDash(p.PushedAt),
			projectFlags(p),
			joinTopics(p.Topics),
		})
	}
	return t
}

func quotaTable(records []core.QuotaRecord) table.Writer {
	t := newTable(table.Row{"Slot", "Remaining", "Limit", "Cost", "Resets", "Observed"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.Slot,
			r.Snapshot.Remaining,
			r.Snapshot.Limit,
			r.Snapshot.Cost,
			formatTime(r.Snapshot.ResetAt),
			formatTime(r.ObservedAt),
		})
	}
	return t
}
