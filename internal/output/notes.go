package output

import (
	"strings"
	"time"

	"github.com/namelens/repolens/internal/core"
)

const maxTopics = 5

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func stringOrDash(value *string) string {
	if value == nil {
		return "-"
	}
	return valueOrDash(*value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02 15:04:05")
}

func timeOrDash(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func projectFlags(p core.Project) string {
	var flags []string
	if p.IsArchived {
		flags = append(flags, "archived")
	}
	if p.IsDisabled {
		flags = append(flags, "disabled")
	}
	if p.IsFork {
		flags = append(flags, "fork")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func joinTopics(topics []string) string {
	if len(topics) == 0 {
		return "-"
	}
	if len(topics) <= maxTopics {
		return strings.Join(topics, ", ")
	}
	return strings.Join(topics[:maxTopics], ", ") + ", ..."
}
