package transform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/repolens/internal/core"
)

// ErrIncompleteRepository marks a repository missing an identifying field.
var ErrIncompleteRepository = errors.New("incomplete repository")

// Project maps API metadata onto the stored project row.
func Project(repo *core.Repository, extractedAt time.Time) (*core.Project, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", ErrIncompleteRepository)
	}

	var missing []string
	if strings.TrimSpace(repo.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(repo.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(repo.Owner.Login) == "" {
		missing = append(missing, "owner")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteRepository, strings.Join(missing, ", "))
	}

	project := &core.Project{
		ID:              repo.ID,
		Name:            repo.Name,
		OwnerLogin:      repo.Owner.Login,
		Description:     repo.Description,
		StargazerCount:  repo.StargazerCount,
		ForkCount:       repo.ForkCount,
		PrimaryLanguage: nodeName(repo.PrimaryLanguage),
		CreatedAt:       utc(repo.CreatedAt),
		PushedAt:        utc(repo.PushedAt),
		LicenseName:     nodeName(repo.LicenseInfo),
		IsArchived:      repo.IsArchived,
		IsDisabled:      repo.IsDisabled,
		IsFork:          repo.IsFork,
		URL:             repo.URL,
		LastExtractedAt: extractedAt.UTC(),
		Topics:          dedupe(repo.Topics.Names()),
	}
	return project, nil
}

func nodeName(node *core.NamedNode) *string {
	if node == nil || node.Name == "" {
		return nil
	}
	name := node.Name
	return &name
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := t.UTC()
	return &value
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
