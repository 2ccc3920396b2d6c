package core

import "time"

// RepositoryRef identifies a repository by owner and name.
type RepositoryRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the owner/name form of the reference.
func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// Repository is the repository metadata returned by the GraphQL API.
type Repository struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Owner           Owner         `json:"owner"`
	Description     *string       `json:"description"`
	StargazerCount  int           `json:"stargazerCount"`
	ForkCount       int           `json:"forkCount"`
	PrimaryLanguage *NamedNode    `json:"primaryLanguage"`
	CreatedAt       *time.Time    `json:"createdAt"`
	PushedAt        *time.Time    `json:"pushedAt"`
	LicenseInfo     *NamedNode    `json:"licenseInfo"`
	IsArchived      bool          `json:"isArchived"`
	IsDisabled      bool          `json:"isDisabled"`
	IsFork          bool          `json:"isFork"`
	URL             string        `json:"url"`
	Topics          TopicLinkList `json:"repositoryTopics"`
}

// Owner is the login of the repository owner.
type Owner struct {
	Login string `json:"login"`
}

// NamedNode is a GraphQL object carrying only a name.
type NamedNode struct {
	Name string `json:"name"`
}

// TopicLinkList mirrors the repositoryTopics connection.
type TopicLinkList struct {
	Nodes []TopicLink `json:"nodes"`
}

// TopicLink is one node of the repositoryTopics connection.
type TopicLink struct {
	Topic NamedNode `json:"topic"`
}

// Names flattens the connection into topic names.
func (l TopicLinkList) Names() []string {
	if len(l.Nodes) == 0 {
		return nil
	}
	names := make([]string, 0, len(l.Nodes))
	for _, node := range l.Nodes {
		if node.Topic.Name == "" {
			continue
		}
		names = append(names, node.Topic.Name)
	}
	return names
}

// Project is the normalized row stored in the projects table.
type Project struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	OwnerLogin      string     `json:"owner_login"`
	Description     *string    `json:"description,omitempty"`
	StargazerCount  int        `json:"stargazer_count"`
	ForkCount       int        `json:"fork_count"`
	PrimaryLanguage *string    `json:"primary_language,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	PushedAt        *time.Time `json:"pushed_at,omitempty"`
	LicenseName     *string    `json:"license_name,omitempty"`
	IsArchived      bool       `json:"is_archived"`
	IsDisabled      bool       `json:"is_disabled"`
	IsFork          bool       `json:"is_fork"`
	URL             string     `json:"url"`
	LastExtractedAt time.Time  `json:"last_extracted_at"`
	Topics          []string   `json:"topics,omitempty"`
}

// RepositoryStatus is the per-repository outcome of an extraction run.
type RepositoryStatus string

const (
	StatusLoaded  RepositoryStatus = "loaded"
	StatusSkipped RepositoryStatus = "skipped"
	StatusFailed  RepositoryStatus = "failed"
)

// RunSummary captures the outcome of one extraction run.
type RunSummary struct {
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Loaded     int       `json:"loaded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Failures   []string  `json:"failures,omitempty"`
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s == nil || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
