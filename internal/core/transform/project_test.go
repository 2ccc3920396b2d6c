package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/namelens/repolens/internal/core"
)

func TestProjectRenamesFields(t *testing.T) {
	desc := "HTTP for humans"
	created := time.Date(2011, 2, 13, 18, 38, 17, 0, time.FixedZone("CET", 3600))
	extracted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &core.Repository{
		ID:              "R_1",
		Name:            "requests",
		Owner:           core.Owner{Login: "psf"},
		Description:     &desc,
		StargazerCount:  10,
		ForkCount:       2,
		PrimaryLanguage: &core.NamedNode{Name: "Python"},
		CreatedAt:       &created,
		LicenseInfo:     &core.NamedNode{Name: "Apache License 2.0"},
		IsFork:          true,
		URL:             "https://github.com/psf/requests",
	}
	repo.Topics.Nodes = []core.TopicLink{
		{Topic: core.NamedNode{Name: "http"}},
		{Topic: core.NamedNode{Name: "http"}},
	}

	project, err := Project(repo, extracted)
	require.NoError(t, err)
	require.Equal(t, "R_1", project.ID)
	require.Equal(t, "psf", project.OwnerLogin)
	require.Equal(t, &desc, project.Description)
	require.Equal(t, "Python", *project.PrimaryLanguage)
	require.Equal(t, "Apache License 2.0", *project.LicenseName)
	require.Equal(t, time.UTC, project.CreatedAt.Location())
	require.True(t, created.Equal(*project.CreatedAt))
	require.Nil(t, project.PushedAt)
	require.True(t, project.IsFork)
	require.Equal(t, extracted, project.LastExtractedAt)
	require.Equal(t, []string{"http"}, project.Topics)
}

func TestProjectOptionalFieldsStayNil(t *testing.T) {
	repo := &core.Repository{ID: "R_2", Name: "empty", Owner: core.Owner{Login: "someone"}}

	project, err := Project(repo, time.Now())
	require.NoError(t, err)
	require.Nil(t, project.Description)
	require.Nil(t, project.PrimaryLanguage)
	require.Nil(t, project.LicenseName)
	require.Nil(t, project.Topics)
}

func TestProjectRejectsIncompleteRepository(t *testing.T) {
	_, err := Project(nil, time.Now())
	require.ErrorIs(t, err, ErrIncompleteRepository)

	_, err = Project(&core.Repository{Name: "x"}, time.Now())
	require.ErrorIs(t, err, ErrIncompleteRepository)
	require.Contains(t, err.Error(), "id")
	require.Contains(t, err.Error(), "owner")
}
