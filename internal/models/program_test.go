package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grantdesk/internal/models"
)

func TestNewProgram(t *testing.T) {
	p := models.NewProgram("it-donyu-2026", "IT導入補助金 2026", []string{models.CategoryITAdoption})

	assert.Equal(t, "it-donyu-2026", p.ID)
	assert.Equal(t, "IT導入補助金 2026", p.Name)
	assert.Equal(t, "1.0.0", p.LatestFormVersion(), "new programs start at form version 1.0.0")
	assert.NoError(t, p.Validate())
}

func TestProgramValidate(t *testing.T) {
	base := func() *models.Program {
		return models.NewProgram("valid-id", "Valid", []string{models.CategorySustainment})
	}

	tests := []struct {
		name    string
		mutate  func(*models.Program)
		wantErr string
	}{
		{"valid", func(p *models.Program) {}, ""},
		{"empty id", func(p *models.Program) { p.ID = "" }, "program ID cannot be empty"},
		{"bad id chars", func(p *models.Program) { p.ID = "it/donyu" }, "alphanumeric"},
		{"empty name", func(p *models.Program) { p.Name = "" }, "program name cannot be empty"},
		{"no categories", func(p *models.Program) { p.Categories = nil }, "at least one category"},
		{"unknown category", func(p *models.Program) { p.Categories = []string{"space-travel"} }, "invalid category"},
		{"bad form version", func(p *models.Program) {
			p.FormVersions = []models.FormVersion{{Version: "not-semver"}}
		}, "invalid form version"},
		{"inverted window", func(p *models.Program) {
			from := time.Now()
			until := from.Add(-time.Hour)
			p.AcceptFrom = &from
			p.AcceptUntil = &until
		}, "window end precedes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestLatestFormVersionUsesSemanticOrdering(t *testing.T) {
	p := models.NewProgram("p", "P", []string{models.CategoryExport})
	p.FormVersions = []models.FormVersion{
		{Version: "1.2.0"},
		{Version: "1.10.0"},
		{Version: "1.9.3"},
	}

	// 1.10.0 > 1.9.3 > 1.2.0 numerically, not lexically
	assert.Equal(t, "1.10.0", p.LatestFormVersion())

	p.FormVersions = nil
	assert.Equal(t, "", p.LatestFormVersion())
}

func TestHasFormVersion(t *testing.T) {
	p := models.NewProgram("p", "P", []string{models.CategoryExport})
	assert.True(t, p.HasFormVersion("1.0.0"))
	assert.False(t, p.HasFormVersion("2.0.0"))
}

func TestAcceptsAt(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	p := models.NewProgram("p", "P", []string{models.CategoryExport})

	// Open-ended window accepts any time
	assert.True(t, p.AcceptsAt(now))

	p.AcceptFrom = &future
	assert.False(t, p.AcceptsAt(now), "window has not opened yet")

	p.AcceptFrom = &past
	p.AcceptUntil = &future
	assert.True(t, p.AcceptsAt(now))

	p.AcceptUntil = &past
	p.AcceptFrom = nil
	assert.False(t, p.AcceptsAt(now), "window has closed")
}

func TestMatchesQuery(t *testing.T) {
	p := models.NewProgram("it-donyu-2026", "IT導入補助金 2026", []string{models.CategoryITAdoption})
	p.Agency = "METI"
	p.Description = "Software adoption subsidy for SMBs"

	assert.True(t, p.MatchesQuery(""), "empty query matches everything")
	assert.True(t, p.MatchesQuery("IT導入"))
	assert.True(t, p.MatchesQuery("meti"), "matching is case-insensitive")
	assert.True(t, p.MatchesQuery("it-adoption"), "categories are searchable")
	assert.True(t, p.MatchesQuery("smb"))
	assert.False(t, p.MatchesQuery("manufacturing"))
}
