// Package models - Subsidy program management.
// This file defines program metadata, category support, and form schema versions.
//
// Design Decisions:
// - ID serves as unique identifier and is used in API URLs (must be URL-safe)
// - Categories array supports programs spanning several business areas
// - Form schemas are versioned with semantic versions; drafts record the
//   version they were created against so later schema changes never mutate
//   an in-progress draft
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Program category constants. Lowercase naming ensures consistent URL and
// storage key naming.
const (
	CategoryITAdoption    = "it-adoption"    // IT導入補助金-style programs
	CategoryManufacturing = "manufacturing"  // ものづくり補助金-style programs
	CategoryRestructuring = "restructuring"  // 事業再構築補助金-style programs
	CategorySustainment   = "sustainment"    // 持続化補助金-style programs
	CategoryExport        = "export"         // Overseas expansion support
)

var SupportedCategories = []string{
	CategoryITAdoption,
	CategoryManufacturing,
	CategoryRestructuring,
	CategorySustainment,
	CategoryExport,
}

// Program represents a government subsidy program that drafts can target.
type Program struct {
	ID           string        `json:"id" validate:"required"`               // Unique program identifier (URL-safe)
	Name         string        `json:"name" validate:"required"`             // Human-readable program name
	Agency       string        `json:"agency"`                               // Administering agency
	Description  string        `json:"description"`                          // Optional program description
	Categories   []string      `json:"categories" validate:"required,min=1"` // Business areas covered
	MaxAwardYen  int64         `json:"max_award_yen"`                        // Upper bound of the award, 0 = unspecified
	SubsidyRate  string        `json:"subsidy_rate,omitempty"`               // e.g. "2/3" - display only
	AcceptFrom   *time.Time    `json:"accept_from,omitempty"`                // Start of the acceptance window
	AcceptUntil  *time.Time    `json:"accept_until,omitempty"`               // End of the acceptance window
	FormVersions []FormVersion `json:"form_versions"`                        // Published form schema versions
	CreatedAt    string        `json:"created_at,omitempty"`                 // RFC3339
	UpdatedAt    string        `json:"updated_at,omitempty"`
}

// FormVersion is one published revision of a program's application form schema.
type FormVersion struct {
	Version     string    `json:"version"` // Semantic version, e.g. "2.1.0"
	Notes       string    `json:"notes,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewProgram creates a Program with an initial 1.0.0 form version.
func NewProgram(id, name string, categories []string) *Program {
	return &Program{
		ID:         id,
		Name:       name,
		Categories: categories,
		FormVersions: []FormVersion{
			{Version: "1.0.0", PublishedAt: time.Now().UTC()},
		},
	}
}

func (p *Program) Validate() error {
	if p.ID == "" {
		return errors.New("program ID cannot be empty")
	}

	if !isValidID(p.ID) {
		return errors.New("program ID must contain only alphanumeric characters, hyphens, and underscores")
	}

	if p.Name == "" {
		return errors.New("program name cannot be empty")
	}

	if len(p.Categories) == 0 {
		return errors.New("at least one category must be specified")
	}

	for _, category := range p.Categories {
		if !isValidCategory(category) {
			return fmt.Errorf("invalid category: %s", category)
		}
	}

	if p.AcceptFrom != nil && p.AcceptUntil != nil && p.AcceptUntil.Before(*p.AcceptFrom) {
		return errors.New("acceptance window end precedes its start")
	}

	for _, fv := range p.FormVersions {
		if _, err := semver.NewVersion(fv.Version); err != nil {
			return fmt.Errorf("invalid form version %q: %w", fv.Version, err)
		}
	}

	return nil
}

// LatestFormVersion returns the greatest published form version by semantic
// version ordering, or "" when none are published.
func (p *Program) LatestFormVersion() string {
	var latest *semver.Version
	var latestStr string
	for _, fv := range p.FormVersions {
		v, err := semver.NewVersion(fv.Version)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
			latestStr = fv.Version
		}
	}
	return latestStr
}

// HasFormVersion reports whether the given form version is published.
func (p *Program) HasFormVersion(version string) bool {
	for _, fv := range p.FormVersions {
		if fv.Version == version {
			return true
		}
	}
	return false
}

// AcceptsAt reports whether the program accepts applications at the given time.
// An unset window boundary is treated as open-ended.
func (p *Program) AcceptsAt(t time.Time) bool {
	if p.AcceptFrom != nil && t.Before(*p.AcceptFrom) {
		return false
	}
	if p.AcceptUntil != nil && t.After(*p.AcceptUntil) {
		return false
	}
	return true
}

// MatchesQuery reports whether the program matches a free-text search query.
// Matching is case-insensitive over id, name, agency, and categories.
func (p *Program) MatchesQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.ID), q) ||
		strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Agency), q) ||
		strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, c := range p.Categories {
		if strings.Contains(c, q) {
			return true
		}
	}
	return false
}

var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func isValidID(id string) bool {
	return validIDPattern.MatchString(id)
}

func isValidCategory(category string) bool {
	for _, c := range SupportedCategories {
		if c == category {
			return true
		}
	}
	return false
}
