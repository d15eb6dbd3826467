// Package models - Subsidy application drafts.
// This file defines the draft lifecycle, plan content, and budget structures.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Application status constants. A draft moves draft → submitted exactly once;
// submitted drafts are immutable through the public API.
const (
	ApplicationStatusDraft     = "draft"
	ApplicationStatusSubmitted = "submitted"
)

// Application represents one subsidy application draft owned by an API key.
type Application struct {
	ID              string       `json:"id"`                    // UUID assigned on creation
	ProgramID       string       `json:"program_id"`            // Target subsidy program
	FormVersion     string       `json:"form_version"`          // Program form schema the draft was created against
	CompanyName     string       `json:"company_name"`          // Applicant company
	CorporateNumber string       `json:"corporate_number"`      // 13-digit houjin bangou
	ContactEmail    string       `json:"contact_email"`
	Status          string       `json:"status"`                // draft or submitted
	Plan            PlanContent  `json:"plan"`                  // Business plan sections
	Budget          []BudgetItem `json:"budget,omitempty"`      // Requested cost breakdown
	OwnerKeyID      string       `json:"owner_key_id"`          // API key that created the draft
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	SubmittedAt     *time.Time   `json:"submitted_at,omitempty"`
}

// PlanContent holds the narrative sections of a draft.
type PlanContent struct {
	Summary    string `json:"summary,omitempty"`    // One-paragraph overview
	Background string `json:"background,omitempty"` // Current situation and motivation
	Initiative string `json:"initiative,omitempty"` // What the subsidy will fund
	Effect     string `json:"effect,omitempty"`     // Expected business effect
	KPIs       []KPI  `json:"kpis,omitempty"`       // Measurable targets
}

// KPI is one measurable target committed to in the plan.
type KPI struct {
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
	Due    string  `json:"due,omitempty"` // e.g. "FY2027"
}

// BudgetItem is one requested cost line.
type BudgetItem struct {
	Label     string `json:"label"`
	AmountYen int64  `json:"amount_yen"`
}

// NewApplication creates a draft in the initial state with a fresh UUID.
func NewApplication(programID, formVersion, ownerKeyID string) *Application {
	now := time.Now().UTC()
	return &Application{
		ID:          uuid.New().String(),
		ProgramID:   programID,
		FormVersion: formVersion,
		Status:      ApplicationStatusDraft,
		OwnerKeyID:  ownerKeyID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var corporateNumberPattern = regexp.MustCompile(`^[0-9]{13}$`)

func (a *Application) Validate() error {
	if a.ID == "" {
		return errors.New("application ID cannot be empty")
	}

	if a.ProgramID == "" {
		return errors.New("program ID cannot be empty")
	}

	if a.CompanyName == "" {
		return errors.New("company name cannot be empty")
	}

	if a.CorporateNumber != "" && !corporateNumberPattern.MatchString(a.CorporateNumber) {
		return errors.New("corporate number must be exactly 13 digits")
	}

	if a.ContactEmail != "" && !strings.Contains(a.ContactEmail, "@") {
		return errors.New("contact email is not a valid address")
	}

	switch a.Status {
	case ApplicationStatusDraft, ApplicationStatusSubmitted:
	default:
		return fmt.Errorf("invalid status: %s", a.Status)
	}

	for _, item := range a.Budget {
		if item.Label == "" {
			return errors.New("budget item label cannot be empty")
		}
		if item.AmountYen < 0 {
			return errors.New("budget item amount cannot be negative")
		}
	}

	return nil
}

// TotalBudgetYen sums the requested cost lines.
func (a *Application) TotalBudgetYen() int64 {
	var total int64
	for _, item := range a.Budget {
		total += item.AmountYen
	}
	return total
}

// Submit transitions the draft to submitted. Submitting twice is an error.
func (a *Application) Submit() error {
	if a.Status == ApplicationStatusSubmitted {
		return errors.New("application has already been submitted")
	}
	now := time.Now().UTC()
	a.Status = ApplicationStatusSubmitted
	a.SubmittedAt = &now
	a.UpdatedAt = now
	return nil
}
