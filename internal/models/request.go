// Package models - API request types and input validation.
// This file defines all incoming API request structures with validation.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (lowercase categories, trimmed strings)
// - Provide sensible defaults where appropriate
// - Separate validation from normalization for clear error reporting
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateProgramRequest registers a new subsidy program (admin operation).
type CreateProgramRequest struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Agency      string     `json:"agency"`
	Description string     `json:"description"`
	Categories  []string   `json:"categories" validate:"required,min=1"`
	MaxAwardYen int64      `json:"max_award_yen"`
	SubsidyRate string     `json:"subsidy_rate,omitempty"`
	AcceptFrom  *time.Time `json:"accept_from,omitempty"`
	AcceptUntil *time.Time `json:"accept_until,omitempty"`
}

func (r *CreateProgramRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if !isValidID(r.ID) {
		return errors.New("id must contain only alphanumeric characters, hyphens, and underscores")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	for _, c := range r.Categories {
		if !isValidCategory(strings.ToLower(strings.TrimSpace(c))) {
			return fmt.Errorf("invalid category: %s", c)
		}
	}
	if r.MaxAwardYen < 0 {
		return errors.New("max award cannot be negative")
	}
	return nil
}

func (r *CreateProgramRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.Agency = strings.TrimSpace(r.Agency)
	for i, c := range r.Categories {
		r.Categories[i] = strings.ToLower(strings.TrimSpace(c))
	}
}

// UpdateProgramRequest modifies program metadata. Nil fields are left unchanged.
type UpdateProgramRequest struct {
	Name        *string    `json:"name,omitempty"`
	Agency      *string    `json:"agency,omitempty"`
	Description *string    `json:"description,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	MaxAwardYen *int64     `json:"max_award_yen,omitempty"`
	SubsidyRate *string    `json:"subsidy_rate,omitempty"`
	AcceptFrom  *time.Time `json:"accept_from,omitempty"`
	AcceptUntil *time.Time `json:"accept_until,omitempty"`
}

func (r *UpdateProgramRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return errors.New("name cannot be empty")
	}
	for _, c := range r.Categories {
		if !isValidCategory(strings.ToLower(strings.TrimSpace(c))) {
			return fmt.Errorf("invalid category: %s", c)
		}
	}
	if r.MaxAwardYen != nil && *r.MaxAwardYen < 0 {
		return errors.New("max award cannot be negative")
	}
	return nil
}

// PublishFormVersionRequest publishes a new form schema version for a program.
type PublishFormVersionRequest struct {
	Version string `json:"version" validate:"required"`
	Notes   string `json:"notes,omitempty"`
}

func (r *PublishFormVersionRequest) Validate() error {
	if r.Version == "" {
		return errors.New("version is required")
	}
	return nil
}

// CreateApplicationRequest opens a new subsidy application draft.
type CreateApplicationRequest struct {
	ProgramID       string       `json:"program_id" validate:"required"`
	CompanyName     string       `json:"company_name" validate:"required"`
	CorporateNumber string       `json:"corporate_number,omitempty"`
	ContactEmail    string       `json:"contact_email,omitempty"`
	Plan            *PlanContent `json:"plan,omitempty"`
	Budget          []BudgetItem `json:"budget,omitempty"`
}

func (r *CreateApplicationRequest) Validate() error {
	if r.ProgramID == "" {
		return errors.New("program_id is required")
	}
	if r.CompanyName == "" {
		return errors.New("company_name is required")
	}
	if r.CorporateNumber != "" && !corporateNumberPattern.MatchString(r.CorporateNumber) {
		return errors.New("corporate_number must be exactly 13 digits")
	}
	if r.ContactEmail != "" && !strings.Contains(r.ContactEmail, "@") {
		return errors.New("contact_email is not a valid address")
	}
	for _, item := range r.Budget {
		if item.Label == "" {
			return errors.New("budget item label cannot be empty")
		}
		if item.AmountYen < 0 {
			return errors.New("budget item amount cannot be negative")
		}
	}
	return nil
}

func (r *CreateApplicationRequest) Normalize() {
	r.ProgramID = strings.TrimSpace(r.ProgramID)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.CorporateNumber = strings.TrimSpace(r.CorporateNumber)
	r.ContactEmail = strings.TrimSpace(strings.ToLower(r.ContactEmail))
}

// UpdateApplicationRequest modifies a draft. Nil fields are left unchanged.
// Submitted applications reject all updates.
type UpdateApplicationRequest struct {
	CompanyName     *string      `json:"company_name,omitempty"`
	CorporateNumber *string      `json:"corporate_number,omitempty"`
	ContactEmail    *string      `json:"contact_email,omitempty"`
	Plan            *PlanContent `json:"plan,omitempty"`
	Budget          []BudgetItem `json:"budget,omitempty"`
}

func (r *UpdateApplicationRequest) Validate() error {
	if r.CompanyName != nil && *r.CompanyName == "" {
		return errors.New("company_name cannot be empty")
	}
	if r.CorporateNumber != nil && *r.CorporateNumber != "" && !corporateNumberPattern.MatchString(*r.CorporateNumber) {
		return errors.New("corporate_number must be exactly 13 digits")
	}
	if r.ContactEmail != nil && *r.ContactEmail != "" && !strings.Contains(*r.ContactEmail, "@") {
		return errors.New("contact_email is not a valid address")
	}
	for _, item := range r.Budget {
		if item.Label == "" {
			return errors.New("budget item label cannot be empty")
		}
		if item.AmountYen < 0 {
			return errors.New("budget item amount cannot be negative")
		}
	}
	return nil
}

// GeneratePlanRequest asks the service to fill empty plan sections of a draft
// from its program metadata and the provided emphasis keywords.
type GeneratePlanRequest struct {
	Keywords  []string `json:"keywords,omitempty"`
	Overwrite bool     `json:"overwrite"` // Replace non-empty sections too
}

func (r *GeneratePlanRequest) Validate() error {
	if len(r.Keywords) > 10 {
		return errors.New("at most 10 keywords are allowed")
	}
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) == "" {
			return errors.New("keywords cannot be blank")
		}
	}
	return nil
}

// ExportApplicationRequest renders a draft into a submission document.
type ExportApplicationRequest struct {
	Format string `json:"format,omitempty"` // "json" (default) or "text"
}

func (r *ExportApplicationRequest) Validate() error {
	switch r.Format {
	case "", "json", "text":
		return nil
	default:
		return fmt.Errorf("unsupported export format: %s", r.Format)
	}
}

// Normalize applies the default format.
func (r *ExportApplicationRequest) Normalize() {
	if r.Format == "" {
		r.Format = "json"
	}
}

// CreateKeyRequest mints a new API key (admin operation).
type CreateKeyRequest struct {
	Name        string   `json:"name" validate:"required"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
}

func (r *CreateKeyRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Permissions) == 0 {
		return errors.New("at least one permission is required")
	}
	for _, p := range r.Permissions {
		switch p {
		case "read", "write", "admin", "*":
		default:
			return fmt.Errorf("invalid permission: %s", p)
		}
	}
	return nil
}
