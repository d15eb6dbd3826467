// Package draft implements the business logic for subsidy programs and
// application drafts: program registration and search, draft lifecycle
// (create, update, submit), plan generation, and submission export.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"grantdesk/internal/models"
	"grantdesk/internal/storage"
)

// Service handles program and application draft business logic.
type Service struct {
	storage storage.Storage
}

// NewService creates a draft service with the given storage backend.
func NewService(storage storage.Storage) *Service {
	return &Service{storage: storage}
}

// CreateProgram registers a new subsidy program with an initial 1.0.0 form
// version.
func (s *Service) CreateProgram(ctx context.Context, req *models.CreateProgramRequest) (*models.Program, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid program", err)
	}
	req.Normalize()

	if _, err := s.storage.GetProgram(ctx, req.ID); err == nil {
		return nil, NewConflictError(fmt.Sprintf("program '%s' already exists", req.ID))
	} else if !errors.Is(err, storage.ErrProgramNotFound) {
		return nil, NewInternalError("failed to check existing program", err)
	}

	program := models.NewProgram(req.ID, req.Name, req.Categories)
	program.Agency = req.Agency
	program.Description = req.Description
	program.MaxAwardYen = req.MaxAwardYen
	program.SubsidyRate = req.SubsidyRate
	program.AcceptFrom = req.AcceptFrom
	program.AcceptUntil = req.AcceptUntil
	now := time.Now().UTC().Format(time.RFC3339)
	program.CreatedAt = now
	program.UpdatedAt = now

	if err := program.Validate(); err != nil {
		return nil, NewValidationError("program validation failed", err)
	}

	if err := s.storage.SaveProgram(ctx, program); err != nil {
		return nil, NewInternalError("failed to save program", err)
	}
	return program, nil
}

// GetProgram retrieves a program by ID.
func (s *Service) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	program, err := s.storage.GetProgram(ctx, programID)
	if err != nil {
		if errors.Is(err, storage.ErrProgramNotFound) {
			return nil, NewProgramNotFoundError(programID)
		}
		return nil, NewInternalError("failed to get program", err)
	}
	return program, nil
}

// ListPrograms returns all registered programs.
func (s *Service) ListPrograms(ctx context.Context) ([]*models.Program, error) {
	programs, err := s.storage.Programs(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list programs", err)
	}
	return programs, nil
}

// SearchPrograms returns programs matching a free-text query, optionally
// restricted to a category and to programs currently accepting applications.
func (s *Service) SearchPrograms(ctx context.Context, query, category string, acceptingOnly bool) ([]*models.Program, error) {
	programs, err := s.storage.Programs(ctx)
	if err != nil {
		return nil, NewInternalError("failed to search programs", err)
	}

	now := time.Now()
	var matched []*models.Program
	for _, p := range programs {
		if !p.MatchesQuery(query) {
			continue
		}
		if category != "" && !hasCategory(p, category) {
			continue
		}
		if acceptingOnly && !p.AcceptsAt(now) {
			continue
		}
		matched = append(matched, p)
	}
	return matched, nil
}

// UpdateProgram applies a partial update to program metadata.
func (s *Service) UpdateProgram(ctx context.Context, programID string, req *models.UpdateProgramRequest) (*models.Program, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid update", err)
	}

	program, err := s.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		program.Name = strings.TrimSpace(*req.Name)
	}
	if req.Agency != nil {
		program.Agency = strings.TrimSpace(*req.Agency)
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if len(req.Categories) > 0 {
		categories := make([]string, len(req.Categories))
		for i, c := range req.Categories {
			categories[i] = strings.ToLower(strings.TrimSpace(c))
		}
		program.Categories = categories
	}
	if req.MaxAwardYen != nil {
		program.MaxAwardYen = *req.MaxAwardYen
	}
	if req.SubsidyRate != nil {
		program.SubsidyRate = *req.SubsidyRate
	}
	if req.AcceptFrom != nil {
		program.AcceptFrom = req.AcceptFrom
	}
	if req.AcceptUntil != nil {
		program.AcceptUntil = req.AcceptUntil
	}
	program.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := program.Validate(); err != nil {
		return nil, NewValidationError("program validation failed", err)
	}

	if err := s.storage.SaveProgram(ctx, program); err != nil {
		return nil, NewInternalError("failed to save program", err)
	}
	return program, nil
}

// DeleteProgram removes a program. Programs with existing drafts cannot be
// deleted.
func (s *Service) DeleteProgram(ctx context.Context, programID string) error {
	apps, err := s.storage.Applications(ctx, "")
	if err != nil {
		return NewInternalError("failed to check program usage", err)
	}
	for _, a := range apps {
		if a.ProgramID == programID {
			return NewConflictError(fmt.Sprintf("program '%s' has existing applications", programID))
		}
	}

	if err := s.storage.DeleteProgram(ctx, programID); err != nil {
		if errors.Is(err, storage.ErrProgramNotFound) {
			return NewProgramNotFoundError(programID)
		}
		return NewInternalError("failed to delete program", err)
	}
	return nil
}

// PublishFormVersion publishes a new form schema version for a program.
// Versions must be published in increasing semantic version order; existing
// drafts keep the version they were created against.
func (s *Service) PublishFormVersion(ctx context.Context, programID string, req *models.PublishFormVersionRequest) (*models.Program, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid form version", err)
	}

	version, err := semver.NewVersion(req.Version)
	if err != nil {
		return nil, NewInvalidRequestError(fmt.Sprintf("'%s' is not a valid semantic version", req.Version), err)
	}

	program, err := s.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}

	if latest := program.LatestFormVersion(); latest != "" {
		latestVersion, err := semver.NewVersion(latest)
		if err != nil {
			return nil, NewInternalError("stored form version is corrupt", err)
		}
		if !version.GreaterThan(latestVersion) {
			return nil, NewConflictError(fmt.Sprintf(
				"form version %s must be greater than the latest published version %s", req.Version, latest))
		}
	}

	program.FormVersions = append(program.FormVersions, models.FormVersion{
		Version:     version.String(),
		Notes:       req.Notes,
		PublishedAt: time.Now().UTC(),
	})
	program.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.storage.SaveProgram(ctx, program); err != nil {
		return nil, NewInternalError("failed to save program", err)
	}
	return program, nil
}

// CreateApplication opens a new draft against a program, pinned to the
// program's latest published form version.
func (s *Service) CreateApplication(ctx context.Context, req *models.CreateApplicationRequest, ownerKeyID string) (*models.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid application", err)
	}
	req.Normalize()

	program, err := s.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return nil, err
	}

	if !program.AcceptsAt(time.Now()) {
		return nil, NewConflictError(fmt.Sprintf("program '%s' is not currently accepting applications", program.ID))
	}

	formVersion := program.LatestFormVersion()
	if formVersion == "" {
		return nil, NewConflictError(fmt.Sprintf("program '%s' has no published form version", program.ID))
	}

	app := models.NewApplication(program.ID, formVersion, ownerKeyID)
	app.CompanyName = req.CompanyName
	app.CorporateNumber = req.CorporateNumber
	app.ContactEmail = req.ContactEmail
	if req.Plan != nil {
		app.Plan = *req.Plan
	}
	app.Budget = req.Budget

	if err := app.Validate(); err != nil {
		return nil, NewValidationError("application validation failed", err)
	}

	if err := s.storage.SaveApplication(ctx, app); err != nil {
		return nil, NewInternalError("failed to save application", err)
	}
	return app, nil
}

// GetApplication retrieves a draft, enforcing ownership when requesterKeyID
// is non-empty.
func (s *Service) GetApplication(ctx context.Context, appID, requesterKeyID string) (*models.Application, error) {
	app, err := s.storage.GetApplication(ctx, appID)
	if err != nil {
		if errors.Is(err, storage.ErrApplicationNotFound) {
			return nil, NewApplicationNotFoundError(appID)
		}
		return nil, NewInternalError("failed to get application", err)
	}
	if requesterKeyID != "" && app.OwnerKeyID != requesterKeyID {
		// Hide the draft's existence from other keys.
		return nil, NewApplicationNotFoundError(appID)
	}
	return app, nil
}

// ListApplications returns drafts, restricted to one owner when ownerKeyID is
// non-empty.
func (s *Service) ListApplications(ctx context.Context, ownerKeyID string) ([]*models.Application, error) {
	apps, err := s.storage.Applications(ctx, ownerKeyID)
	if err != nil {
		return nil, NewInternalError("failed to list applications", err)
	}
	return apps, nil
}

// UpdateApplication applies a partial update to a draft. Submitted
// applications are immutable.
func (s *Service) UpdateApplication(ctx context.Context, appID string, req *models.UpdateApplicationRequest, requesterKeyID string) (*models.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid update", err)
	}

	app, err := s.GetApplication(ctx, appID, requesterKeyID)
	if err != nil {
		return nil, err
	}
	if app.Status == models.ApplicationStatusSubmitted {
		return nil, NewConflictError("submitted applications cannot be modified")
	}

	if req.CompanyName != nil {
		app.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
	if req.CorporateNumber != nil {
		app.CorporateNumber = strings.TrimSpace(*req.CorporateNumber)
	}
	if req.ContactEmail != nil {
		app.ContactEmail = strings.TrimSpace(strings.ToLower(*req.ContactEmail))
	}
	if req.Plan != nil {
		app.Plan = *req.Plan
	}
	if req.Budget != nil {
		app.Budget = req.Budget
	}
	app.UpdatedAt = time.Now().UTC()

	if err := app.Validate(); err != nil {
		return nil, NewValidationError("application validation failed", err)
	}

	if err := s.storage.SaveApplication(ctx, app); err != nil {
		return nil, NewInternalError("failed to save application", err)
	}
	return app, nil
}

// DeleteApplication removes a draft. Submitted applications are retained.
func (s *Service) DeleteApplication(ctx context.Context, appID, requesterKeyID string) error {
	app, err := s.GetApplication(ctx, appID, requesterKeyID)
	if err != nil {
		return err
	}
	if app.Status == models.ApplicationStatusSubmitted {
		return NewConflictError("submitted applications cannot be deleted")
	}

	if err := s.storage.DeleteApplication(ctx, appID); err != nil {
		if errors.Is(err, storage.ErrApplicationNotFound) {
			return NewApplicationNotFoundError(appID)
		}
		return NewInternalError("failed to delete application", err)
	}
	return nil
}

// SubmitApplication transitions a draft to submitted. The draft must carry a
// plan summary and the program's acceptance window must still be open.
func (s *Service) SubmitApplication(ctx context.Context, appID, requesterKeyID string) (*models.Application, error) {
	app, err := s.GetApplication(ctx, appID, requesterKeyID)
	if err != nil {
		return nil, err
	}
	if app.Status == models.ApplicationStatusSubmitted {
		return nil, NewConflictError("application has already been submitted")
	}

	if strings.TrimSpace(app.Plan.Summary) == "" {
		return nil, NewValidationError("application is not ready for submission",
			errors.New("plan summary is required"))
	}

	program, err := s.GetProgram(ctx, app.ProgramID)
	if err != nil {
		return nil, err
	}
	if !program.AcceptsAt(time.Now()) {
		return nil, NewConflictError(fmt.Sprintf("program '%s' is no longer accepting applications", program.ID))
	}

	if err := app.Submit(); err != nil {
		return nil, NewConflictError(err.Error())
	}

	if err := s.storage.SaveApplication(ctx, app); err != nil {
		return nil, NewInternalError("failed to save application", err)
	}
	return app, nil
}

func hasCategory(p *models.Program, category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}
