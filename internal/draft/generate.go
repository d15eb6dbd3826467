package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grantdesk/internal/models"
)

// GeneratePlan fills plan sections of a draft from its program metadata and
// the caller's emphasis keywords. By default only empty sections are filled;
// Overwrite replaces existing text as well. Submitted applications are
// immutable.
//
// Generation is local and deterministic: the drafts produced here are
// starting points an applicant edits, not finished prose.
func (s *Service) GeneratePlan(ctx context.Context, appID string, req *models.GeneratePlanRequest, requesterKeyID string) (*models.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid generation request", err)
	}

	app, err := s.GetApplication(ctx, appID, requesterKeyID)
	if err != nil {
		return nil, err
	}
	if app.Status == models.ApplicationStatusSubmitted {
		return nil, NewConflictError("submitted applications cannot be modified")
	}

	program, err := s.GetProgram(ctx, app.ProgramID)
	if err != nil {
		return nil, err
	}

	keywords := normalizeKeywords(req.Keywords)
	fill := func(current *string, generated string) {
		if req.Overwrite || strings.TrimSpace(*current) == "" {
			*current = generated
		}
	}

	fill(&app.Plan.Summary, generateSummary(app, program, keywords))
	fill(&app.Plan.Background, generateBackground(app, keywords))
	fill(&app.Plan.Initiative, generateInitiative(app, program, keywords))
	fill(&app.Plan.Effect, generateEffect(program, keywords))

	if len(app.Plan.KPIs) == 0 || req.Overwrite {
		app.Plan.KPIs = defaultKPIs(program)
	}

	app.UpdatedAt = time.Now().UTC()

	if err := s.storage.SaveApplication(ctx, app); err != nil {
		return nil, NewInternalError("failed to save application", err)
	}
	return app, nil
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func keywordPhrase(keywords []string) string {
	if len(keywords) == 0 {
		return "業務のデジタル化"
	}
	return strings.Join(keywords, "・")
}

func generateSummary(app *models.Application, program *models.Program, keywords []string) string {
	return fmt.Sprintf("%sは、%sを活用して%sに取り組み、生産性向上と売上拡大を実現する。",
		app.CompanyName, program.Name, keywordPhrase(keywords))
}

func generateBackground(app *models.Application, keywords []string) string {
	return fmt.Sprintf("%sでは人手不足と業務効率の低下が経営課題となっており、%sによる抜本的な改善が急務である。",
		app.CompanyName, keywordPhrase(keywords))
}

func generateInitiative(app *models.Application, program *models.Program, keywords []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("本事業では%sを導入し、%sを推進する。", keywordPhrase(keywords), program.Name))
	if len(app.Budget) > 0 {
		sb.WriteString(fmt.Sprintf("主な投資は%sを中心とする総額%d円の計画である。",
			app.Budget[0].Label, app.TotalBudgetYen()))
	}
	return sb.String()
}

func generateEffect(program *models.Program, keywords []string) string {
	return fmt.Sprintf("%sにより、3年以内に労働生産性を年率3%%以上改善し、%sの政策目的に資する成果を目指す。",
		keywordPhrase(keywords), program.Name)
}

func defaultKPIs(program *models.Program) []models.KPI {
	kpis := []models.KPI{
		{Name: "労働生産性向上率", Target: 3, Unit: "%/year", Due: "FY2029"},
	}
	for _, c := range program.Categories {
		switch c {
		case models.CategoryExport:
			kpis = append(kpis, models.KPI{Name: "海外売上比率", Target: 10, Unit: "%", Due: "FY2029"})
		case models.CategoryITAdoption:
			kpis = append(kpis, models.KPI{Name: "月次決算所要日数", Target: 5, Unit: "days", Due: "FY2028"})
		}
	}
	return kpis
}
