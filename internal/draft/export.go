package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grantdesk/internal/models"
)

// ExportApplication renders a draft into a submission document. Format "json"
// returns the structured application; "text" renders a plain-text document
// suitable for pasting into agency portals.
func (s *Service) ExportApplication(ctx context.Context, appID string, req *models.ExportApplicationRequest, requesterKeyID string) (*models.ExportApplicationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid export request", err)
	}
	req.Normalize()

	app, err := s.GetApplication(ctx, appID, requesterKeyID)
	if err != nil {
		return nil, err
	}

	program, err := s.GetProgram(ctx, app.ProgramID)
	if err != nil {
		return nil, err
	}

	resp := &models.ExportApplicationResponse{
		ID:         app.ID,
		Format:     req.Format,
		ExportedAt: time.Now().UTC(),
	}

	switch req.Format {
	case "json":
		info := &models.ApplicationInfoResponse{}
		info.FromApplication(app)
		resp.Application = info
	case "text":
		resp.Document = renderTextDocument(app, program)
	}

	return resp, nil
}

func renderTextDocument(app *models.Application, program *models.Program) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s 申請書\n", program.Name)
	fmt.Fprintf(&sb, "様式バージョン: %s\n", app.FormVersion)
	fmt.Fprintf(&sb, "申請区分: %s\n\n", strings.Join(program.Categories, ", "))

	fmt.Fprintf(&sb, "【申請者】\n")
	fmt.Fprintf(&sb, "事業者名: %s\n", app.CompanyName)
	if app.CorporateNumber != "" {
		fmt.Fprintf(&sb, "法人番号: %s\n", app.CorporateNumber)
	}
	if app.ContactEmail != "" {
		fmt.Fprintf(&sb, "連絡先: %s\n", app.ContactEmail)
	}
	sb.WriteString("\n")

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(&sb, "【%s】\n%s\n\n", title, body)
	}
	section("事業概要", app.Plan.Summary)
	section("背景・課題", app.Plan.Background)
	section("取組内容", app.Plan.Initiative)
	section("期待される効果", app.Plan.Effect)

	if len(app.Plan.KPIs) > 0 {
		sb.WriteString("【数値目標】\n")
		for _, kpi := range app.Plan.KPIs {
			fmt.Fprintf(&sb, "- %s: %g %s", kpi.Name, kpi.Target, kpi.Unit)
			if kpi.Due != "" {
				fmt.Fprintf(&sb, " (%s)", kpi.Due)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(app.Budget) > 0 {
		sb.WriteString("【経費内訳】\n")
		for _, item := range app.Budget {
			fmt.Fprintf(&sb, "- %s: %d円\n", item.Label, item.AmountYen)
		}
		fmt.Fprintf(&sb, "合計: %d円\n\n", app.TotalBudgetYen())
	}

	fmt.Fprintf(&sb, "ステータス: %s\n", app.Status)
	if app.SubmittedAt != nil {
		fmt.Fprintf(&sb, "提出日時: %s\n", app.SubmittedAt.Format(time.RFC3339))
	}

	return sb.String()
}
