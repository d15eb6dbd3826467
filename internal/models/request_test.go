package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"grantdesk/internal/models"
)

func TestCreateProgramRequestValidate(t *testing.T) {
	valid := func() models.CreateProgramRequest {
		return models.CreateProgramRequest{
			ID:         "it-donyu-2026",
			Name:       "IT導入補助金 2026",
			Categories: []string{models.CategoryITAdoption},
		}
	}

	req := valid()
	assert.NoError(t, req.Validate())

	req = valid()
	req.ID = ""
	assert.ErrorContains(t, req.Validate(), "id is required")

	req = valid()
	req.ID = "has spaces"
	assert.ErrorContains(t, req.Validate(), "alphanumeric")

	req = valid()
	req.Name = ""
	assert.ErrorContains(t, req.Validate(), "name is required")

	req = valid()
	req.Categories = nil
	assert.ErrorContains(t, req.Validate(), "at least one category")

	req = valid()
	req.Categories = []string{"time-travel"}
	assert.ErrorContains(t, req.Validate(), "invalid category")

	req = valid()
	req.MaxAwardYen = -1
	assert.ErrorContains(t, req.Validate(), "cannot be negative")

	// Mixed-case categories validate after lowering
	req = valid()
	req.Categories = []string{" IT-Adoption "}
	assert.NoError(t, req.Validate())
}

func TestCreateProgramRequestNormalize(t *testing.T) {
	req := models.CreateProgramRequest{
		ID:         "  it-donyu-2026  ",
		Name:       " IT導入補助金 ",
		Agency:     " METI ",
		Categories: []string{" IT-Adoption "},
	}
	req.Normalize()

	assert.Equal(t, "it-donyu-2026", req.ID)
	assert.Equal(t, "IT導入補助金", req.Name)
	assert.Equal(t, "METI", req.Agency)
	assert.Equal(t, []string{"it-adoption"}, req.Categories)
}

func TestUpdateProgramRequestValidate(t *testing.T) {
	empty := ""
	negative := int64(-1)

	req := models.UpdateProgramRequest{}
	assert.NoError(t, req.Validate(), "all-nil update is a no-op, not an error")

	req = models.UpdateProgramRequest{Name: &empty}
	assert.ErrorContains(t, req.Validate(), "name cannot be empty")

	req = models.UpdateProgramRequest{Categories: []string{"bogus"}}
	assert.ErrorContains(t, req.Validate(), "invalid category")

	req = models.UpdateProgramRequest{MaxAwardYen: &negative}
	assert.ErrorContains(t, req.Validate(), "cannot be negative")
}

func TestCreateApplicationRequestValidate(t *testing.T) {
	valid := func() models.CreateApplicationRequest {
		return models.CreateApplicationRequest{
			ProgramID:   "it-donyu-2026",
			CompanyName: "青山製作所",
		}
	}

	req := valid()
	assert.NoError(t, req.Validate())

	req = valid()
	req.ProgramID = ""
	assert.ErrorContains(t, req.Validate(), "program_id is required")

	req = valid()
	req.CompanyName = ""
	assert.ErrorContains(t, req.Validate(), "company_name is required")

	req = valid()
	req.CorporateNumber = "123"
	assert.ErrorContains(t, req.Validate(), "13 digits")

	req = valid()
	req.ContactEmail = "nope"
	assert.ErrorContains(t, req.Validate(), "valid address")

	req = valid()
	req.Budget = []models.BudgetItem{{Label: "", AmountYen: 10}}
	assert.ErrorContains(t, req.Validate(), "label cannot be empty")
}

func TestCreateApplicationRequestNormalize(t *testing.T) {
	req := models.CreateApplicationRequest{
		ProgramID:    " it-donyu-2026 ",
		CompanyName:  " 青山製作所 ",
		ContactEmail: " Keiri@Example.JP ",
	}
	req.Normalize()

	assert.Equal(t, "it-donyu-2026", req.ProgramID)
	assert.Equal(t, "青山製作所", req.CompanyName)
	assert.Equal(t, "keiri@example.jp", req.ContactEmail)
}

func TestGeneratePlanRequestValidate(t *testing.T) {
	req := models.GeneratePlanRequest{Keywords: []string{"クラウド会計", "在庫管理"}}
	assert.NoError(t, req.Validate())

	req = models.GeneratePlanRequest{}
	assert.NoError(t, req.Validate(), "keywords are optional")

	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = "k"
	}
	req = models.GeneratePlanRequest{Keywords: tooMany}
	assert.ErrorContains(t, req.Validate(), "at most 10")

	req = models.GeneratePlanRequest{Keywords: []string{"valid", "  "}}
	assert.ErrorContains(t, req.Validate(), "cannot be blank")
}

func TestExportApplicationRequestValidate(t *testing.T) {
	for _, format := range []string{"", "json", "text"} {
		req := models.ExportApplicationRequest{Format: format}
		assert.NoError(t, req.Validate(), "format %q should be accepted", format)
	}

	req := models.ExportApplicationRequest{Format: "pdf"}
	assert.ErrorContains(t, req.Validate(), "unsupported export format")

	req = models.ExportApplicationRequest{}
	req.Normalize()
	assert.Equal(t, "json", req.Format)
}

func TestCreateKeyRequestValidate(t *testing.T) {
	req := models.CreateKeyRequest{Name: "ci", Permissions: []string{"read", "write"}}
	assert.NoError(t, req.Validate())

	req = models.CreateKeyRequest{Permissions: []string{"read"}}
	assert.ErrorContains(t, req.Validate(), "name is required")

	req = models.CreateKeyRequest{Name: "ci"}
	assert.ErrorContains(t, req.Validate(), "at least one permission")

	req = models.CreateKeyRequest{Name: "ci", Permissions: []string{"superuser"}}
	assert.ErrorContains(t, req.Validate(), "invalid permission")
}
