package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/harshadelights/pricing/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slabInput struct {
	MinQuantity decimal.Decimal `json:"min_quantity" binding:"decimal_gte0"`
}

type ruleInput struct {
	RuleName    string           `json:"rule_name" binding:"required,max=140"`
	Discount    *decimal.Decimal `json:"discount_percentage" binding:"omitempty,decimal_gte0"`
	ValidFrom   string           `json:"valid_from" binding:"omitempty,datetime=2006-01-02"`
	VolumeSlabs []slabInput      `json:"volume_slabs" binding:"dive"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req ruleInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req.RuleName))
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, "req-validation")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError_FieldDetails(t *testing.T) {
	router := newValidationRouter()

	w := postJSON(router, `{
		"discount_percentage": "-5",
		"valid_from": "01/10/2024",
		"volume_slabs": [{"min_quantity": "10"}, {"min_quantity": "-1"}]
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-validation", resp.Error.RequestID)

	fields := map[string]string{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "This field is required", fields["rule_name"])
	assert.Equal(t, "Must be a decimal greater than or equal to 0", fields["discount_percentage"])
	assert.Equal(t, "Must match the format 2006-01-02", fields["valid_from"])
	assert.Contains(t, fields, "volume_slabs[1].min_quantity")
	assert.NotContains(t, fields, "volume_slabs[0].min_quantity")
}

func TestHandleValidationError_ValidInput(t *testing.T) {
	router := newValidationRouter()

	w := postJSON(router, `{
		"rule_name": "Festive",
		"discount_percentage": "12.5",
		"valid_from": "2024-10-01",
		"volume_slabs": [{"min_quantity": "0"}]
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	router := newValidationRouter()

	w := postJSON(router, `{"rule_name": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}

func TestGetValidationMessage(t *testing.T) {
	type sample struct {
		Required string `validate:"required"`
		MinStr   string `validate:"min=5"`
		MaxStr   string `validate:"max=2"`
		MinInt   int    `validate:"min=3"`
		OneOf    string `validate:"oneof=Rate Discount"`
		GTE      int    `validate:"gte=10"`
		LTE      int    `validate:"lte=1"`
		GT       int    `validate:"gt=0"`
		Email    string `validate:"email"`
	}

	v := validator.New()
	err := v.Struct(sample{MaxStr: "abc", OneOf: "Other", LTE: 5, Email: "x"})
	require.Error(t, err)

	got := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		got[e.Field()] = getValidationMessage(e)
	}

	assert.Equal(t, "This field is required", got["Required"])
	assert.Equal(t, "Must be at least 5 characters", got["MinStr"])
	assert.Equal(t, "Must be at most 2 characters", got["MaxStr"])
	assert.Equal(t, "Must be at least 3", got["MinInt"])
	assert.Equal(t, "Must be one of: Rate Discount", got["OneOf"])
	assert.Equal(t, "Must be greater than or equal to 10", got["GTE"])
	assert.Equal(t, "Must be less than or equal to 1", got["LTE"])
	assert.Equal(t, "Must be greater than 0", got["GT"])
	assert.Equal(t, "Invalid value", got["Email"])
}
