package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	app "github.com/harshadelights/pricing/internal/application/pricing"
	"github.com/harshadelights/pricing/internal/domain/pricing"
)

// RuleManager is the rule lifecycle surface used by the HTTP layer
type RuleManager interface {
	Create(ctx context.Context, req app.RuleRequest, actingUser string, now time.Time) (*app.RuleResponse, error)
	Update(ctx context.Context, code string, req app.RuleRequest, actingUser string, now time.Time) (*app.RuleResponse, error)
	Delete(ctx context.Context, code string, now time.Time) error
	Get(ctx context.Context, code string) (*app.RuleResponse, error)
	List(ctx context.Context, filter app.RuleListFilter) ([]app.RuleResponse, int64, error)
	RefreshStatuses(ctx context.Context, now time.Time) (*app.RefreshStatusResponse, error)
	Analytics(ctx context.Context, code string) (*pricing.RuleAnalytics, error)
}

// RuleEvaluator prices transactions against stored rules
type RuleEvaluator interface {
	Evaluate(ctx context.Context, code string, req app.TransactionRequest, now time.Time) (*app.EvaluationResponse, error)
	Apply(ctx context.Context, code string, req app.ApplyRequest, actingUser string, now time.Time) (*app.ApplicationResponse, error)
	Quote(ctx context.Context, req app.TransactionRequest, now time.Time) (*app.QuoteResponse, error)
}

// PricingRuleHandler handles pricing rule and quote endpoints
type PricingRuleHandler struct {
	BaseHandler
	rules    RuleManager
	pricer   RuleEvaluator
	location *time.Location
	clock    func() time.Time
}

// PricingRuleHandlerOption configures a PricingRuleHandler
type PricingRuleHandlerOption func(*PricingRuleHandler)

// WithClock replaces time.Now, for tests
func WithClock(clock func() time.Time) PricingRuleHandlerOption {
	return func(h *PricingRuleHandler) {
		h.clock = clock
	}
}

// NewPricingRuleHandler creates a new PricingRuleHandler. Validity windows and
// time-of-day checks are evaluated in location.
func NewPricingRuleHandler(rules RuleManager, pricer RuleEvaluator, location *time.Location, opts ...PricingRuleHandlerOption) *PricingRuleHandler {
	if location == nil {
		location = time.Local
	}
	h := &PricingRuleHandler{
		rules:    rules,
		pricer:   pricer,
		location: location,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PricingRuleHandler) now() time.Time {
	return h.clock().In(h.location)
}

// Create godoc
// @ID           createPricingRule
// @Summary      Create a pricing rule
// @Description  Validates and stores a new pricing rule. An empty rule_code is generated from the rule type.
// @Tags         pricing-rules
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        request body app.RuleRequest true "Rule configuration"
// @Success      201 {object} APIResponse[app.RuleResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /pricing-rules [post]
func (h *PricingRuleHandler) Create(c *gin.Context) {
	var req app.RuleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), req, getActingUser(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rule)
}

// List godoc
// @ID           listPricingRules
// @Summary      List pricing rules
// @Tags         pricing-rules
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        status query string false "Rule status"
// @Param        rule_type query string false "Rule type"
// @Param        applicable_for query string false "Scope kind"
// @Param        search query string false "Matches code or name"
// @Success      200 {object} APIResponse[[]app.RuleResponse]
// @Router       /pricing-rules [get]
func (h *PricingRuleHandler) List(c *gin.Context) {
	var filter app.RuleListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	rules, total, err := h.rules.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, rules, total, filter.Page, filter.PageSize)
}

// Get godoc
// @ID           getPricingRule
// @Summary      Get a pricing rule by code
// @Tags         pricing-rules
// @Produce      json
// @Param        code path string true "Rule code"
// @Success      200 {object} APIResponse[app.RuleResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /pricing-rules/{code} [get]
func (h *PricingRuleHandler) Get(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// Update godoc
// @ID           updatePricingRule
// @Summary      Replace a pricing rule's configuration
// @Tags         pricing-rules
// @Accept       json
// @Produce      json
// @Param        code path string true "Rule code"
// @Param        request body app.RuleRequest true "Rule configuration"
// @Success      200 {object} APIResponse[app.RuleResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /pricing-rules/{code} [put]
func (h *PricingRuleHandler) Update(c *gin.Context) {
	var req app.RuleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), c.Param("code"), req, getActingUser(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// Delete godoc
// @ID           deletePricingRule
// @Summary      Delete a pricing rule
// @Tags         pricing-rules
// @Param        code path string true "Rule code"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Router       /pricing-rules/{code} [delete]
func (h *PricingRuleHandler) Delete(c *gin.Context) {
	if err := h.rules.Delete(c.Request.Context(), c.Param("code"), h.now()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Evaluate godoc
// @ID           evaluatePricingRule
// @Summary      Dry-run a rule against a transaction
// @Description  Checks applicability and computes the price without recording usage.
// @Tags         pricing-rules
// @Accept       json
// @Produce      json
// @Param        code path string true "Rule code"
// @Param        request body app.TransactionRequest true "Transaction line"
// @Success      200 {object} APIResponse[app.EvaluationResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /pricing-rules/{code}/evaluate [post]
func (h *PricingRuleHandler) Evaluate(c *gin.Context) {
	var req app.TransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.pricer.Evaluate(c.Request.Context(), c.Param("code"), req, h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Apply godoc
// @ID           applyPricingRule
// @Summary      Apply a rule to a transaction
// @Description  Prices the transaction, consumes a coupon use and records the application.
// @Description  Repeating a transaction_id replays the first result.
// @Tags         pricing-rules
// @Accept       json
// @Produce      json
// @Param        code path string true "Rule code"
// @Param        X-User-ID header string false "Acting user"
// @Param        request body app.ApplyRequest true "Transaction line with id"
// @Success      200 {object} APIResponse[app.ApplicationResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /pricing-rules/{code}/apply [post]
func (h *PricingRuleHandler) Apply(c *gin.Context) {
	var req app.ApplyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.pricer.Apply(c.Request.Context(), c.Param("code"), req, getActingUser(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Analytics godoc
// @ID           getPricingRuleAnalytics
// @Summary      Usage analytics of a rule
// @Tags         pricing-rules
// @Produce      json
// @Param        code path string true "Rule code"
// @Success      200 {object} APIResponse[pricing.RuleAnalytics]
// @Failure      404 {object} ErrorResponse
// @Router       /pricing-rules/{code}/analytics [get]
func (h *PricingRuleHandler) Analytics(c *gin.Context) {
	analytics, err := h.rules.Analytics(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analytics)
}

// RefreshStatuses godoc
// @ID           refreshPricingRuleStatuses
// @Summary      Recompute every rule's status
// @Tags         pricing-rules
// @Produce      json
// @Success      200 {object} APIResponse[app.RefreshStatusResponse]
// @Router       /pricing-rules/refresh-status [post]
func (h *PricingRuleHandler) RefreshStatuses(c *gin.Context) {
	result, err := h.rules.RefreshStatuses(c.Request.Context(), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Quote godoc
// @ID           quotePrice
// @Summary      Best price across all active rules
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        request body app.TransactionRequest true "Transaction line"
// @Success      200 {object} APIResponse[app.QuoteResponse]
// @Router       /pricing/quote [post]
func (h *PricingRuleHandler) Quote(c *gin.Context) {
	var req app.TransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	quote, err := h.pricer.Quote(c.Request.Context(), req, h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}
