package router

import "github.com/harshadelights/pricing/internal/interfaces/http/handler"

// PricingRoutes returns the rule management and quote route groups
func PricingRoutes(h *handler.PricingRuleHandler) []RouteRegistrar {
	rules := NewDomainGroup("pricing-rules", "/pricing-rules")
	rules.POST("", h.Create).
		GET("", h.List).
		POST("/refresh-status", h.RefreshStatuses).
		GET("/:code", h.Get).
		PUT("/:code", h.Update).
		DELETE("/:code", h.Delete).
		POST("/:code/evaluate", h.Evaluate).
		POST("/:code/apply", h.Apply).
		GET("/:code/analytics", h.Analytics)

	quotes := NewDomainGroup("pricing", "/pricing")
	quotes.POST("/quote", h.Quote)

	return []RouteRegistrar{rules, quotes}
}

// SystemRoutes returns the system information group
func SystemRoutes(h *handler.SystemHandler) RouteRegistrar {
	return NewDomainGroup("system", "/system").GET("/info", h.GetSystemInfo)
}
