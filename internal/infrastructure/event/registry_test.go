package event

import (
	"testing"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Handlers(t *testing.T) {
	registry := NewHandlerRegistry()
	lifecycle := newRecordingHandler()
	audit := newRecordingHandler()

	registry.Register(lifecycle, pricing.EventTypePricingRuleCreated, pricing.EventTypePricingRuleUpdated)
	registry.Register(audit)

	created := registry.Handlers(pricing.EventTypePricingRuleCreated)
	assert.Len(t, created, 2)
	assert.Same(t, lifecycle, created[0], "typed handlers come before wildcards")
	assert.Same(t, audit, created[1])

	applied := registry.Handlers(pricing.EventTypePricingRuleApplied)
	assert.Len(t, applied, 1)
	assert.Same(t, audit, applied[0])

	assert.Equal(t, 2, registry.Count())
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	first := newRecordingHandler()
	second := newRecordingHandler()
	wildcard := newRecordingHandler()

	registry.Register(first, pricing.EventTypePricingRuleCreated)
	registry.Register(second, pricing.EventTypePricingRuleCreated)
	registry.Register(wildcard)

	registry.Unregister(first)
	handlers := registry.Handlers(pricing.EventTypePricingRuleCreated)
	assert.Len(t, handlers, 2)
	assert.Same(t, second, handlers[0])

	registry.Unregister(second)
	registry.Unregister(wildcard)
	assert.Empty(t, registry.Handlers(pricing.EventTypePricingRuleCreated))
	assert.Equal(t, 0, registry.Count())
}

func TestHandlerRegistry_HandlersReturnsCopy(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newRecordingHandler()
	registry.Register(handler, pricing.EventTypePricingRuleDeleted)

	handlers := registry.Handlers(pricing.EventTypePricingRuleDeleted)
	handlers[0] = nil

	assert.Same(t, handler, registry.Handlers(pricing.EventTypePricingRuleDeleted)[0])
}

func TestHandlerRegistry_CountDeduplicates(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newRecordingHandler()
	registry.Register(handler, pricing.EventTypePricingRuleCreated, pricing.EventTypePricingRuleUpdated)

	assert.Equal(t, 1, registry.Count())
}
