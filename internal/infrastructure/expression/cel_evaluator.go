// Package expression evaluates pricing rule conditions with CEL.
package expression

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/harshadelights/pricing/internal/domain/pricing"
)

// DefaultCostLimit bounds the work a single condition may do
const DefaultCostLimit uint64 = 10000

// sampleVariables stands in for a transaction when a condition is checked at save time
var sampleVariables = map[string]any{
	"customer":       "Test Customer",
	"item_code":      "Test Item",
	"qty":            10.0,
	"amount":         1000.0,
	"customer_group": "Test Group",
	"territory":      "Test Territory",
}

var _ pricing.ConditionEvaluator = (*CELEvaluator)(nil)

// CELEvaluator compiles rule conditions into CEL programs and caches them by
// source text.
type CELEvaluator struct {
	env       *cel.Env
	costLimit uint64
	logger    *zap.Logger

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// Option configures a CELEvaluator
type Option func(*CELEvaluator)

// WithCostLimit overrides DefaultCostLimit
func WithCostLimit(limit uint64) Option {
	return func(e *CELEvaluator) {
		if limit > 0 {
			e.costLimit = limit
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *CELEvaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewCELEvaluator creates an evaluator. Conditions are parsed without type
// checking so that caller supplied context keys need no declaration.
func NewCELEvaluator(opts ...Option) (*CELEvaluator, error) {
	env, err := cel.NewCustomEnv(append(conditionLibrary(),
		cel.CrossTypeNumericComparisons(true),
	)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &CELEvaluator{
		env:       env,
		costLimit: DefaultCostLimit,
		logger:    zap.NewNop(),
		prgCache:  make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Validate reports whether expr is a well formed condition. A condition that
// only references the built-in transaction variables is also evaluated
// against a sample transaction and must produce a boolean.
func (e *CELEvaluator) Validate(expr string) error {
	norm := normalize(expr)
	prg, err := e.program(norm.source)
	if err != nil {
		return err
	}

	for _, name := range norm.variables {
		if _, builtin := sampleVariables[name]; !builtin {
			return nil
		}
	}

	_, err = e.run(prg, sampleVariables)
	return err
}

// Evaluate runs expr against vars and returns its boolean result
func (e *CELEvaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	prg, err := e.program(normalize(expr).source)
	if err != nil {
		return false, err
	}
	return e.run(prg, activation(vars))
}

func (e *CELEvaluator) run(prg cel.Program, vars map[string]any) (bool, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition result is %s, not bool", out.Type().TypeName())
	}
	return result, nil
}

func (e *CELEvaluator) program(source string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.prgCache[source]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if prg, ok = e.prgCache[source]; ok {
		return prg, nil
	}

	ast, iss := e.env.Parse(source)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid condition syntax: %w", iss.Err())
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(e.costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition program: %w", err)
	}

	e.prgCache[source] = prg
	e.logger.Debug("Compiled condition", zap.String("source", source))
	return prg, nil
}

// activation converts the numeric values a caller may supply into doubles so
// that they combine with the normalized literals
func activation(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = toCEL(v)
	}
	return out
}

func toCEL(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case decimal.Decimal:
		return x.InexactFloat64()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return x.InexactFloat64()
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = toCEL(item)
		}
		return items
	case map[string]any:
		return activation(x)
	default:
		return v
	}
}
