package cache

// DefaultKeyPrefix namespaces idempotency keys written by the pricing engine
const DefaultKeyPrefix = "pricing:idempotency:"

// ApplyKey is the idempotency key of applying a rule to a transaction
func ApplyKey(ruleCode, transactionID string) string {
	return "apply:" + ruleCode + ":" + transactionID
}
