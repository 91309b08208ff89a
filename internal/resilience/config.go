package resilience

// NewPolicy builds the default policy with maxAttempts (when > 0) and a
// logging OnRetry hook for service/operation.
func NewPolicy(maxAttempts int, service, operation string) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	p.OnRetry = RetryLogger(service, operation)
	return p
}
