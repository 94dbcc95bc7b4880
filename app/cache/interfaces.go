package cache

import "time"

// Cache is the response cache contract in front of adapter calls. It is
// strictly a performance optimization: implementations swallow their own
// errors, and a missing or failing cache only costs latency, never
// correctness.
type Cache interface {
	Get(op string, params map[string]string) (string, bool)
	Set(op string, params map[string]string, value string, ttl time.Duration)
	Invalidate(op string, params map[string]string)
	InvalidateAll(op string)
}
