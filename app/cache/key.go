package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

const keyPrefix = "subtide"

// BuildKey derives a stable cache key from an operation name and its
// parameters. Parameters are joined in lexicographic key order so identical
// calls hash to the same key regardless of map iteration order.
func BuildKey(op string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s:%s:%x", keyPrefix, op, hash[:16])
}

// opPattern matches every key of one operation, for InvalidateAll.
func opPattern(op string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, op)
}
