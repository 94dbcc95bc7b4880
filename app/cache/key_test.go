package cache

import (
	"strings"
	"testing"
)

func TestBuildKey_StableAcrossParamOrder(t *testing.T) {
	a := BuildKey("fetch_recent", map[string]string{"source_id": "s1", "days": "7"})
	b := BuildKey("fetch_recent", map[string]string{"days": "7", "source_id": "s1"})

	if a != b {
		t.Errorf("Identical params must produce the same key: %q vs %q", a, b)
	}
}

func TestBuildKey_DistinguishesParams(t *testing.T) {
	a := BuildKey("fetch_recent", map[string]string{"source_id": "s1", "days": "7"})
	b := BuildKey("fetch_recent", map[string]string{"source_id": "s1", "days": "14"})

	if a == b {
		t.Error("Different params must produce different keys")
	}
}

func TestBuildKey_DistinguishesOperations(t *testing.T) {
	params := map[string]string{"source_id": "s1"}

	a := BuildKey("fetch_recent", params)
	b := BuildKey("source_metadata", params)

	if a == b {
		t.Error("Different operations must produce different keys")
	}
}

func TestBuildKey_Prefix(t *testing.T) {
	key := BuildKey("validate_source", map[string]string{"identifier": "https://example.com"})

	if !strings.HasPrefix(key, "subtide:validate_source:") {
		t.Errorf("Unexpected key format: %q", key)
	}
}

func TestOpPattern(t *testing.T) {
	pattern := opPattern("fetch_recent")
	key := BuildKey("fetch_recent", map[string]string{"source_id": "s1"})

	prefix := strings.TrimSuffix(pattern, "*")
	if !strings.HasPrefix(key, prefix) {
		t.Errorf("Pattern %q does not cover key %q", pattern, key)
	}
}
