// Package graph fronts the Neo4j driver for lore.
//
// The Connector owns session lifecycle, bounded retry on connectivity
// failures, and a circuit breaker guarding a flapping store. Statements run
// in explicit transactions; results are materialized to plain maps before
// the session closes so callers never touch driver state.
package graph

import (
	"time"
)

// StringValue extracts a string field from a materialized record.
// Missing or mistyped fields return the empty string.
func StringValue(rec map[string]any, key string) string {
	if v, ok := rec[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int64Value extracts an integer field from a materialized record.
// Neo4j returns all integers as int64.
func Int64Value(rec map[string]any, key string) int64 {
	switch v := rec[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// TimeValue extracts a timestamp field from a materialized record.
// Handles native driver time values and RFC 3339 strings.
func TimeValue(rec map[string]any, key string) time.Time {
	switch v := rec[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
