package sources

import (
	"fmt"
	"strings"
)

// BuildCacheKey derives a cache key from a logical data type and lookup
// parameters. The optional prefix namespaces keys when several callers
// share one store. Nil parameters render as "nil" so distinct lookups
// never collide on an empty segment.
func BuildCacheKey(prefix, dataType string, params ...any) string {
	var sb strings.Builder
	if prefix != "" {
		sb.WriteString(prefix)
		sb.WriteString(":")
	}
	sb.WriteString(dataType)
	for _, p := range params {
		sb.WriteString(":")
		if p == nil {
			sb.WriteString("nil")
		} else {
			fmt.Fprintf(&sb, "%v", p)
		}
	}
	return sb.String()
}
