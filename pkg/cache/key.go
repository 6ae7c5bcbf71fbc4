package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every report entry.
const keyPrefix = "ipintel:report"

// CacheKey identifies one cached report.
type CacheKey struct {
	// Endpoint is the API endpoint path (e.g., "asset/ip/report")
	Endpoint string

	// Target is the looked-up value, usually an IP address
	Target string

	// Params are extra query parameters that change the report
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: ipintel:report:endpoint:target:param1=val1
//
// Example:
//
//	ipintel:report:asset/ip/report:8.8.8.8:full=true
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	parts = append(parts, strings.TrimSpace(k.Target))

	// Sorted for determinism
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
