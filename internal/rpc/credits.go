package rpc

import (
	"math"
	"strings"
)

const defaultPageSize = 100

// EstimateCredits approximates the API credits a call will consume. Domain
// info lookups cost 5 per domain, team management calls 1, and everything
// else one credit per requested row. The result is never below 1.
func EstimateCredits(method string, params map[string]any) int {
	credits := 1
	switch {
	case method == "SerpstatDomainProcedure.getDomainsInfo":
		n := 1
		if domains, ok := params["domains"].([]any); ok && len(domains) > 0 {
			n = len(domains)
		}
		credits = 5 * n
	case strings.HasPrefix(method, "TeamManagement."):
		credits = 1
	default:
		credits = pageSize(params)
	}
	if credits < 1 {
		return 1
	}
	return credits
}

func pageSize(params map[string]any) int {
	switch v := params["size"].(type) {
	case int64:
		return clamp(v)
	case int:
		return clamp(int64(v))
	case float64:
		return clamp(int64(v))
	}
	return defaultPageSize
}

func clamp(n int64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
