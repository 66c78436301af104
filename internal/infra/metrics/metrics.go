// File: internal/infra/metrics/metrics.go
package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
