package services

import (
	"strconv"
	"strings"

	"github.com/facturaPE/invoice-intake-service/internal/models"
)

// NormalizeOC canonicalizes a purchase-order reference so that
// heterogeneous renderings compare equal: "0001-0000499" and "1-499"
// both normalize to "1-499". Total over all inputs — unparseable input
// degrades to the cleaned string, it never fails.
func NormalizeOC(raw string) string {
	if raw == "" || strings.Contains(strings.ToLower(raw), strings.ToLower(models.NoEncontrado)) {
		return models.NoEncontrado
	}

	var sb strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()

	if strings.Contains(cleaned, "-") {
		var segments []string
		for _, seg := range strings.Split(cleaned, "-") {
			n, err := strconv.ParseUint(seg, 10, 64)
			if err != nil {
				continue
			}
			segments = append(segments, strconv.FormatUint(n, 10))
		}
		if len(segments) > 0 {
			return strings.Join(segments, "-")
		}
		return cleaned
	}

	if n, err := strconv.ParseUint(cleaned, 10, 64); err == nil {
		return strconv.FormatUint(n, 10)
	}

	return cleaned
}
