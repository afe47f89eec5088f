package anonymize

import (
	"strings"

	"github.com/MathFreedom/SafeMask/internal/detect"
)

// redactMask returns the irreversible mask for a span. Email keeps its shape
// when the value has exactly one @; every other category gets a literal tag.
func redactMask(c detect.Category, value string) string {
	switch c {
	case detect.Email:
		if strings.Count(value, "@") == 1 {
			return "***@***.***"
		}
		return "[REDACTED:EMAIL]"
	case detect.FullName:
		return "[REDACTED:NAME]"
	case detect.Organization:
		return "[REDACTED:ORG]"
	case detect.Other:
		return "[REDACTED]"
	default:
		if !c.Valid() {
			return "[REDACTED]"
		}
		return "[REDACTED:" + string(c) + "]"
	}
}
