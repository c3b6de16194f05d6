package extractor

import (
	"regexp"
	"strings"
)

// merchantRule pairs a pattern with the function that turns its match into a merchant name.
type merchantRule struct {
	name    string
	pattern *regexp.Regexp
	extract func(match []string) string
}

// merchantRules is evaluated top to bottom; the first matching rule wins.
var merchantRules = []merchantRule{
	{
		name:    "transaction_info",
		pattern: regexp.MustCompile(`Transaction Info:[` + space + `]*([` + word + space + `\-/]+)`),
		extract: func(m []string) string {
			candidate := strings.TrimSpace(m[1])
			if strings.HasPrefix(candidate, "UPI/") {
				return cutAtTrailer(candidate)
			}
			return candidate
		},
	},
	{
		name:    "payment_network",
		pattern: regexp.MustCompile(`(NEFT|IMPS|RTGS|CMS)[^` + space + `/]*/([A-Z0-9 ]+)`),
		extract: func(m []string) string {
			return firstWords(strings.TrimSpace(m[2]), 2)
		},
	},
	{
		name:    "upi_reference",
		pattern: regexp.MustCompile(`(UPI/[` + word + `/]+/[A-Z0-9 ]+)`),
		extract: func(m []string) string {
			return cutAtTrailer(strings.TrimSpace(m[1]))
		},
	},
	{
		name:    "merchant_name",
		pattern: regexp.MustCompile(`Merchant Name:[` + space + `]*([` + word + ` .,&-]+)`),
		extract: func(m []string) string {
			return firstWords(strings.TrimSpace(m[1]), 2)
		},
	},
}

// cutAtTrailer truncates s at the earliest footer phrase, if any is present.
func cutAtTrailer(s string) string {
	end := -1
	for _, trailer := range upiTrailers {
		if idx := strings.Index(s, trailer); idx != -1 && (end == -1 || idx < end) {
			end = idx
		}
	}
	if end == -1 {
		return s
	}
	return strings.TrimSpace(s[:end])
}

// firstWords keeps the first n whitespace-separated words of s.
// Shorter values are returned unchanged.
func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) < n {
		return s
	}
	return strings.Join(words[:n], " ")
}
