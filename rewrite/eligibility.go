package rewrite

import (
	"strings"

	"github.com/samber/lo"
)

// textContentTypes lists the content-type fragments whose bodies are inspected.
var textContentTypes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"application/xhtml+xml",
	"application/x-www-form-urlencoded",
}

// IsEligible reports whether a response with the given Content-Type header
// value should be considered for rewriting. The match is a case-insensitive
// substring match, so parameters such as "; charset=utf-8" do not matter.
func IsEligible(contentType string) bool {
	if contentType == "" {
		return false
	}
	ct := strings.ToLower(contentType)
	return lo.ContainsBy(textContentTypes, func(fragment string) bool {
		return strings.Contains(ct, fragment)
	})
}

// isJSON reports whether the content type selects the structural JSON path.
func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
