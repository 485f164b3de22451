package rewrite_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/false2true/false2true/rewrite"
)

func TestIsEligible(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/CSS", true},
		{"application/json", true},
		{"Application/JSON; charset=UTF-8", true},
		{"application/javascript", true},
		{"application/xml", true},
		{"application/xhtml+xml", true},
		{"application/x-www-form-urlencoded", true},
		{"application/problem+json", false},
		{"application/octet-stream", false},
		{"image/png", false},
		{"", false},
	}
	for _, tc := range cases {
		c.Assert(rewrite.IsEligible(tc.contentType), qt.Equals, tc.want, qt.Commentf("content type %q", tc.contentType))
	}
}
