package version

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestString(t *testing.T) {
	c := qt.New(t)

	c.Assert(String(), qt.Equals, "dev (unknown, built unknown)")
}

func TestStringUsesLinkedValues(t *testing.T) {
	c := qt.New(t)

	prevVersion, prevCommit, prevDate := Version, Commit, Date
	c.Cleanup(func() { Version, Commit, Date = prevVersion, prevCommit, prevDate })
	Version, Commit, Date = "v1.2.3", "abc123", "2026-01-02T03:04:05Z"

	c.Assert(String(), qt.Equals, "v1.2.3 (abc123, built 2026-01-02T03:04:05Z)")
}
