package rewrite_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/false2true/false2true/rewrite"
)

func TestDecodeTextUTF8(t *testing.T) {
	c := qt.New(t)

	text, ok := rewrite.DecodeText([]byte("héllo false"))

	c.Assert(ok, qt.IsTrue)
	c.Assert(text, qt.Equals, "héllo false")
}

func TestDecodeTextFallsBackToLatin1(t *testing.T) {
	c := qt.New(t)

	// 0xE9 is "é" in Latin-1 and an invalid sequence in UTF-8.
	text, ok := rewrite.DecodeText([]byte{'c', 'a', 'f', 0xE9})

	c.Assert(ok, qt.IsTrue)
	c.Assert(text, qt.Equals, "café")
}

func TestDecodeTextEmpty(t *testing.T) {
	c := qt.New(t)

	_, ok := rewrite.DecodeText(nil)
	c.Assert(ok, qt.IsFalse)

	_, ok = rewrite.DecodeText([]byte{})
	c.Assert(ok, qt.IsFalse)
}
