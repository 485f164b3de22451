package helper_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/false2true/false2true/internal/helper"
)

func TestGetTLSKeyLogWriterReturnsNilWhenNotConfigured(t *testing.T) {
	c := qt.New(t)

	writer := helper.GetTLSKeyLogWriter()

	c.Assert(writer, qt.IsNil)
}
