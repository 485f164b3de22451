package rewrite

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeAttempt converts a raw body to text, reporting false when the bytes
// are not valid in its encoding.
type decodeAttempt struct {
	name   string
	decode func([]byte) (string, bool)
}

// decodeAttempts are tried in order; the first success wins.
var decodeAttempts = []decodeAttempt{
	{name: "utf-8", decode: decodeUTF8},
	{name: "latin-1", decode: decodeLatin1},
}

func decodeUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func decodeLatin1(b []byte) (string, bool) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// DecodeText decodes body as text. It returns false for an empty body or when
// no attempted encoding accepts the bytes; callers treat that as "not text"
// and pass the response through untouched.
func DecodeText(body []byte) (string, bool) {
	text, _, ok := decodeText(body)
	return text, ok
}

func decodeText(body []byte) (text, encoding string, ok bool) {
	if len(body) == 0 {
		return "", "", false
	}
	for _, attempt := range decodeAttempts {
		if text, ok := attempt.decode(body); ok {
			return text, attempt.name, true
		}
	}
	return "", "", false
}
