// Package rewrite flips the token "false" to "true" in textual HTTP bodies.
//
// The work is split in three steps that run in order for every response:
//
//  1. IsEligible decides from the Content-Type whether a body is looked at.
//  2. DecodeText turns the raw bytes into text (UTF-8, then Latin-1).
//  3. Engine.Rewrite substitutes the token, structurally for JSON documents
//     and literally for everything else.
//
// Engine.Process chains the three. Nothing in this package blocks or does
// I/O, and an Engine carries no per-response state, so one Engine may serve
// any number of goroutines.
package rewrite

import (
	"log/slog"
	"strings"
)

const (
	falseToken      = "false"
	trueToken       = "true"
	falseTitleToken = "False"
	trueTitleToken  = "True"
)

// Status summarizes what happened to one body.
type Status uint8

const (
	// StatusIneligible means the content type is not a text type.
	StatusIneligible Status = iota
	// StatusUndecodable means the body is empty or not text.
	StatusUndecodable
	// StatusUnchanged means the body was inspected but left as it was.
	StatusUnchanged
	// StatusModified means Outcome.Body holds a rewritten body.
	StatusModified
)

func (s Status) String() string {
	switch s {
	case StatusIneligible:
		return "ineligible"
	case StatusUndecodable:
		return "undecodable"
	case StatusUnchanged:
		return "unchanged"
	case StatusModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Outcome is the result of rewriting one body.
type Outcome struct {
	Status Status
	// Changed is true when Body differs from the input.
	Changed bool
	// FalseCount is the number of "false" substrings in the original text.
	FalseCount int
	// Body is the rewritten UTF-8 body; nil unless Changed.
	Body []byte
	// Structural is true when the JSON walk produced Body.
	Structural bool
}

// Engine performs the substitution.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine logging to logger, or to slog.Default() when
// logger is nil.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("in", "rewrite.Engine")}
}

// Process runs the eligibility check, the text decoding and the
// substitution for one body.
func (e *Engine) Process(body []byte, contentType string) Outcome {
	if !IsEligible(contentType) {
		return Outcome{Status: StatusIneligible}
	}
	text, encoding, ok := decodeText(body)
	if !ok {
		e.logger.Debug("cannot decode response body", "contentType", contentType)
		return Outcome{Status: StatusUndecodable}
	}
	if encoding != decodeAttempts[0].name {
		e.logger.Debug("decoded response body with fallback encoding", "encoding", encoding)
	}
	return e.Rewrite(text, contentType)
}

// Rewrite substitutes "false" in text.
//
// Non-JSON text gets two plain replacements: "false" with "true", then
// "False" with "True", anywhere they occur, including inside longer words.
// When contentType names application/json and text parses, the document is
// walked instead and only boolean false and the exact strings "false" and
// "False" change; the serialized walk replaces the literal result.
// Text that claims to be JSON but does not parse keeps the literal result.
func (e *Engine) Rewrite(text, contentType string) Outcome {
	falseCount := strings.Count(text, falseToken)
	if falseCount == 0 {
		return Outcome{Status: StatusUnchanged}
	}

	modified := strings.ReplaceAll(text, falseToken, trueToken)
	modified = strings.ReplaceAll(modified, falseTitleToken, trueTitleToken)

	structural := false
	if isJSON(contentType) {
		doc, err := ParseJSON(text)
		if err != nil {
			e.logger.Debug("content looks like JSON but is not valid, using simple replacement", "error", err)
		} else {
			modified = Flip(doc).String()
			structural = true
		}
	}

	if modified == text {
		return Outcome{Status: StatusUnchanged, FalseCount: falseCount, Structural: structural}
	}

	e.logger.Debug("rewrote body",
		"falseBefore", falseCount,
		"falseAfter", strings.Count(modified, falseToken),
		"trueBefore", strings.Count(text, trueToken),
		"trueAfter", strings.Count(modified, trueToken),
		"structural", structural,
	)

	return Outcome{
		Status:     StatusModified,
		Changed:    true,
		FalseCount: falseCount,
		Body:       []byte(modified),
		Structural: structural,
	}
}
