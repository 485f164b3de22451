package rewrite_test

import (
	"encoding/json"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var textChunks = []string{"false", "False", "true", "fals", "e", "F", " ", "x", "\n", "é", "{", "\""}

func TestLiteralPathRemovesEveryFalse(t *testing.T) {
	engine := newEngine()
	rapid.Check(t, func(t *rapid.T) {
		chunks := rapid.SliceOf(rapid.SampledFrom(textChunks)).Draw(t, "chunks")
		text := strings.Join(chunks, "")
		want := strings.Count(text, "false")

		out := engine.Process([]byte(text), "text/plain")

		if want == 0 {
			if out.Changed {
				t.Fatalf("unexpected change for %q", text)
			}
			return
		}
		if !out.Changed {
			t.Fatalf("expected change for %q", text)
		}
		if out.FalseCount != want {
			t.Fatalf("false count = %d, want %d", out.FalseCount, want)
		}
		if strings.Contains(string(out.Body), "false") {
			t.Fatalf("output %q still contains false", out.Body)
		}
		if again := engine.Process(out.Body, "text/plain"); again.Changed {
			t.Fatalf("second pass changed %q", out.Body)
		}
	})
}

var (
	jsonKeys    = []string{"a", "b", "false", "False", "ready"}
	jsonStrings = []string{"false", "False", "falsehood", "true", "", "é✓", `quo"te`}
)

func drawJSON(t *rapid.T, depth int) any {
	kind := rapid.IntRange(0, 5).Draw(t, "kind")
	if depth >= 3 && kind >= 4 {
		kind = 0
	}
	switch kind {
	case 0:
		return rapid.Bool().Draw(t, "bool")
	case 1:
		return rapid.SampledFrom(jsonStrings).Draw(t, "string")
	case 2:
		return float64(rapid.IntRange(-100, 100).Draw(t, "number"))
	case 3:
		return nil
	case 4:
		n := rapid.IntRange(0, 3).Draw(t, "len")
		items := make([]any, n)
		for i := range items {
			items[i] = drawJSON(t, depth+1)
		}
		return items
	default:
		n := rapid.IntRange(0, 3).Draw(t, "len")
		obj := make(map[string]any, n)
		for i := 0; i < n; i++ {
			obj[rapid.SampledFrom(jsonKeys).Draw(t, "key")] = drawJSON(t, depth+1)
		}
		return obj
	}
}

// flipped reports whether out is in with exactly the false literals flipped.
func flipped(in, out any) bool {
	switch v := in.(type) {
	case map[string]any:
		o, ok := out.(map[string]any)
		if !ok || len(o) != len(v) {
			return false
		}
		for k, item := range v {
			if !flipped(item, o[k]) {
				return false
			}
		}
		return true
	case []any:
		o, ok := out.([]any)
		if !ok || len(o) != len(v) {
			return false
		}
		for i := range v {
			if !flipped(v[i], o[i]) {
				return false
			}
		}
		return true
	case bool:
		return out == true
	case string:
		switch v {
		case "false":
			return out == "true"
		case "False":
			return out == "True"
		}
		return out == v
	default:
		return in == out
	}
}

func TestJSONPathFlipsOnlyFalseLiterals(t *testing.T) {
	engine := newEngine()
	rapid.Check(t, func(t *rapid.T) {
		doc := drawJSON(t, 0)
		in, err := json.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}

		out := engine.Process(in, "application/json")
		if out.FalseCount == 0 {
			if out.Changed {
				t.Fatalf("unexpected change for %s", in)
			}
			return
		}

		body := in
		if out.Changed {
			body = out.Body
		}
		var got any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("output %q is not valid JSON: %v", body, err)
		}
		if !flipped(doc, got) {
			t.Fatalf("output %s is not a flip of %s", body, in)
		}
		if again := engine.Process(body, "application/json"); again.Changed {
			t.Fatalf("second pass changed %s", body)
		}
	})
}
