package rewrite

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a parsed JSON document. Only the fields matching Kind are set:
// Bool for KindBool, Str for KindString and KindNumber (the number's source
// literal), Items for KindArray and Members for KindObject.
type Value struct {
	Kind    Kind
	Bool    bool
	Str     string
	Items   []Value
	Members []Member
}

// Member is one key/value pair of a JSON object, kept in document order.
type Member struct {
	Key   string
	Value Value
}

func Null() Value                 { return Value{Kind: KindNull} }
func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func String(s string) Value       { return Value{Kind: KindString, Str: s} }
func Number(literal string) Value { return Value{Kind: KindNumber, Str: literal} }
func Array(items ...Value) Value  { return Value{Kind: KindArray, Items: items} }
func Object(members ...Member) Value {
	return Value{Kind: KindObject, Members: members}
}

// Get returns the value stored under key in an object.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// maxDepth caps nesting of objects and arrays, matching encoding/json.
const maxDepth = 10000

var (
	errTrailingData = errors.New("json: trailing data after top-level value")
	errTooDeep      = errors.New("json: exceeded max depth")
)

// ParseJSON parses text as a single JSON document. Repeated object keys keep
// the position of their first occurrence and the value of their last.
func ParseJSON(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	v, err := parseValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return Value{}, err
	}
	return v, nil
}

func parseValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case string:
		return String(t), nil
	case json.Delim:
		if depth >= maxDepth {
			return Value{}, errTooDeep
		}
		switch t {
		case '{':
			return parseObject(dec, depth+1)
		case '[':
			return parseArray(dec, depth+1)
		}
		return Value{}, fmt.Errorf("json: unexpected delimiter %q", rune(t))
	default:
		return Value{}, fmt.Errorf("json: unexpected token %T", tok)
	}
}

func parseObject(dec *json.Decoder, depth int) (Value, error) {
	members := make([]Member, 0)
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("json: object key is %T, not string", tok)
		}
		val, err := parseValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		if i, dup := index[key]; dup {
			members[i].Value = val
			continue
		}
		index[key] = len(members)
		members = append(members, Member{Key: key, Value: val})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Object(members...), nil
}

func parseArray(dec *json.Decoder, depth int) (Value, error) {
	items := make([]Value, 0)
	for dec.More() {
		val, err := parseValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, val)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(items...), nil
}

// Flip returns v with every boolean false replaced by true and every string
// exactly equal to "false" or "False" replaced by "true" or "True". Keys,
// numbers, null, true and all other strings are returned as they are.
func Flip(v Value) Value {
	switch v.Kind {
	case KindObject:
		members := make([]Member, len(v.Members))
		for i, m := range v.Members {
			members[i] = Member{Key: m.Key, Value: Flip(m.Value)}
		}
		return Object(members...)
	case KindArray:
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = Flip(item)
		}
		return Array(items...)
	case KindBool:
		if !v.Bool {
			return Bool(true)
		}
		return v
	case KindString:
		switch v.Str {
		case "false":
			return String("true")
		case "False":
			return String("True")
		}
		return v
	default:
		return v
	}
}

// String serializes v. Non-ASCII characters are written as they are and
// items are separated by ", " and ": ".
func (v Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.Kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		if v.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindNumber:
		sb.WriteString(v.Str)
	case KindString:
		writeQuoted(sb, v.Str)
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeTo(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeQuoted(sb, m.Key)
			sb.WriteString(": ")
			m.Value.writeTo(sb)
		}
		sb.WriteByte('}')
	}
}

const hexDigits = "0123456789abcdef"

// writeQuoted writes s as a JSON string literal, escaping only quotes,
// backslashes and control characters.
func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			sb.WriteRune(r)
			i += size
			continue
		}
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if c < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[c>>4])
				sb.WriteByte(hexDigits[c&0xf])
			} else {
				sb.WriteByte(c)
			}
		}
		i++
	}
	sb.WriteByte('"')
}
