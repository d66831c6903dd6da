// Package callback encodes button payloads. A payload is an action tag plus
// up to MaxFields positional fields, joined with Separator, and must fit the
// messenger's 64-byte callback_data limit. Encode and Decode are exact
// inverses: Decode(Encode(tag, f...)) yields the tag and the fields in their
// string form.
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Separator joins the tag and fields.
	Separator = ":"
	// MaxFields is the maximum number of fields after the tag.
	MaxFields = 3
	// MaxLen is the maximum encoded length in bytes.
	MaxLen = 64
)

var (
	ErrEmptyTag      = errors.New("callback: empty tag")
	ErrTooManyFields = errors.New("callback: too many fields")
	ErrSeparator     = errors.New("callback: value contains separator")
	ErrTooLong       = errors.New("callback: payload too long")
	ErrField         = errors.New("callback: bad field")
)

// Data is a decoded payload.
type Data struct {
	Tag    string
	Fields []string
}

// Encode builds a payload token. Fields may be strings, signed or unsigned
// integers, or booleans (encoded as "1"/"0").
func Encode(tag string, fields ...any) (string, error) {
	if tag == "" {
		return "", ErrEmptyTag
	}
	if strings.Contains(tag, Separator) {
		return "", ErrSeparator
	}
	if len(fields) > MaxFields {
		return "", ErrTooManyFields
	}
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, tag)
	for i, f := range fields {
		s, err := format(f)
		if err != nil {
			return "", fmt.Errorf("field %d: %w", i, err)
		}
		if strings.Contains(s, Separator) {
			return "", ErrSeparator
		}
		parts = append(parts, s)
	}
	tok := strings.Join(parts, Separator)
	if len(tok) > MaxLen {
		return "", ErrTooLong
	}
	return tok, nil
}

// MustEncode is Encode for payloads built from constants; it panics on error.
func MustEncode(tag string, fields ...any) string {
	tok, err := Encode(tag, fields...)
	if err != nil {
		panic(err)
	}
	return tok
}

// Decode parses a payload token.
func Decode(token string) (Data, error) {
	if token == "" {
		return Data{}, ErrEmptyTag
	}
	if len(token) > MaxLen {
		return Data{}, ErrTooLong
	}
	parts := strings.Split(token, Separator)
	if parts[0] == "" {
		return Data{}, ErrEmptyTag
	}
	if len(parts)-1 > MaxFields {
		return Data{}, ErrTooManyFields
	}
	d := Data{Tag: parts[0]}
	if len(parts) > 1 {
		d.Fields = parts[1:]
	}
	return d, nil
}

// Len returns the number of fields.
func (d Data) Len() int { return len(d.Fields) }

// String returns field i, or an error if absent.
func (d Data) String(i int) (string, error) {
	if i < 0 || i >= len(d.Fields) {
		return "", fmt.Errorf("%w: index %d of %d", ErrField, i, len(d.Fields))
	}
	return d.Fields[i], nil
}

// Int parses field i as int.
func (d Data) Int(i int) (int, error) {
	s, err := d.String(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrField, err)
	}
	return n, nil
}

// Int64 parses field i as int64.
func (d Data) Int64(i int) (int64, error) {
	s, err := d.String(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrField, err)
	}
	return n, nil
}

// Uint parses field i as an unsigned id.
func (d Data) Uint(i int) (uint, error) {
	s, err := d.String(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrField, err)
	}
	return uint(n), nil
}

// Bool parses field i as written by Encode.
func (d Data) Bool(i int) (bool, error) {
	s, err := d.String(i)
	if err != nil {
		return false, err
	}
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a bool", ErrField, s)
}

// HasPrefix reports whether the tag starts with prefix.
func (d Data) HasPrefix(prefix string) bool { return strings.HasPrefix(d.Tag, prefix) }

func format(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("%w: unsupported type %T", ErrField, v)
}
