package forms

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/nursery-backend/internal/domain"
)

// Kind is the class of a field and selects its rule set.
type Kind int

const (
	KindString Kind = iota // trimmed text, Min/Max rune length
	KindEmail              // simple local@domain.tld, lower-cased
	KindPhone              // length >= 10 and E.164-like after stripping
	KindDate               // calendar date, see DateRule
	KindEnum               // member of Options (case-insensitive, stored canonical)
	KindNumber             // JSON number or numeric string, >= Min
	KindYesNo              // bool or yes/no string, stored "Yes"/"No"
	KindBool               // bool or yes/no string, stored bool
	KindList               // string list with Min..Max items, elements per Elem
)

// DateRule selects the date constraints of a date field or list element.
type DateRule struct {
	NotPast     bool // today or later
	PastOnly    bool // strictly before today (dates of birth)
	WeekdayOnly bool // Monday to Friday
}

// Cond makes a field required when another field's yes/no or text value
// equals Equals (case-insensitive).
type Cond struct {
	Key    string
	Equals string
}

// Field is one declarative field rule.
type Field struct {
	Key        string
	Label      string
	Kind       Kind
	Required   bool
	Min, Max   int
	Options    []string
	Date       DateRule
	Elem       Kind
	Unique     bool
	MustBeTrue bool
	RequiredIf *Cond
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}

// option returns the canonical allow-list entry matching s.
func (f Field) option(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, o := range f.Options {
		if strings.EqualFold(o, s) {
			return o, true
		}
	}
	return "", false
}

func (f Field) requiredBy(raw map[string]any) bool {
	if f.RequiredIf == nil {
		return false
	}
	v, ok := raw[f.RequiredIf.Key]
	if !ok {
		return false
	}
	if yn, ok := yesNo(v); ok && strings.EqualFold(yn, f.RequiredIf.Equals) {
		return true
	}
	s, _ := v.(string)
	return strings.EqualFold(strings.TrimSpace(s), f.RequiredIf.Equals)
}

// Check is a cross-field rule run over the normalized record after all
// fields. It returns zero or more error messages.
type Check func(r Record) []string

// Schema describes one form type.
type Schema struct {
	Type   domain.SubmissionType
	Title  string
	Fields []Field
	Checks []Check
}

// Field returns the field rule for key.
func (s Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Record is a normalized form record: strings are trimmed, emails
// lower-cased, dates YYYY-MM-DD, numbers float64, lists []string,
// yes/no fields "Yes"/"No" and declarations bool.
type Record map[string]any

// Str returns the string value of key or "".
func (r Record) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// List returns the list value of key or nil.
func (r Record) List(key string) []string {
	l, _ := r[key].([]string)
	return l
}

// Num returns the numeric value of key and whether it is present.
func (r Record) Num(key string) (float64, bool) {
	n, ok := r[key].(float64)
	return n, ok
}

// Bool returns the boolean value of key; "Yes" counts as true.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		return v == "Yes"
	}
	return false
}

// Has reports whether key made it into the record.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Row is a label/value pair ready for display.
type Row struct {
	Label string
	Value string
}

// Rows renders the record in schema order, skipping absent fields. Lists
// are comma-joined and declarations shown as Yes/No.
func (s Schema) Rows(r Record) []Row {
	out := make([]Row, 0, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := r[f.Key]
		if !ok {
			continue
		}
		out = append(out, Row{Label: f.label(), Value: Display(v)})
	}
	return out
}

// Display formats a normalized record value.
func Display(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
