// Package forms validates raw, untyped form input against declarative
// schemas and produces a normalized record. Validation is pure: the only
// external input is the injected clock used for "today".
//
// Field-level rules are delegated to go-playground/validator through a set
// of custom tags (simple_email, phone_e164, iso_date, not_past, weekday,
// past_date); enum membership, conditional requirements and cross-field
// checks are evaluated here. Every field is checked and every applicable
// error is reported in one pass.
package forms

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the normalized calendar date format stored in records.
const DateLayout = "2006-01-02"

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe   = regexp.MustCompile(`^[+]?[1-9][0-9]{3,14}$`)
	phoneJunk = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Validator checks raw input against schemas. It is safe for concurrent use.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
	loc *time.Location
}

// New builds a Validator. now defaults to time.Now and loc to UTC; loc is
// the zone in which "today" is computed.
func New(now func() time.Time, loc *time.Location) *Validator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	fv := &Validator{v: validator.New(), now: now, loc: loc}
	fv.register()
	return fv
}

func (fv *Validator) register() {
	tags := map[string]validator.Func{
		"simple_email": func(fl validator.FieldLevel) bool {
			return emailRe.MatchString(fl.Field().String())
		},
		"phone_e164": func(fl validator.FieldLevel) bool {
			return phoneRe.MatchString(NormalizePhone(fl.Field().String()))
		},
		"iso_date": func(fl validator.FieldLevel) bool {
			_, ok := ParseDate(fl.Field().String(), fv.loc)
			return ok
		},
		"not_past": func(fl validator.FieldLevel) bool {
			d, ok := ParseDate(fl.Field().String(), fv.loc)
			return ok && !d.Before(fv.today())
		},
		"past_date": func(fl validator.FieldLevel) bool {
			d, ok := ParseDate(fl.Field().String(), fv.loc)
			return ok && d.Before(fv.today())
		},
		"weekday": func(fl validator.FieldLevel) bool {
			d, ok := ParseDate(fl.Field().String(), fv.loc)
			if !ok {
				return false
			}
			wd := d.Weekday()
			return wd != time.Saturday && wd != time.Sunday
		},
	}
	for tag, fn := range tags {
		// Registration only fails on empty tags or nil funcs.
		if err := fv.v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

// today returns midnight of the current day in the configured zone.
func (fv *Validator) today() time.Time {
	n := fv.now().In(fv.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, fv.loc)
}

// Today exposes the midnight-normalized "today" used by date rules.
func (fv *Validator) Today() time.Time { return fv.today() }

// passes reports whether value satisfies the validator tag expression.
func (fv *Validator) passes(value any, tag string) bool {
	return fv.v.Var(value, tag) == nil
}

// Result is the outcome of one validation pass. Valid is true exactly when
// Errors is empty; Record holds only the schema's fields, normalized.
type Result struct {
	Valid  bool
	Errors []string
	Record Record
}

// Validate checks raw against s, accumulating every error.
func (fv *Validator) Validate(s Schema, raw map[string]any) Result {
	rec := Record{}
	var errs []string
	if raw == nil {
		raw = map[string]any{}
	}

	for _, f := range s.Fields {
		v, present := raw[f.Key]
		if !present || isBlank(v) {
			if f.Required || f.requiredBy(raw) {
				errs = append(errs, f.label()+" is required")
			}
			continue
		}
		val, ferrs := fv.field(f, v)
		errs = append(errs, ferrs...)
		if len(ferrs) == 0 {
			rec[f.Key] = val
		}
	}

	for _, check := range s.Checks {
		errs = append(errs, check(rec)...)
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Record: rec}
}

// field validates one present, non-blank value.
func (fv *Validator) field(f Field, v any) (any, []string) {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, []string{f.label() + " must be text"}
		}
		s = strings.TrimSpace(s)
		if f.Min > 0 && !fv.passes(s, fmt.Sprintf("min=%d", f.Min)) {
			return nil, []string{fmt.Sprintf("%s must be at least %d characters", f.label(), f.Min)}
		}
		if f.Max > 0 && !fv.passes(s, fmt.Sprintf("max=%d", f.Max)) {
			return nil, []string{fmt.Sprintf("%s must be at most %d characters", f.label(), f.Max)}
		}
		return s, nil

	case KindEmail:
		s, ok := v.(string)
		if !ok {
			return nil, []string{"Please enter a valid email address"}
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if !fv.passes(s, "simple_email") {
			return nil, []string{"Please enter a valid email address"}
		}
		return s, nil

	case KindPhone:
		s, ok := v.(string)
		if !ok {
			return nil, []string{"Please enter a valid phone number"}
		}
		s = strings.TrimSpace(s)
		var errs []string
		if !fv.passes(s, "min=10") {
			errs = append(errs, "Phone number must be at least 10 characters")
		}
		if !fv.passes(s, "phone_e164") {
			errs = append(errs, "Please enter a valid phone number")
		}
		return s, errs

	case KindDate:
		s, ok := v.(string)
		if !ok {
			return nil, []string{f.label() + " must be a valid date"}
		}
		return fv.date(f.label(), f.Date, strings.TrimSpace(s))

	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, []string{"Please select a valid " + strings.ToLower(f.label())}
		}
		canon, ok := f.option(s)
		if !ok {
			return nil, []string{"Please select a valid " + strings.ToLower(f.label())}
		}
		return canon, nil

	case KindNumber:
		n, ok := toNumber(v)
		if !ok {
			return nil, []string{f.label() + " must be a number"}
		}
		if !fv.passes(n, fmt.Sprintf("gte=%d", f.Min)) {
			return nil, []string{fmt.Sprintf("%s must be at least %d", f.label(), f.Min)}
		}
		return n, nil

	case KindYesNo:
		yn, ok := yesNo(v)
		if !ok {
			return nil, []string{f.label() + " must be Yes or No"}
		}
		return yn, nil

	case KindBool:
		b, ok := toBool(v)
		if !ok {
			return nil, []string{f.label() + " must be true or false"}
		}
		if f.MustBeTrue && !b {
			return nil, []string{f.label() + " must be accepted"}
		}
		return b, nil

	case KindList:
		return fv.list(f, v)
	}
	return nil, []string{f.label() + " has an unsupported type"}
}

func (fv *Validator) date(label string, rule DateRule, s string) (any, []string) {
	if !fv.passes(s, "iso_date") {
		return nil, []string{label + " must be a valid date"}
	}
	var errs []string
	if rule.NotPast && !fv.passes(s, "not_past") {
		errs = append(errs, label+" cannot be in the past")
	}
	if rule.PastOnly && !fv.passes(s, "past_date") {
		errs = append(errs, label+" must be in the past")
	}
	if rule.WeekdayOnly && !fv.passes(s, "weekday") {
		errs = append(errs, label+" must be a weekday (Monday to Friday)")
	}
	d, _ := ParseDate(s, fv.loc)
	return d.Format(DateLayout), errs
}

func (fv *Validator) list(f Field, v any) (any, []string) {
	items, ok := toStrings(v)
	if !ok {
		return nil, []string{f.label() + " must be a list"}
	}
	var errs []string
	if f.Min > 0 && !fv.passes(items, fmt.Sprintf("min=%d", f.Min)) {
		errs = append(errs, fmt.Sprintf("Please select at least %d %s", f.Min, strings.ToLower(f.label())))
	}
	if f.Max > 0 && !fv.passes(items, fmt.Sprintf("max=%d", f.Max)) {
		errs = append(errs, fmt.Sprintf("Please select no more than %d %s", f.Max, strings.ToLower(f.label())))
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		switch f.Elem {
		case KindDate:
			d, derrs := fv.date(fmt.Sprintf("Date %s", it), f.Date, it)
			errs = append(errs, derrs...)
			if s, ok := d.(string); ok {
				out = append(out, s)
			}
		case KindEnum:
			canon, ok := f.option(it)
			if !ok {
				errs = append(errs, fmt.Sprintf("%q is not a valid %s option", it, strings.ToLower(f.label())))
				continue
			}
			out = append(out, canon)
		default:
			if it != "" {
				out = append(out, it)
			}
		}
	}
	if f.Unique && hasDuplicates(out) {
		errs = append(errs, f.label()+" must not contain duplicates")
	}
	return out, errs
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if d, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		ts = ts.In(loc)
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}

// NormalizePhone strips spaces, dashes and parentheses. A single leading
// trunk 0 (UK national format) is rewritten to +44.
func NormalizePhone(s string) string {
	p := phoneJunk.Replace(strings.TrimSpace(s))
	if len(p) > 1 && p[0] == '0' && p[1] != '0' {
		p = "+44" + p[1:]
	}
	return p
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "on", "1":
			return true, true
		case "false", "no", "n", "off", "0":
			return false, true
		}
	}
	return false, false
}

func yesNo(v any) (string, bool) {
	b, ok := toBool(v)
	if !ok {
		return "", false
	}
	if b {
		return "Yes", true
	}
	return "No", true
}

func toStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func hasDuplicates(items []string) bool {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			return true
		}
		seen[it] = struct{}{}
	}
	return false
}

// ErrUnknownSchema is returned by Lookup for unregistered types.
var ErrUnknownSchema = errors.New("unknown form schema")
