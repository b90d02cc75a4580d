// Package pdfdoc builds printable records of document-type submissions
// (applications, medical and consent forms, declarations) and renders them
// to PDF with go-pdf/fpdf. Builders are pure functions of the normalized
// form record; the Renderer owns layout.
package pdfdoc

import (
	"time"

	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
)

// ItemKind selects how an item is laid out.
type ItemKind int

const (
	ItemRow     ItemKind = iota // two-column label/value
	ItemText                    // label heading over a full-width paragraph
	ItemConsent                 // label with a granted/not granted marker
	ItemNotice                  // boxed full-width notice
)

// Item is one printable element of a section.
type Item struct {
	Kind    ItemKind
	Label   string
	Value   string
	Granted bool
}

// Section is a titled group of items.
type Section struct {
	Title string
	Items []Item
}

// Document is a renderable submission record.
type Document struct {
	Title       string
	Reference   string
	SubmittedAt time.Time
	Sections    []Section
}

// Section returns the section titled title.
func (d Document) Section(title string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return Section{}, false
}

// Builder lays out the sections of one submission type.
type Builder func(r forms.Record) []Section

// Supports reports whether t has a PDF document.
func Supports(t domain.SubmissionType) bool {
	_, ok := builders[t]
	return ok
}

// Build assembles the document for a submission. ok is false for types
// without a printable document.
func Build(t domain.SubmissionType, title, reference string, submitted time.Time, r forms.Record) (Document, bool) {
	b, ok := builders[t]
	if !ok {
		return Document{}, false
	}
	return Document{
		Title:       title,
		Reference:   reference,
		SubmittedAt: submitted,
		Sections:    b(r),
	}, true
}

// section collects items and drops empty sections.
type section struct {
	rec   forms.Record
	title string
	items []Item
}

func newSection(r forms.Record, title string) *section {
	return &section{rec: r, title: title}
}

// row adds key as a label/value row when present.
func (s *section) row(label, key string) *section {
	if !s.rec.Has(key) {
		return s
	}
	s.items = append(s.items, Item{Kind: ItemRow, Label: label, Value: forms.Display(s.rec[key])})
	return s
}

// date adds key formatted as a long date.
func (s *section) date(label, key string) *section {
	v := s.rec.Str(key)
	if v == "" {
		return s
	}
	if d, err := time.Parse(forms.DateLayout, v); err == nil {
		v = d.Format("2 January 2006")
	}
	s.items = append(s.items, Item{Kind: ItemRow, Label: label, Value: v})
	return s
}

func (s *section) text(label, key string) *section {
	v := s.rec.Str(key)
	if v == "" {
		return s
	}
	s.items = append(s.items, Item{Kind: ItemText, Label: label, Value: v})
	return s
}

func (s *section) consent(label, key string) *section {
	if !s.rec.Has(key) {
		return s
	}
	s.items = append(s.items, Item{Kind: ItemConsent, Label: label, Granted: s.rec.Bool(key)})
	return s
}

func (s *section) notice(text string) *section {
	s.items = append(s.items, Item{Kind: ItemNotice, Value: text})
	return s
}

func (s *section) fixed(label, value string) *section {
	s.items = append(s.items, Item{Kind: ItemRow, Label: label, Value: value})
	return s
}

func collect(all ...*section) []Section {
	out := make([]Section, 0, len(all))
	for _, s := range all {
		if s == nil || len(s.items) == 0 {
			continue
		}
		out = append(out, Section{Title: s.title, Items: s.items})
	}
	return out
}
