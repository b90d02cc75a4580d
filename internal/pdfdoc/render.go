package pdfdoc

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

const (
	font       = "Helvetica"
	labelWidth = 62.0
	lineHeight = 6.0
)

// Org is the contact block printed in the footer.
type Org struct {
	Name     string
	Address  string
	Phone    string
	Email    string
	Website  string
	LogoPath string
}

// Renderer lays documents out on A4 pages.
type Renderer struct {
	org      Org
	loc      *time.Location
	compress bool
}

// NewRenderer builds a Renderer. Timestamps are printed in loc.
func NewRenderer(org Org, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{org: org, loc: loc, compress: true}
}

// Render produces the PDF bytes for doc. Every page carries the header,
// the organisation footer and "Page n of N".
func (r *Renderer) Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(r.org.Name, true)
	pdf.SetCreator("nursery-backend", false)
	if !doc.SubmittedAt.IsZero() {
		pdf.SetCreationDate(doc.SubmittedAt)
	}
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AliasNbPages("")

	cp1252 := pdf.UnicodeTranslatorFromDescriptor("")
	w := &writer{pdf: pdf, tr: func(s string) string { return cp1252(fold1252(s)) }}
	pdf.SetHeaderFunc(func() { r.header(w, doc) })
	pdf.SetFooterFunc(func() { r.footer(w) })

	pdf.AddPage()
	for _, s := range doc.Sections {
		w.section(s)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.Reference, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) header(w *writer, doc Document) {
	pdf := w.pdf
	left, top, _, _ := pdf.GetMargins()
	if pdf.PageNo() == 1 && r.logo() {
		pdf.Image(r.org.LogoPath, left, top-5, 0, 16, false, "", 0, "")
		pdf.SetX(left + 40)
	}

	pdf.SetFont(font, "B", 16)
	pdf.SetTextColor(44, 95, 45)
	pdf.CellFormat(0, 8, w.tr(doc.Title), "", 1, "R", false, 0, "")

	pdf.SetFont(font, "", 9)
	pdf.SetTextColor(90, 90, 90)
	meta := "Reference: " + doc.Reference
	if !doc.SubmittedAt.IsZero() {
		meta += "   Submitted: " + doc.SubmittedAt.In(r.loc).Format("2 January 2006 15:04 MST")
	}
	pdf.CellFormat(0, 5, w.tr(meta), "", 1, "R", false, 0, "")

	pdf.SetDrawColor(44, 95, 45)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY() + 2
	pageW, _ := pdf.GetPageSize()
	pdf.Line(left, y, pageW-left, y)
	pdf.SetY(y + 4)
	pdf.SetTextColor(0, 0, 0)
}

func (r *Renderer) footer(w *writer) {
	pdf := w.pdf
	pdf.SetY(-20)
	pdf.SetFont(font, "", 8)
	pdf.SetTextColor(110, 110, 110)

	var parts []string
	for _, p := range []string{r.org.Name, r.org.Address, r.org.Phone, r.org.Email, r.org.Website} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		pdf.CellFormat(0, 4, w.tr(strings.Join(parts, " | ")), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 4, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (r *Renderer) logo() bool {
	if r.org.LogoPath == "" {
		return false
	}
	_, err := os.Stat(r.org.LogoPath)
	return err == nil
}

// fold1252 rewrites s so every rune exists in the cp1252 encoding used by
// the core fonts. Accented letters outside it lose their marks (ź -> z);
// anything else becomes '?'. The stored payload keeps the original text.
func fold1252(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if in1252(r) {
			b.WriteRune(r)
			continue
		}
		var base []rune
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			if !in1252(d) {
				base = nil
				break
			}
			base = append(base, d)
		}
		if len(base) == 0 {
			b.WriteByte('?')
			continue
		}
		b.WriteString(string(base))
	}
	return b.String()
}

func in1252(r rune) bool {
	_, ok := charmap.Windows1252.EncodeRune(r)
	return ok
}

// writer holds the layout primitives.
type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) section(s Section) {
	pdf := w.pdf
	pdf.Ln(2)
	pdf.SetFont(font, "B", 12)
	pdf.SetFillColor(228, 240, 228)
	pdf.CellFormat(0, 8, w.tr(s.Title), "", 1, "L", true, 0, "")
	pdf.Ln(1)
	for _, it := range s.Items {
		switch it.Kind {
		case ItemRow:
			w.row(it.Label, it.Value)
		case ItemText:
			w.text(it.Label, it.Value)
		case ItemConsent:
			w.consent(it.Label, it.Granted)
		case ItemNotice:
			w.notice(it.Value)
		}
	}
}

func (w *writer) row(label, value string) {
	pdf := w.pdf
	pdf.SetFont(font, "B", 10)
	pdf.CellFormat(labelWidth, lineHeight, w.tr(label), "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.MultiCell(0, lineHeight, w.tr(value), "", "L", false)
}

func (w *writer) text(label, value string) {
	pdf := w.pdf
	pdf.SetFont(font, "B", 10)
	pdf.CellFormat(0, lineHeight, w.tr(label), "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.MultiCell(0, 5, w.tr(value), "", "L", false)
	pdf.Ln(1)
}

func (w *writer) consent(label string, granted bool) {
	pdf := w.pdf
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(labelWidth*2, lineHeight, w.tr(label), "", 0, "L", false, 0, "")
	pdf.SetFont(font, "B", 10)
	mark := "Not granted"
	pdf.SetTextColor(170, 40, 40)
	if granted {
		mark = "Granted"
		pdf.SetTextColor(30, 120, 40)
	}
	pdf.CellFormat(0, lineHeight, mark, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (w *writer) notice(text string) {
	pdf := w.pdf
	pdf.Ln(1)
	pdf.SetFont(font, "I", 9)
	pdf.SetFillColor(250, 246, 230)
	pdf.SetDrawColor(200, 180, 120)
	pdf.SetLineWidth(0.2)
	pdf.MultiCell(0, 5, w.tr(text), "1", "L", true)
	pdf.Ln(1)
}
