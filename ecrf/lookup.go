// Package ecrf resolves form names to page numbers inside the reference
// (blank) eCRF document.
package ecrf

import (
	"slices"
	"strings"
	"sync"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/maruel/natural"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"acrf/pdf"
)

// Lookup resolves form name to its 1-based page number.
type Lookup interface {
	FormPage(name string) (int, bool)
	// Forms lists known form names ordered by page.
	Forms() []string
}

// Normalize brings form title to canonical form used for comparisons: NFC,
// with runs of white space collapsed.
func Normalize(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// Outline is lookup built from reference document bookmarks. Names missing
// from bookmarks are searched for in the page text when path to the document
// is known.
type Outline struct {
	log   *zap.Logger
	path  string
	pages map[string]int

	once  sync.Once
	texts []string
}

// FromDocument builds lookup from document outline. When the same title is
// bookmarked more than once the first one wins.
func FromDocument(doc *pdf.Document, log *zap.Logger) *Outline {
	o := &Outline{log: log, pages: make(map[string]int)}
	for _, item := range doc.Outline() {
		if item.Page <= 0 {
			continue
		}
		name := Normalize(item.Title)
		if _, exists := o.pages[name]; !exists && name != "" {
			o.pages[name] = item.Page
		}
	}
	return o
}

// Load reads reference document from path.
func Load(path string, log *zap.Logger) (*Outline, error) {
	doc, err := pdf.Load(path)
	if err != nil {
		return nil, err
	}
	o := FromDocument(doc, log)
	o.path = path
	log.Debug("Reference eCRF loaded", zap.String("path", path), zap.Int("bookmarks", len(o.pages)), zap.Int("pages", doc.PageCount()))
	return o, nil
}

func (o *Outline) FormPage(name string) (int, bool) {
	name = Normalize(name)
	if page, ok := o.pages[name]; ok {
		return page, true
	}
	if o.path == "" || name == "" {
		return 0, false
	}

	o.once.Do(o.loadTexts)
	for i, text := range o.texts {
		if strings.Contains(text, name) {
			o.log.Debug("Form located by page text", zap.String("form", name), zap.Int("page", i+1))
			return i + 1, true
		}
	}
	return 0, false
}

func (o *Outline) Forms() []string {
	names := make([]string, 0, len(o.pages))
	for name := range o.pages {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if pa, pb := o.pages[a], o.pages[b]; pa != pb {
			return pa - pb
		}
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	return names
}

// loadTexts extracts plain text of every page, failures leave lookup with
// bookmarks only.
func (o *Outline) loadTexts() {
	f, reader, err := pdflib.Open(o.path)
	if err != nil {
		o.log.Warn("Unable to extract reference eCRF text", zap.String("path", o.path), zap.Error(err))
		return
	}
	defer f.Close()

	texts := make([]string, reader.NumPage())
	for i := range texts {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i] = Normalize(text)
	}
	o.texts = texts
}

// Static is lookup over fixed table, mostly useful when pages are known
// upfront.
type Static map[string]int

func (s Static) FormPage(name string) (int, bool) {
	page, ok := s[Normalize(name)]
	return page, ok
}

func (s Static) Forms() []string {
	o := &Outline{pages: s}
	return o.Forms()
}
