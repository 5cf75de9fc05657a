// Package merge combines several page-object graphs into one document with a
// single catalog and a single flat page tree.
package merge

import (
	"errors"
	"maps"

	"go.uber.org/zap"

	"acrf/pdf"
)

var (
	ErrNoPagesRoot = errors.New("pages root not found")
	ErrNoCatalog   = errors.New("catalog root not found")
)

type options struct {
	log     *zap.Logger
	version string
	compact bool
}

// Option tweaks merge behavior.
type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithVersion sets version written to the header of merged document.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithoutCompaction keeps unreachable objects and original numbering of the
// merged graph.
func WithoutCompaction() Option {
	return func(o *options) {
		o.compact = false
	}
}

// Documents merges graphs in order: pages of the first document come first.
// The first catalog wins, page tree roots are overlaid (first seen keys win),
// pages are reparented to the single root, outlines are dropped. Inputs are
// not modified.
func Documents(docs []*pdf.Document, opts ...Option) (*pdf.Document, error) {
	o := &options{log: zap.NewNop(), version: "1.7", compact: true}
	for _, opt := range opts {
		opt(o)
	}

	next := 1
	union := make(map[pdf.ObjectID]pdf.Object)
	var (
		pages   []pdf.Page
		info    pdf.Object
		ordered []pdf.ObjectID
	)
	for i, src := range docs {
		// shallow copy, Renumber replaces object map and trailer of the copy
		doc := *src
		first := next
		next = doc.Renumber(next)
		pages = append(pages, doc.Pages()...)
		maps.Copy(union, doc.Objects)
		ordered = append(ordered, doc.IDs()...)
		if info == nil {
			info = doc.Trailer.Get("Info")
		}
		o.log.Debug("Graph renumbered", zap.Int("graph", i), zap.Int("first", first), zap.Int("last", next-1), zap.Int("pages", doc.PageCount()))
	}

	out := pdf.New(o.version)
	var (
		catID, pagesID     pdf.ObjectID
		catalog, pagesRoot pdf.Dict
		dropped            int
	)
	for _, id := range ordered {
		obj := union[id]
		typ, err := pdf.TypeName(obj)
		if err != nil {
			out.Objects[id] = obj
			continue
		}
		switch typ {
		case "Catalog":
			if catalog == nil {
				d, _ := pdf.DictOf(obj)
				catID, catalog = id, d.Clone()
			}
		case "Pages":
			d, _ := pdf.DictOf(obj)
			if pagesRoot == nil {
				pagesID, pagesRoot = id, d.Clone()
				continue
			}
			for k, v := range d {
				if _, ok := pagesRoot[k]; !ok {
					pagesRoot[k] = v
				}
			}
		case "Page":
		case "Outlines", "Outline":
			dropped++
		default:
			out.Objects[id] = obj
		}
	}
	if pagesRoot == nil {
		return nil, ErrNoPagesRoot
	}
	if catalog == nil {
		return nil, ErrNoCatalog
	}

	kids := make(pdf.Array, 0, len(pages))
	for _, p := range pages {
		page := p.Dict.Clone()
		page["Parent"] = pdf.Ref(pagesID)
		for k, v := range p.Inherited {
			if _, ok := page[k]; !ok {
				page[k] = v
			}
		}
		out.Objects[p.ID] = page
		kids = append(kids, pdf.Ref(p.ID))
	}

	pagesRoot["Count"] = pdf.Integer(len(kids))
	pagesRoot["Kids"] = kids
	delete(pagesRoot, "Parent")
	// every page carries its own attributes now, overlaid values from other
	// graphs must not leak into pages which did not have them
	for _, k := range pdf.InheritableKeys {
		delete(pagesRoot, k)
	}
	out.Objects[pagesID] = pagesRoot

	catalog["Pages"] = pdf.Ref(pagesID)
	delete(catalog, "Outlines")
	out.Objects[catID] = catalog

	out.Trailer["Root"] = pdf.Ref(catID)
	if info != nil {
		out.Trailer["Info"] = info
	}

	before := len(out.Objects)
	if o.compact {
		out.Compact()
	}
	o.log.Debug("Graphs merged",
		zap.Int("graphs", len(docs)),
		zap.Int("pages", len(kids)),
		zap.Int("outline objects dropped", dropped),
		zap.Int("objects", len(out.Objects)),
		zap.Int("unreachable objects removed", before-len(out.Objects)),
	)
	return out, nil
}
