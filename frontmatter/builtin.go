package frontmatter

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"acrf/misc"
	"acrf/pdf"
	"acrf/toc"
)

// Layout of generated pages, all values are in points.
type Layout struct {
	Width, Height float64
	Margin        float64
	// Sizes and Indents are per tree level: root, group, leaf.
	Sizes   [3]float64
	Indents [3]float64
	// Leading is line height relative to font size.
	Leading float64
}

// A4 mirrors the classic HTML table of contents printed on A4 paper.
var A4 = Layout{
	Width:   595,
	Height:  842,
	Margin:  40,
	Sizes:   [3]float64{18, 15, 13},
	Indents: [3]float64{0, 41, 79},
	Leading: 1.5,
}

// Builtin lays out trees with standard Helvetica fonts. Only characters
// present in Windows-1252 can be shown, others are replaced with '?'.
type Builtin struct {
	log    *zap.Logger
	layout Layout
}

func NewBuiltin(layout Layout, log *zap.Logger) *Builtin {
	return &Builtin{log: log.Named("frontmatter"), layout: layout}
}

func (b *Builtin) Render(ctx context.Context, trees []*toc.Node, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := b.Document(trees)
	if err := doc.Save(destination); err != nil {
		return fmt.Errorf("unable to save front matter: %w", err)
	}
	b.log.Debug("Front matter rendered", zap.String("destination", destination), zap.Int("pages", doc.PageCount()))
	return nil
}

// Document lays trees out, every tree starts on a new page.
func (b *Builtin) Document(trees []*toc.Node) *pdf.Document {
	doc := pdf.New("1.7")
	pagesID := doc.Add(pdf.Dict{"Type": pdf.Name("Pages")})
	font := func(base string) pdf.Reference {
		return pdf.Ref(doc.Add(pdf.Dict{
			"Type":     pdf.Name("Font"),
			"Subtype":  pdf.Name("Type1"),
			"BaseFont": pdf.Name(base),
			"Encoding": pdf.Name("WinAnsiEncoding"),
		}))
	}
	resources := doc.Add(pdf.Dict{
		"Font":    pdf.Dict{"F1": font("Helvetica"), "F2": font("Helvetica-Bold")},
		"ProcSet": pdf.Array{pdf.Name("PDF"), pdf.Name("Text")},
	})

	p := &pager{layout: b.layout, doc: doc, parent: pagesID, resources: resources}
	for _, tree := range trees {
		p.newPage()
		tree.Walk(p.emit)
	}
	if len(p.kids) == 0 && p.content.Len() == 0 {
		p.newPage()
	}
	p.flush()

	if p.replaced > 0 {
		b.log.Warn("Some characters cannot be shown with built-in fonts, consider external renderer", zap.Int("replaced", p.replaced))
	}

	doc.Objects[pagesID] = pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     p.kids,
		"Count":    pdf.Integer(len(p.kids)),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Real(b.layout.Width), pdf.Real(b.layout.Height)},
	}
	info := doc.Add(pdf.Dict{
		"Title":    pdf.EncodeText("Table of contents"),
		"Producer": pdf.EncodeText(misc.GetAppName() + " " + misc.GetVersion()),
	})
	doc.Trailer["Root"] = pdf.Ref(doc.Add(pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(pagesID)}))
	doc.Trailer["Info"] = pdf.Ref(info)
	return doc
}

type pager struct {
	layout    Layout
	doc       *pdf.Document
	parent    pdf.ObjectID
	resources pdf.ObjectID

	kids     pdf.Array
	content  bytes.Buffer
	annots   pdf.Array
	y        float64
	started  bool
	replaced int
}

func (p *pager) newPage() {
	if p.started {
		p.flush()
	}
	p.started = true
	p.y = p.layout.Height - p.layout.Margin
}

func (p *pager) flush() {
	if !p.started {
		return
	}
	page := pdf.Dict{
		"Type":      pdf.Name("Page"),
		"Parent":    pdf.Ref(p.parent),
		"Resources": pdf.Ref(p.resources),
		"Contents":  pdf.Ref(p.doc.Add(pdf.Compress(pdf.Dict{}, p.content.Bytes()))),
	}
	if len(p.annots) > 0 {
		page["Annots"] = p.annots
	}
	p.kids = append(p.kids, pdf.Ref(p.doc.Add(page)))

	p.content.Reset()
	p.annots = nil
	p.started = false
}

func (p *pager) emit(node *toc.Node, depth int) {
	level := min(depth, 2)
	size := p.layout.Sizes[level]
	x := p.layout.Margin + p.layout.Indents[level]
	fontName := "F1"
	if node.Kind == toc.KindRoot {
		fontName = "F2"
	}
	link := node.IsLeaf() && node.ID != nil

	encoded := p.encode(node.Name)
	for _, text := range wrap(encoded, size, p.layout.Width-p.layout.Margin-x) {
		lead := size * p.layout.Leading
		if p.y-lead < p.layout.Margin {
			p.newPage()
		}
		p.y -= lead

		color := "0 g"
		if link {
			color = "0 0 1 rg"
		}
		fmt.Fprintf(&p.content, "%s BT /%s %s Tf %s %s Td %s Tj ET\n",
			color, fontName, num(size), num(x), num(p.y), pdf.String(text).Literal())

		if link {
			annot := pdf.Dict{
				"Type":    pdf.Name("Annot"),
				"Subtype": pdf.Name("Link"),
				"Rect": pdf.Array{
					pdf.Real(x), pdf.Real(p.y - size*0.25),
					pdf.Real(x + textWidth(text, size)), pdf.Real(p.y + size*0.8),
				},
				"Border": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(0)},
				"Dest":   pdf.Name(strconv.Itoa(*node.ID)),
			}
			p.annots = append(p.annots, pdf.Ref(p.doc.Add(annot)))
		}
	}
}

func (p *pager) encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
		p.replaced++
	}
	return out
}

// wrap splits text on spaces so that every line fits into width. Words
// longer than width are not broken.
func wrap(text []byte, size, width float64) [][]byte {
	words := bytes.Fields(text)
	if len(words) == 0 {
		return [][]byte{{}}
	}
	var (
		lines [][]byte
		cur   []byte
	)
	for _, w := range words {
		if len(cur) == 0 {
			cur = append(cur, w...)
			continue
		}
		candidate := append(append(append([]byte(nil), cur...), ' '), w...)
		if textWidth(candidate, size) > width {
			lines = append(lines, cur)
			cur = append([]byte(nil), w...)
			continue
		}
		cur = candidate
	}
	return append(lines, cur)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
