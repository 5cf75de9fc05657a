package merge

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"acrf/pdf"
)

// document builds graph with n pages labeled "<label> <n>", optionally with
// an outline. Object numbers start at 1 in every graph so merging always has
// to deal with colliding ids.
func document(label string, n int, withOutline bool) *pdf.Document {
	doc := pdf.New("1.7")
	pagesID := doc.Add(pdf.Dict{"Type": pdf.Name("Pages")})
	var kids pdf.Array
	for i := range n {
		content := doc.Add(&pdf.Stream{Dict: pdf.Dict{}, Data: fmt.Appendf(nil, "%s %d", label, i+1)})
		kids = append(kids, pdf.Ref(doc.Add(pdf.Dict{"Type": pdf.Name("Page"), "Parent": pdf.Ref(pagesID), "Contents": pdf.Ref(content)})))
	}
	doc.Objects[pagesID] = pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     kids,
		"Count":    pdf.Integer(n),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(595), pdf.Integer(842)},
	}
	catID := doc.Add(pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(pagesID), "Lang": pdf.String(label)})
	doc.Trailer["Root"] = pdf.Ref(catID)
	if withOutline {
		entries := []*pdf.OutlineEntry{{Title: label, Page: 0}}
		if err := doc.SetOutline(entries); err != nil {
			panic(err)
		}
		// make items typed so that they are recognizable
		for id, obj := range doc.Objects {
			if d, ok := obj.(pdf.Dict); ok && d.Get("Title") != nil {
				d["Type"] = pdf.Name("Outline")
				doc.Objects[id] = d
			}
		}
	}
	return doc
}

func content(t *testing.T, doc *pdf.Document, p pdf.Page) string {
	t.Helper()
	s, ok := doc.Resolve(p.Dict.Get("Contents")).(*pdf.Stream)
	if !ok {
		t.Fatalf("page %v has no content", p.ID)
	}
	return string(s.Data)
}

func countTypes(doc *pdf.Document) map[pdf.Name]int {
	counts := make(map[pdf.Name]int)
	for _, obj := range doc.Objects {
		if typ, err := pdf.TypeName(obj); err == nil {
			counts[typ]++
		}
	}
	return counts
}

func TestDocuments(t *testing.T) {
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))

	tests := []struct {
		name string
		opts []Option
	}{
		{"compacted", nil},
		{"not compacted", []Option{WithoutCompaction()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			front := document("toc", 3, true)
			source := document("crf", 2, true)

			merged, err := Documents([]*pdf.Document{front, source}, append(tt.opts, WithLogger(log))...)
			if err != nil {
				t.Fatalf("Documents() error = %v", err)
			}

			counts := countTypes(merged)
			if counts["Catalog"] != 1 || counts["Pages"] != 1 {
				t.Errorf("catalogs = %d, page roots = %d, want 1 and 1", counts["Catalog"], counts["Pages"])
			}
			if counts["Outline"] != 0 || counts["Outlines"] != 0 {
				t.Errorf("outline objects survived merge: %v", counts)
			}

			catID, cat, err := merged.Catalog()
			if err != nil {
				t.Fatalf("Catalog() error = %v", err)
			}
			if cat.Get("Outlines") != nil {
				t.Error("catalog still references outlines")
			}
			if lang, _ := cat.Get("Lang").(pdf.String); string(lang) != "toc" {
				t.Errorf("catalog /Lang = %q, want first catalog to win", lang)
			}
			pagesID, _ := cat.Ref("Pages")
			root := merged.Objects[pagesID].(pdf.Dict)
			kids := root.Get("Kids").(pdf.Array)
			if count, _ := root.Int("Count"); count != 5 || len(kids) != 5 {
				t.Errorf("Count = %d, len(Kids) = %d, want 5", count, len(kids))
			}
			if root.Get("Parent") != nil {
				t.Error("pages root has /Parent")
			}

			want := []string{"toc 1", "toc 2", "toc 3", "crf 1", "crf 2"}
			pages := merged.Pages()
			if len(pages) != len(want) {
				t.Fatalf("len(Pages()) = %d, want %d", len(pages), len(want))
			}
			for i, p := range pages {
				if got := content(t, merged, p); got != want[i] {
					t.Errorf("page %d = %q, want %q", i+1, got, want[i])
				}
				if parent, _ := p.Dict.Ref("Parent"); parent != pagesID {
					t.Errorf("page %d parent = %v, want %v", i+1, parent, pagesID)
				}
			}
			if ref, _ := merged.Trailer.Ref("Root"); ref != catID {
				t.Errorf("trailer /Root = %v, want %v", ref, catID)
			}
		})
	}
}

func TestDocumentsInputsUntouched(t *testing.T) {
	front := document("toc", 1, false)
	source := document("crf", 1, false)
	before := source.IDs()

	if _, err := Documents([]*pdf.Document{front, source}); err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	after := source.IDs()
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("source ids changed from %v to %v", before, after)
	}
	if source.PageCount() != 1 {
		t.Errorf("source PageCount() = %d, want 1", source.PageCount())
	}
}

func TestDocumentsPushesDownInheritedAttributes(t *testing.T) {
	doc := pdf.New("1.7")
	root := pdf.ObjectID{Num: 1}
	mid := pdf.ObjectID{Num: 2}
	page := pdf.ObjectID{Num: 3}
	doc.Objects[root] = pdf.Dict{"Type": pdf.Name("Pages"), "Kids": pdf.Array{pdf.Ref(mid)}, "Count": pdf.Integer(1)}
	doc.Objects[mid] = pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Parent":   pdf.Ref(root),
		"Kids":     pdf.Array{pdf.Ref(page)},
		"Count":    pdf.Integer(1),
		"Rotate":   pdf.Integer(90),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
	}
	doc.Objects[page] = pdf.Dict{"Type": pdf.Name("Page"), "Parent": pdf.Ref(mid)}
	doc.Objects[pdf.ObjectID{Num: 4}] = pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(root)}
	doc.Trailer["Root"] = pdf.Ref(pdf.ObjectID{Num: 4})

	merged, err := Documents([]*pdf.Document{document("toc", 1, false), doc})
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	pages := merged.Pages()
	if len(pages) != 2 {
		t.Fatalf("len(Pages()) = %d, want 2", len(pages))
	}
	last := pages[1].Dict
	if got := last.Get("Rotate"); got != pdf.Integer(90) {
		t.Errorf("/Rotate = %v, want 90", got)
	}
	box, _ := last.Get("MediaBox").(pdf.Array)
	if len(box) != 4 || box[2] != pdf.Integer(612) {
		t.Errorf("/MediaBox = %v, want letter size from former ancestor", box)
	}
}

func TestDocumentsErrors(t *testing.T) {
	noPages := pdf.New("1.7")
	noPages.Trailer["Root"] = pdf.Ref(noPages.Add(pdf.Dict{"Type": pdf.Name("Catalog")}))

	noCatalog := document("crf", 1, false)
	catID, _, _ := noCatalog.Catalog()
	delete(noCatalog.Objects, catID)

	tests := []struct {
		name string
		docs []*pdf.Document
		want error
	}{
		{"no pages", []*pdf.Document{noPages}, ErrNoPagesRoot},
		{"no pages in any", []*pdf.Document{noPages, noPages}, ErrNoPagesRoot},
		{"no catalog", []*pdf.Document{noCatalog}, ErrNoCatalog},
		{"nothing", nil, ErrNoPagesRoot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Documents(tt.docs)
			if !errors.Is(err, tt.want) {
				t.Errorf("Documents() error = %v, want %v", err, tt.want)
			}
			if merged != nil {
				t.Error("Documents() returned partial result")
			}
		})
	}
}

func TestDocumentsSaveLoad(t *testing.T) {
	merged, err := Documents([]*pdf.Document{document("toc", 2, true), document("crf", 4, true)})
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "merged.pdf")
	if err := merged.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := pdf.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.PageCount() != 6 {
		t.Errorf("PageCount() = %d, want 6", reloaded.PageCount())
	}
	if len(reloaded.Outline()) != 0 {
		t.Errorf("Outline() = %v, want none", reloaded.Outline())
	}
}
