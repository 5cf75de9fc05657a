package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"acrf/bookmarks"
	"acrf/common"
	"acrf/config"
	"acrf/edc"
	"acrf/pdf"
	"acrf/toc"
)

func newLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func buildConfig() *config.BuildConfig {
	return &config.BuildConfig{
		VisitTitle: "Visit",
		FormTitle:  "Forms",
		Compact:    true,
	}
}

// study has both forms bound to a single visit, forms are on pages 2 and 3
// of the annotated CRF.
func study() *edc.Study {
	return &edc.Study{
		Visits: []edc.Visit{{ID: 0, Name: "Screening", Order: 0}},
		Forms: []edc.Form{
			{ID: 0, Name: "Demographics", Page: 2, Order: 0},
			{ID: 1, Name: "Vital Signs", Page: 3, Order: 1},
		},
		Bindings: []edc.Binding{{Parent: 0, Children: []int{0, 1}}},
	}
}

// writeSource writes annotated CRF with n pages, the first page carries link
// with explicit destination which must survive the build untouched.
func writeSource(t *testing.T, n int) string {
	t.Helper()
	doc := pdf.New("1.7")
	pagesID := doc.Add(pdf.Dict{"Type": pdf.Name("Pages")})
	var kids pdf.Array
	for range n {
		kids = append(kids, pdf.Ref(doc.Add(pdf.Dict{"Type": pdf.Name("Page"), "Parent": pdf.Ref(pagesID)})))
	}
	last, _ := kids[n-1].(pdf.Reference)
	link := doc.Add(pdf.Dict{
		"Type":    pdf.Name("Annot"),
		"Subtype": pdf.Name("Link"),
		"Rect":    pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(10), pdf.Integer(10)},
		"Dest":    pdf.Array{last, pdf.Name("Fit")},
	})
	first, _ := kids[0].(pdf.Reference)
	page := doc.Objects[first.ID()].(pdf.Dict)
	page["Annots"] = pdf.Array{pdf.Ref(link)}

	doc.Objects[pagesID] = pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     kids,
		"Count":    pdf.Integer(n),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
	}
	doc.Trailer["Root"] = pdf.Ref(doc.Add(pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(pagesID)}))

	path := filepath.Join(t.TempDir(), "blankcrf.pdf")
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return path
}

func params(t *testing.T, source string) Params {
	dir := t.TempDir()
	return Params{
		Source:      source,
		Destination: filepath.Join(dir, "acrf.pdf"),
		Workspace:   filepath.Join(dir, "work"),
	}
}

func prepare(t *testing.T, p Params) {
	t.Helper()
	if err := os.MkdirAll(p.Workspace, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
}

func TestRun(t *testing.T) {
	p := params(t, writeSource(t, 3))
	prepare(t, p)

	b, err := New(study(), buildConfig(), newLogger(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rep, err := b.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if offset, ok := rep.Offset.Value(); !ok || offset != 2 {
		t.Errorf("Offset = %d (set %v), want 2", offset, ok)
	}
	if rep.Relink.Count != 4 || len(rep.Warnings) != 0 {
		t.Errorf("Relink = %+v, warnings %v, want 4 links without warnings", rep.Relink, rep.Warnings)
	}
	if rep.Relink.Relinked[0] != 3 || rep.Relink.Relinked[1] != 4 {
		t.Errorf("Relinked = %v, want map[0:3 1:4]", rep.Relink.Relinked)
	}
	// report keeps original numbering
	if leaf := rep.Trees[0].Leaves()[0]; *leaf.Page != 2 {
		t.Errorf("report tree leaf page = %d, want 2", *leaf.Page)
	}

	doc, err := pdf.Load(p.Destination)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	pages := doc.Pages()
	if len(pages) != 5 {
		t.Fatalf("merged document has %d pages, want 5", len(pages))
	}

	// link of the original document still points at its last page
	annots, _ := doc.Resolve(pages[2].Dict.Get("Annots")).(pdf.Array)
	if len(annots) != 1 {
		t.Fatalf("original first page has %d annotations, want 1", len(annots))
	}
	link, _ := doc.Resolve(annots[0]).(pdf.Dict)
	dest, _ := link.Get("Dest").(pdf.Array)
	if ref, _ := dest[0].(pdf.Reference); ref.ID() != pages[4].ID {
		t.Errorf("original link points at %v, want last page %v", dest[0], pages[4].ID)
	}

	items := doc.Outline()
	want := []pdf.OutlineItem{
		{Title: "Visit", Page: 4, Depth: 0},
		{Title: "Screening", Page: 4, Depth: 1},
		{Title: "Demographics", Page: 4, Depth: 2},
		{Title: "Vital Signs", Page: 5, Depth: 2},
		{Title: "Forms", Page: 4, Depth: 0},
		{Title: "Demographics", Page: 4, Depth: 1},
		{Title: "Screening", Page: 4, Depth: 2},
		{Title: "Vital Signs", Page: 5, Depth: 1},
		{Title: "Screening", Page: 5, Depth: 2},
	}
	if len(items) != len(want) {
		t.Fatalf("Outline() = %+v, want %+v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("Outline()[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}

	trees, err := bookmarks.Read(rep.Bookmarks)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if leaf := trees[1].Leaves()[1]; *leaf.Page != 4 || *leaf.ID != 1 {
		t.Errorf("bookmark leaf = id %d page %d, want id 1 page 4", *leaf.ID, *leaf.Page)
	}
	if _, err := os.Stat(filepath.Join(p.Workspace, FrontMatterName)); err != nil {
		t.Errorf("front matter is missing from workspace: %v", err)
	}
}

func TestRunGraphReport(t *testing.T) {
	p := params(t, writeSource(t, 3))
	prepare(t, p)

	rpt, err := (&config.ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	b, err := New(study(), buildConfig(), newLogger(t), WithReport(rpt))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := b.Run(context.Background(), p); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if info, err := os.Stat(rpt.Name()); err != nil || info.Size() == 0 {
		t.Errorf("report was not written: %v", err)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string, string) error {
	return &bookmarks.EmbedError{Tool: "embed", Stderr: "bad outline", Err: errors.New("exit status 1")}
}

func TestRunEmbedFailure(t *testing.T) {
	p := params(t, writeSource(t, 3))
	prepare(t, p)

	b, err := New(study(), buildConfig(), newLogger(t), WithEmbedder(failingEmbedder{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rep, err := b.Run(context.Background(), p)

	var ee *bookmarks.EmbedError
	if !errors.As(err, &ee) || ee.Stderr != "bad outline" {
		t.Fatalf("Run() error = %v, want EmbedError", err)
	}
	// everything before embedding is done
	if rep == nil || rep.Relink == nil || rep.Relink.Count != 4 {
		t.Errorf("Run() report = %+v, want relinked links", rep)
	}
	if _, err := os.Stat(p.Destination); err != nil {
		t.Errorf("incomplete output is missing: %v", err)
	}
}

type pagesRenderer struct {
	calls int
}

// Render writes front matter without any links.
func (r *pagesRenderer) Render(_ context.Context, trees []*toc.Node, destination string) error {
	r.calls++
	doc := pdf.New("1.7")
	pagesID := doc.Add(pdf.Dict{"Type": pdf.Name("Pages")})
	page := doc.Add(pdf.Dict{"Type": pdf.Name("Page"), "Parent": pdf.Ref(pagesID)})
	doc.Objects[pagesID] = pdf.Dict{"Type": pdf.Name("Pages"), "Kids": pdf.Array{pdf.Ref(page)}, "Count": pdf.Integer(1)}
	doc.Trailer["Root"] = pdf.Ref(doc.Add(pdf.Dict{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(pagesID)}))
	return doc.Save(destination)
}

func TestRunCustomRenderer(t *testing.T) {
	p := params(t, writeSource(t, 3))
	prepare(t, p)

	r := &pagesRenderer{}
	b, err := New(study(), buildConfig(), newLogger(t), WithRenderer(r))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rep, err := b.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.calls != 1 {
		t.Errorf("renderer called %d times, want 1", r.calls)
	}
	if offset, _ := rep.Offset.Value(); offset != 1 {
		t.Errorf("Offset = %d, want 1", offset)
	}
	if rep.Relink.Count != 0 {
		t.Errorf("Relink.Count = %d, want 0", rep.Relink.Count)
	}
}

func TestRunErrors(t *testing.T) {
	source := writeSource(t, 3)

	t.Run("missing source", func(t *testing.T) {
		p := params(t, filepath.Join(t.TempDir(), "missing.pdf"))
		prepare(t, p)
		b, _ := New(study(), buildConfig(), newLogger(t))
		_, err := b.Run(context.Background(), p)
		var le *pdf.LoadError
		if !errors.As(err, &le) {
			t.Errorf("Run() error = %v, want LoadError", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		p := params(t, source)
		prepare(t, p)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		b, _ := New(study(), buildConfig(), newLogger(t))
		if _, err := b.Run(ctx, p); !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want %v", err, context.Canceled)
		}
		if _, err := os.Stat(p.Destination); !os.IsNotExist(err) {
			t.Errorf("destination written for canceled build")
		}
	})

	t.Run("missing params", func(t *testing.T) {
		b, _ := New(study(), buildConfig(), newLogger(t))
		if _, err := b.Run(context.Background(), Params{Source: source}); err == nil {
			t.Error("Run() expected error without destination")
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("external renderer without command", func(t *testing.T) {
		cfg := buildConfig()
		cfg.FrontMatter.Renderer = common.RendererKindExternal
		if _, err := New(study(), cfg, newLogger(t)); err == nil {
			t.Error("New() expected error")
		}
	})

	t.Run("missing template", func(t *testing.T) {
		cfg := buildConfig()
		cfg.FrontMatter = config.FrontMatterConfig{
			Renderer: common.RendererKindExternal,
			Command:  "chromium",
			Template: filepath.Join(t.TempDir(), "missing.html"),
		}
		if _, err := New(study(), cfg, newLogger(t)); err == nil {
			t.Error("New() expected error")
		}
	})

	t.Run("external embedder", func(t *testing.T) {
		cfg := buildConfig()
		cfg.Bookmarks = config.BookmarksConfig{Embedder: common.RendererKindExternal, Tool: "embed"}
		b, err := New(study(), cfg, newLogger(t))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, ok := b.embedder.(*bookmarks.External); !ok {
			t.Errorf("embedder = %T, want *bookmarks.External", b.embedder)
		}
	})
}

func TestOffset(t *testing.T) {
	var o Offset
	if _, ok := o.Value(); ok {
		t.Error("Value() of new offset reports set")
	}
	if err := o.Set(-1); err == nil {
		t.Error("Set(-1) expected error")
	}
	if err := o.Set(2); err != nil {
		t.Fatalf("Set(2) error = %v", err)
	}
	if err := o.Set(3); err == nil {
		t.Error("second Set() expected error")
	}
	if v, ok := o.Value(); !ok || v != 2 {
		t.Errorf("Value() = %d, %v, want 2, true", v, ok)
	}
}
