// Package build runs the whole assembly pipeline: render trees, front matter,
// merge with the annotated CRF, link relinking and bookmarks.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"acrf/bookmarks"
	"acrf/config"
	"acrf/edc"
	"acrf/frontmatter"
	"acrf/merge"
	"acrf/pdf"
	"acrf/relink"
	"acrf/toc"
	"acrf/utils/debug"
)

const (
	FrontMatterName = "toc.pdf"
	BookmarksName   = "bookmark.json"
)

// Offset is number of front matter pages. It becomes known once front
// matter is rendered and may not change afterwards.
type Offset struct {
	value int
	set   bool
}

func (o *Offset) Set(pages int) error {
	if o.set {
		return fmt.Errorf("front matter offset is already set to %d", o.value)
	}
	if pages < 0 {
		return fmt.Errorf("invalid front matter page count %d", pages)
	}
	o.value, o.set = pages, true
	return nil
}

// Value returns offset, second value is false when it is not known yet.
func (o *Offset) Value() (int, bool) {
	return o.value, o.set
}

// Params of a single build.
type Params struct {
	// Source is annotated CRF, Destination is where merged document goes.
	Source      string
	Destination string
	// Workspace receives intermediate files.
	Workspace string
}

// Report describes finished (or partially finished) build.
type Report struct {
	// Trees are render trees with original page numbers.
	Trees    []*toc.Node
	Offset   Offset
	Relink   *relink.Result
	Warnings []relink.Warning
	// Bookmarks is path of JSON handed to bookmarks embedder.
	Bookmarks string
}

type Builder struct {
	study    *edc.Study
	cfg      *config.BuildConfig
	log      *zap.Logger
	rpt      *config.Report
	renderer frontmatter.Renderer
	embedder bookmarks.Embedder
}

// Option tweaks builder.
type Option func(*Builder)

// WithReport makes builder put dump of merged document into debug report.
func WithReport(rpt *config.Report) Option {
	return func(b *Builder) {
		b.rpt = rpt
	}
}

func WithRenderer(r frontmatter.Renderer) Option {
	return func(b *Builder) {
		b.renderer = r
	}
}

func WithEmbedder(e bookmarks.Embedder) Option {
	return func(b *Builder) {
		b.embedder = e
	}
}

// New creates builder for the study. Front matter renderer and bookmarks
// embedder are selected by configuration unless given with options.
func New(study *edc.Study, cfg *config.BuildConfig, log *zap.Logger, opts ...Option) (*Builder, error) {
	b := &Builder{study: study, cfg: cfg, log: log.Named("build")}
	for _, opt := range opts {
		opt(b)
	}

	if b.renderer == nil {
		fm := cfg.FrontMatter
		if fm.Renderer.IsExternal() {
			var page string
			if fm.Template != "" {
				data, err := os.ReadFile(fm.Template)
				if err != nil {
					return nil, fmt.Errorf("unable to read front matter template: %w", err)
				}
				page = string(data)
			}
			r, err := frontmatter.NewExternal(fm.Command, fm.Args, page, fm.Title, log)
			if err != nil {
				return nil, err
			}
			b.renderer = r
		} else {
			b.renderer = frontmatter.NewBuiltin(frontmatter.A4, log)
		}
	}
	if b.embedder == nil {
		if cfg.Bookmarks.Embedder.IsExternal() {
			b.embedder = bookmarks.NewExternal(cfg.Bookmarks.Tool, log)
		} else {
			b.embedder = bookmarks.NewBuiltin(log)
		}
	}
	return b, nil
}

// Run executes pipeline stages in order. On failure report collected so far
// is returned together with the error.
func (b *Builder) Run(ctx context.Context, p Params) (*Report, error) {
	if p.Source == "" || p.Destination == "" || p.Workspace == "" {
		return nil, errors.New("source, destination and workspace are required")
	}
	rep := &Report{}

	byVisit, byForm := toc.Trees(b.study, b.cfg.VisitTitle, b.cfg.FormTitle)
	rep.Trees = []*toc.Node{byVisit, byForm}
	b.log.Debug("Render trees built", zap.Int("visit leaves", len(byVisit.Leaves())), zap.Int("form leaves", len(byForm.Leaves())))

	front, err := b.frontMatter(ctx, rep, filepath.Join(p.Workspace, FrontMatterName))
	if err != nil {
		return rep, err
	}
	offset, _ := rep.Offset.Value()

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	source, err := pdf.Load(p.Source)
	if err != nil {
		return rep, err
	}
	if err := b.merge(front, source, p.Destination); err != nil {
		return rep, err
	}

	// relinking works on what was actually written
	merged, err := pdf.Load(p.Destination)
	if err != nil {
		return rep, err
	}
	rep.Relink = relink.Annotations(merged, b.study.FormMap(), offset)
	for _, w := range rep.Relink.Warnings {
		b.log.Warn("Link was not relinked", zap.Stringer("annotation", w.Annotation), zap.String("destination", w.Destination), zap.String("reason", w.Reason))
	}
	rep.Warnings = append(rep.Warnings, rep.Relink.Warnings...)
	if err := merged.Save(p.Destination); err != nil {
		return rep, fmt.Errorf("unable to save relinked document: %w", err)
	}
	b.rpt.StoreData("graph.txt", []byte(debug.Graph(merged)))
	b.log.Debug("Links relinked", zap.Int("count", rep.Relink.Count), zap.Int("warnings", len(rep.Relink.Warnings)))

	rep.Bookmarks = filepath.Join(p.Workspace, BookmarksName)
	if err := bookmarks.Write(rep.Bookmarks, relink.Trees(rep.Trees, offset)); err != nil {
		return rep, err
	}
	if err := b.embedder.Embed(ctx, p.Destination, rep.Bookmarks); err != nil {
		return rep, fmt.Errorf("unable to embed bookmarks, '%s' is incomplete: %w", p.Destination, err)
	}

	b.log.Info("Document assembled",
		zap.String("destination", p.Destination),
		zap.Int("front matter pages", offset),
		zap.Int("links", rep.Relink.Count),
	)
	return rep, nil
}

// frontMatter renders trees and probes resulting page count.
func (b *Builder) frontMatter(ctx context.Context, rep *Report, path string) (*pdf.Document, error) {
	if err := b.renderer.Render(ctx, rep.Trees, path); err != nil {
		return nil, fmt.Errorf("unable to render front matter: %w", err)
	}
	doc, err := pdf.Load(path)
	if err != nil {
		return nil, err
	}
	if err := rep.Offset.Set(doc.PageCount()); err != nil {
		return nil, err
	}
	b.log.Debug("Front matter ready", zap.String("path", path), zap.Int("pages", doc.PageCount()))
	return doc, nil
}

func (b *Builder) merge(front, source *pdf.Document, destination string) error {
	opts := []merge.Option{merge.WithLogger(b.log)}
	if source.Version > "1.7" {
		opts = append(opts, merge.WithVersion(source.Version))
	}
	if !b.cfg.Compact {
		opts = append(opts, merge.WithoutCompaction())
	}
	merged, err := merge.Documents([]*pdf.Document{front, source}, opts...)
	if err != nil {
		return fmt.Errorf("unable to merge documents: %w", err)
	}
	if err := merged.Save(destination); err != nil {
		return fmt.Errorf("unable to save merged document: %w", err)
	}
	return nil
}
