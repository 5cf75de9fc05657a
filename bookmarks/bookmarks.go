// Package bookmarks embeds relinked render trees into the merged document as
// its navigation outline.
package bookmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"acrf/common"
	"acrf/pdf"
	"acrf/toc"
)

// Embedder adds bookmarks described by treesJSON file to target document in
// place.
type Embedder interface {
	Embed(ctx context.Context, target, treesJSON string) error
}

// EmbedError is returned when bookmark embedding tool fails. Target document
// exists but has no bookmarks.
type EmbedError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *EmbedError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("bookmark embedding with '%s' failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("bookmark embedding with '%s' failed: %v\n%s", e.Tool, e.Err, e.Stderr)
}

func (e *EmbedError) Unwrap() error {
	return e.Err
}

// Write stores trees as JSON array, the format embedding tools expect.
func Write(path string, trees []*toc.Node) error {
	data, err := json.MarshalIndent(trees, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal trees: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

// Read loads trees previously stored by Write.
func Read(path string) ([]*toc.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	var trees []*toc.Node
	if err := json.Unmarshal(data, &trees); err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	return trees, nil
}

// Entries converts trees to outline entries. Leaves open their page, other
// nodes open page of their first leaf.
func Entries(trees []*toc.Node) []*pdf.OutlineEntry {
	out := make([]*pdf.OutlineEntry, 0, len(trees))
	for _, n := range trees {
		out = append(out, entry(n))
	}
	return out
}

func entry(n *toc.Node) *pdf.OutlineEntry {
	e := &pdf.OutlineEntry{Title: n.Name, Page: -1}
	if n.IsLeaf() {
		if n.Page != nil {
			e.Page = *n.Page
		}
		return e
	}
	for _, c := range n.Children {
		child := entry(c)
		if e.Page < 0 {
			e.Page = child.Page
		}
		e.Children = append(e.Children, child)
	}
	return e
}

// Builtin writes outline with own PDF writer.
type Builtin struct {
	log *zap.Logger
}

func NewBuiltin(log *zap.Logger) *Builtin {
	return &Builtin{log: log.Named("bookmarks")}
}

func (b *Builtin) Embed(ctx context.Context, target, treesJSON string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trees, err := Read(treesJSON)
	if err != nil {
		return err
	}
	doc, err := pdf.Load(target)
	if err != nil {
		return err
	}
	if err := doc.SetOutline(Entries(trees)); err != nil {
		return fmt.Errorf("unable to build outline: %w", err)
	}
	doc.Compact()
	if err := doc.Save(target); err != nil {
		return err
	}
	b.log.Debug("Bookmarks embedded", zap.String("target", target), zap.Int("trees", len(trees)))
	return nil
}

// External hands bookmarks over to a tool invoked as
// "<tool> <target> <trees json> <target>".
type External struct {
	log  *zap.Logger
	tool string
}

func NewExternal(tool string, log *zap.Logger) *External {
	return &External{log: log.Named("bookmarks"), tool: tool}
}

func (e *External) Embed(ctx context.Context, target, treesJSON string) error {
	err := common.Run(ctx, e.log, e.tool, target, treesJSON, target)
	if err != nil {
		var pe *common.ProcessError
		if errors.As(err, &pe) {
			return &EmbedError{Tool: e.tool, Stderr: pe.Stderr, Err: pe.Err}
		}
		return &EmbedError{Tool: e.tool, Err: err}
	}
	if _, err := os.Stat(target); err != nil {
		return &EmbedError{Tool: e.tool, Err: fmt.Errorf("target is gone: %w", err)}
	}
	e.log.Debug("Bookmarks embedded", zap.String("tool", e.tool), zap.String("target", target))
	return nil
}
