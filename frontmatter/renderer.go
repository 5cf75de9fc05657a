// Package frontmatter renders render trees into table of contents pages
// which are later prepended to the annotated CRF.
//
// Every leaf entry must become a link annotation whose destination is the
// form id (as a name), relinking turns those into page destinations.
package frontmatter

import (
	"context"

	"acrf/toc"
)

// Renderer writes front matter document for the trees to destination.
type Renderer interface {
	Render(ctx context.Context, trees []*toc.Node, destination string) error
}
