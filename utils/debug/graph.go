package debug

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"acrf/pdf"
)

// Graph dumps structure of page-object graph: trailer, pages in page tree
// order with destinations of their links, outline and number of objects per
// declared type.
func Graph(doc *pdf.Document) string {
	tw := NewTreeWriter()
	tw.Line(0, "PDF-%s, %d objects, max id %d", doc.Version, len(doc.Objects), doc.MaxID())

	tw.Line(0, "trailer")
	for _, k := range slices.Sorted(maps.Keys(doc.Trailer)) {
		tw.Line(1, "/%s %s", k, describe(doc.Trailer[k]))
	}

	pages := doc.Pages()
	tw.Line(0, "pages (%d)", len(pages))
	for i, p := range pages {
		tw.Line(1, "[%d] %s", i, p.ID)
		annots, _ := doc.Resolve(p.Dict.Get("Annots")).(pdf.Array)
		for _, a := range annots {
			annot, ok := doc.Resolve(a).(pdf.Dict)
			if !ok {
				continue
			}
			if sub, _ := annot.Name("Subtype"); sub != "Link" {
				continue
			}
			dest := annot.Get("Dest")
			if dest == nil {
				if action, ok := doc.Resolve(annot.Get("A")).(pdf.Dict); ok {
					dest = action.Get("D")
				}
			}
			tw.Line(2, "link -> %s", describe(doc.Resolve(dest)))
		}
	}

	if items := doc.Outline(); len(items) > 0 {
		tw.Line(0, "outline (%d)", len(items))
		for _, item := range items {
			tw.TextBlock(item.Depth+1, "page "+strconv.Itoa(item.Page), item.Title)
		}
	}

	counts := make(map[string]int)
	for _, obj := range doc.Objects {
		name := "-"
		if typ, err := pdf.TypeName(obj); err == nil {
			name = string(typ)
		}
		counts[name]++
	}
	tw.Line(0, "types")
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		tw.Line(1, "%s: %d", k, counts[k])
	}
	return tw.String()
}

func describe(obj pdf.Object) string {
	switch v := obj.(type) {
	case nil, pdf.Null:
		return "null"
	case pdf.Reference:
		return pdf.ObjectID(v).String() + " R"
	case pdf.Name:
		return "/" + string(v)
	case pdf.String:
		return strconv.Quote(pdf.DecodeText(v))
	case pdf.Array:
		parts := make([]string, 0, len(v))
		for _, o := range v {
			parts = append(parts, describe(o))
		}
		return "[" + strings.Join(parts, " ") + "]"
	case pdf.Dict:
		return fmt.Sprintf("<<%d keys>>", len(v))
	case *pdf.Stream:
		return fmt.Sprintf("stream (%d bytes)", len(v.Data))
	}
	return fmt.Sprint(obj)
}
