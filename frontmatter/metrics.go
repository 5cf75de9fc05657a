package frontmatter

// helveticaWidths holds glyph widths (1/1000 of font size) of Helvetica for
// printable ASCII starting with space.
var helveticaWidths = [...]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

// averageWidth is used for everything outside of ASCII.
const averageWidth = 556

func textWidth(encoded []byte, size float64) float64 {
	total := 0
	for _, c := range encoded {
		if c >= ' ' && int(c-' ') < len(helveticaWidths) {
			total += helveticaWidths[c-' ']
		} else {
			total += averageWidth
		}
	}
	return float64(total) * size / 1000
}
