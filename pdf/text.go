package pdf

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF16BE = []byte{0xfe, 0xff}
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
)

// pdfDocEncoding maps codes of PDFDocEncoding which differ from Latin-1.
var pdfDocEncoding = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1a: 'ˆ', 0x1b: '˙',
	0x1c: '˝', 0x1d: '˛', 0x1e: '˚', 0x1f: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8a: '−', 0x8b: '‰',
	0x8c: '„', 0x8d: '“', 0x8e: '”', 0x8f: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9a: 'ı', 0x9b: 'ł',
	0x9c: 'œ', 0x9d: 'š', 0x9e: 'ž', 0xa0: '€',
}

var pdfDocReverse = func() map[rune]byte {
	m := make(map[rune]byte, len(pdfDocEncoding))
	for b, r := range pdfDocEncoding {
		m[r] = b
	}
	return m
}()

// DecodeText converts PDF text string (UTF-16BE or UTF-8 with byte order mark,
// PDFDocEncoding otherwise) to UTF-8.
func DecodeText(s String) string {
	switch {
	case bytes.HasPrefix(s, bomUTF16BE):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(s)
		if err == nil {
			return string(out)
		}
	case bytes.HasPrefix(s, bomUTF8):
		return string(s[len(bomUTF8):])
	}

	var buf []byte
	for _, c := range s {
		r, ok := pdfDocEncoding[c]
		if !ok {
			r = rune(c)
		}
		buf = utf8.AppendRune(buf, r)
	}
	return string(buf)
}

// EncodeText converts UTF-8 to PDF text string. PDFDocEncoding is used when
// possible, UTF-16BE otherwise.
func EncodeText(s string) String {
	out := make(String, 0, len(s))
	for _, r := range s {
		if b, ok := pdfDocReverse[r]; ok {
			out = append(out, b)
			continue
		}
		if _, special := pdfDocEncoding[byte(r)]; r > 0xff || special || r == utf8.RuneError {
			enc, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
			if err != nil {
				return String(s)
			}
			return enc
		}
		out = append(out, byte(r))
	}
	return out
}
