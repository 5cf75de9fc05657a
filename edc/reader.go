package edc

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"

	"acrf/common"
	"acrf/ecrf"
)

// Reader extracts study configuration from EDC export. Form pages are
// resolved by name through the lookup, forms which cannot be resolved are
// left out of the result.
type Reader interface {
	Read(path string, lookup ecrf.Lookup) (*Study, error)
}

// sniffSize is enough for office open xml detection, which looks past the
// first zip entries.
const sniffSize = 8192

// Detect guesses format of EDC export by its content.
func Detect(path string) (common.SourceKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &ConfigError{Path: path, Reason: "unable to open EDC export", Err: err}
	}
	defer f.Close()

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, &ConfigError{Path: path, Reason: "unable to read EDC export", Err: err}
	}
	head = head[:n]

	switch {
	case filetype.Is(head, "xlsx"), filetype.Is(head, "zip"):
		return common.SourceKindEcollect, nil
	case isSpreadsheetML(head):
		return common.SourceKindRave, nil
	}
	kind, _ := filetype.Match(head)
	return 0, &ConfigError{Path: path, Reason: fmt.Sprintf("unsupported EDC export format (%s)", kind.Extension)}
}

func isSpreadsheetML(head []byte) bool {
	head = bytes.TrimPrefix(head, []byte{0xef, 0xbb, 0xbf})
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("urn:schemas-microsoft-com:office:spreadsheet"))
}
