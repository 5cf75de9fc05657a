// Package rave reads study configuration from Medidata Rave architect loader
// specification saved as SpreadsheetML (XML Spreadsheet 2003).
package rave

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"acrf/ecrf"
	"acrf/edc"
)

const (
	formsSheet   = "Forms"
	foldersSheet = "Folders"
	// subject level forms are bound to the pseudo folder
	subjectFolder = "Subject"
)

// isMatrix reports whether sheet is a master matrix, e.g. "Matrix1#MASTER".
func isMatrix(name string) bool {
	return strings.HasPrefix(name, "Matrix") && strings.HasSuffix(name, "MASTER")
}

type Reader struct {
	log *zap.Logger
}

func NewReader(log *zap.Logger) *Reader {
	return &Reader{log: log.Named("rave")}
}

// sheet is list of non-empty rows, missing cells are empty strings.
type sheet [][]string

func (s sheet) cell(row, col int) string {
	if row < len(s) && col < len(s[row]) {
		return s[row][col]
	}
	return ""
}

// names maps OID (first column) to name (third column), header row skipped.
// Forms and Folders sheets share the layout.
func (s sheet) names() map[string]string {
	m := make(map[string]string, len(s))
	for i := 1; i < len(s); i++ {
		oid, name := s.cell(i, 0), s.cell(i, 2)
		if oid != "" && name != "" {
			m[oid] = name
		}
	}
	return m
}

func (r *Reader) Read(path string, lookup ecrf.Lookup) (*edc.Study, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &edc.ConfigError{Path: path, Reason: "unable to open ALS", Err: err}
	}
	defer f.Close()

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, &edc.ConfigError{Path: path, Reason: "unable to parse ALS", Err: err}
	}

	sheets, err := r.worksheets(doc)
	if err != nil {
		return nil, &edc.ConfigError{Path: path, Reason: "malformed ALS", Err: err}
	}
	for _, name := range []string{formsSheet, foldersSheet, "Matrix*MASTER"} {
		if _, ok := sheets[name]; !ok {
			return nil, &edc.ConfigError{Path: path, Reason: fmt.Sprintf("ALS has no %s sheet", name)}
		}
	}

	study := r.study(sheets[formsSheet].names(), sheets[foldersSheet].names(), sheets["Matrix*MASTER"], lookup)
	if err := study.Validate(); err != nil {
		var ce *edc.ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	r.log.Debug("Study configuration extracted", zap.String("path", path),
		zap.Int("visits", len(study.Visits)), zap.Int("forms", len(study.Forms)), zap.Int("bindings", len(study.Bindings)))
	return study, nil
}

// study interprets matrix: header row lists folder OIDs (visits) after the
// first column, every other row starts with form OID and marks folders the
// form belongs to. Ids are 0-based positions in the matrix.
func (r *Reader) study(forms, folders map[string]string, matrix sheet, lookup ecrf.Lookup) *edc.Study {
	study := &edc.Study{Visits: []edc.Visit{}, Forms: []edc.Form{}, Bindings: []edc.Binding{}}
	if len(matrix) == 0 {
		return study
	}

	for col := 1; col < len(matrix[0]); col++ {
		oid, id := matrix[0][col], col-1
		if name, ok := folders[oid]; ok {
			study.Visits = append(study.Visits, edc.Visit{ID: id, Name: name, Order: id})
		} else if oid == subjectFolder {
			study.Visits = append(study.Visits, edc.Visit{ID: id, Name: oid, Order: id})
		}
	}

	var pairs []edc.Pair
	for i, row := range matrix[1:] {
		oid := row[0]
		name, ok := forms[oid]
		if !ok {
			if oid != "" {
				r.log.Warn("Matrix form is not described on Forms sheet, skipping", zap.String("oid", oid))
			}
			continue
		}
		page, ok := lookup.FormPage(name)
		if !ok {
			r.log.Warn("Form is not found in reference eCRF, skipping", zap.String("form", name), zap.String("oid", oid))
			continue
		}
		study.Forms = append(study.Forms, edc.Form{ID: i, Name: name, Page: page, Order: i})
		for col := 1; col < len(row); col++ {
			if row[col] != "" {
				pairs = append(pairs, edc.Pair{Visit: col - 1, Form: i})
			}
		}
	}
	if b := edc.GroupBindings(pairs); b != nil {
		study.Bindings = b
	}
	return study
}

// worksheets collects sheets of interest, matrix is stored under
// "Matrix*MASTER" key.
func (r *Reader) worksheets(doc *etree.Document) (map[string]sheet, error) {
	out := make(map[string]sheet)
	for _, ws := range doc.FindElements("//Worksheet") {
		name := ws.SelectAttrValue("ss:Name", ws.SelectAttrValue("Name", ""))
		key := name
		switch {
		case name == formsSheet, name == foldersSheet:
		case isMatrix(name):
			key = "Matrix*MASTER"
			if _, seen := out[key]; seen {
				r.log.Warn("More than one master matrix, using the first one", zap.String("ignored", name))
				continue
			}
		default:
			continue
		}
		table := ws.SelectElement("Table")
		if table == nil {
			out[key] = sheet{}
			continue
		}
		rows, err := readTable(table)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		out[key] = rows
	}
	return out, nil
}

// readTable honors ss:Index on cells, skipped cells become empty strings.
// Rows without cells are dropped.
func readTable(table *etree.Element) (sheet, error) {
	var rows sheet
	for _, row := range table.SelectElements("Row") {
		var cells []string
		for _, c := range row.SelectElements("Cell") {
			if idx := c.SelectAttrValue("ss:Index", ""); idx != "" {
				n, err := strconv.Atoi(idx)
				if err != nil || n < len(cells)+1 {
					return nil, fmt.Errorf("bad cell index %q", idx)
				}
				for len(cells) < n-1 {
					cells = append(cells, "")
				}
			}
			var text string
			if data := c.SelectElement("Data"); data != nil {
				text = strings.TrimSpace(allText(data))
			}
			cells = append(cells, text)
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

// allText returns character data of element including rich text children.
func allText(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		switch v := tok.(type) {
		case *etree.CharData:
			b.WriteString(v.Data)
		case *etree.Element:
			b.WriteString(allText(v))
		}
	}
	return b.String()
}
