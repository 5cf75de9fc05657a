// Package ecollect reads study configuration from eCollect database export
// (xlsx workbook with EventWorkflow sheet: visits across, forms down).
package ecollect

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"acrf/archive"
	"acrf/ecrf"
	"acrf/edc"
)

// SheetName is worksheet holding visit/form matrix.
const SheetName = "EventWorkflow"

type Reader struct {
	log *zap.Logger
}

func NewReader(log *zap.Logger) *Reader {
	return &Reader{log: log.Named("ecollect")}
}

func (r *Reader) Read(path string, lookup ecrf.Lookup) (*edc.Study, error) {
	parts, err := archive.ReadAll(path, "xl/")
	if err != nil {
		return nil, &edc.ConfigError{Path: path, Reason: "unable to read workbook", Err: err}
	}
	rows, err := worksheet(parts, SheetName)
	if err != nil {
		return nil, &edc.ConfigError{Path: path, Reason: "unable to read " + SheetName, Err: err}
	}
	study := r.study(rows, lookup)
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

// study interprets matrix: first row lists visits until the first empty cell,
// first column lists forms until the first empty cell, any non-empty cell
// binds its visit and form. Ids are 0-based positions.
func (r *Reader) study(rows [][]string, lookup ecrf.Lookup) *edc.Study {
	study := &edc.Study{Visits: []edc.Visit{}, Forms: []edc.Form{}, Bindings: []edc.Binding{}}
	if len(rows) == 0 {
		return study
	}

	header := rows[0]
	for col := 1; col < len(header); col++ {
		name := strings.TrimSpace(header[col])
		if name == "" {
			break
		}
		study.Visits = append(study.Visits, edc.Visit{ID: col - 1, Name: name, Order: col - 1})
	}

	var pairs []edc.Pair
	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			break
		}
		name := strings.TrimSpace(row[0])
		page, ok := lookup.FormPage(name)
		if !ok {
			r.log.Warn("Form is not found in reference eCRF, skipping", zap.String("form", name))
			continue
		}
		study.Forms = append(study.Forms, edc.Form{ID: i, Name: name, Page: page, Order: i})
		for col := 1; col < len(row) && col <= len(study.Visits); col++ {
			if strings.TrimSpace(row[col]) != "" {
				pairs = append(pairs, edc.Pair{Visit: col - 1, Form: i})
			}
		}
	}
	if b := edc.GroupBindings(pairs); b != nil {
		study.Bindings = b
	}
	return study
}

// worksheet returns cell texts of the named sheet as dense rows.
func worksheet(parts map[string][]byte, name string) ([][]string, error) {
	book, err := parse(parts, "xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	var relID string
	for _, s := range book.FindElements("//sheets/sheet") {
		if s.SelectAttrValue("name", "") == name {
			relID = s.SelectAttrValue("r:id", "")
			break
		}
	}
	if relID == "" {
		return nil, fmt.Errorf("sheet %q not found", name)
	}

	rels, err := parse(parts, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return nil, err
	}
	var target string
	for _, rel := range rels.FindElements("//Relationship") {
		if rel.SelectAttrValue("Id", "") == relID {
			target = rel.SelectAttrValue("Target", "")
			break
		}
	}
	if target == "" {
		return nil, fmt.Errorf("sheet %q has no target", name)
	}
	if strings.HasPrefix(target, "/") {
		target = strings.TrimPrefix(target, "/")
	} else {
		target = path.Join("xl", target)
	}

	var shared []string
	if _, ok := parts["xl/sharedStrings.xml"]; ok {
		doc, err := parse(parts, "xl/sharedStrings.xml")
		if err != nil {
			return nil, err
		}
		for _, si := range doc.FindElements("//si") {
			shared = append(shared, richText(si))
		}
	}

	sheet, err := parse(parts, target)
	if err != nil {
		return nil, err
	}
	return cells(sheet, shared)
}

func parse(parts map[string][]byte, name string) (*etree.Document, error) {
	data, ok := parts[name]
	if !ok {
		return nil, fmt.Errorf("workbook part %q is missing", name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %q: %w", name, err)
	}
	return doc, nil
}

// richText concatenates all text runs of the element.
func richText(el *etree.Element) string {
	var b strings.Builder
	for _, t := range el.FindElements(".//t") {
		b.WriteString(t.Text())
	}
	return b.String()
}

func cells(sheet *etree.Document, shared []string) ([][]string, error) {
	var rows [][]string
	for _, row := range sheet.FindElements("//sheetData/row") {
		index := len(rows)
		if r := row.SelectAttrValue("r", ""); r != "" {
			n, err := strconv.Atoi(r)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad row reference %q", r)
			}
			index = n - 1
		}
		for len(rows) <= index {
			rows = append(rows, nil)
		}

		var values []string
		for _, c := range row.SelectElements("c") {
			col := len(values)
			if ref := c.SelectAttrValue("r", ""); ref != "" {
				n, ok := column(ref)
				if !ok {
					return nil, fmt.Errorf("bad cell reference %q", ref)
				}
				col = n
			}
			for len(values) <= col {
				values = append(values, "")
			}
			v, err := value(c, shared)
			if err != nil {
				return nil, err
			}
			values[col] = v
		}
		rows[index] = values
	}
	return rows, nil
}

func value(c *etree.Element, shared []string) (string, error) {
	switch c.SelectAttrValue("t", "n") {
	case "s":
		v := c.SelectElement("v")
		if v == nil {
			return "", nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(v.Text()))
		if err != nil || i < 0 || i >= len(shared) {
			return "", fmt.Errorf("bad shared string index %q", v.Text())
		}
		return shared[i], nil
	case "inlineStr":
		if is := c.SelectElement("is"); is != nil {
			return richText(is), nil
		}
		return "", nil
	}
	if v := c.SelectElement("v"); v != nil {
		return v.Text(), nil
	}
	return "", nil
}

// column converts cell reference like "AB12" to 0-based column index.
func column(ref string) (int, bool) {
	n := 0
	i := 0
	for ; i < len(ref); i++ {
		c := ref[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			break
		}
		n = n*26 + int(c-'A'+1)
	}
	if i == 0 {
		return 0, false
	}
	return n - 1, true
}
