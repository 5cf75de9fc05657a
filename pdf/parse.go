package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strconv"
)

// ErrEncrypted is returned for documents protected by a security handler.
var ErrEncrypted = errors.New("encrypted documents are not supported")

// LoadError reports file which cannot be parsed into page-object graph.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load page-object graph from '%s': %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads and parses the file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return doc, nil
}

type xrefEntry struct {
	offset     int
	gen        int
	stream     int
	free       bool
	compressed bool
}

type objStream struct {
	data    []byte
	first   int
	offsets map[int]int
}

type parser struct {
	lexer
	xref    map[int]xrefEntry
	trailer Dict
	objects map[ObjectID]Object
	loading map[int]bool
	streams map[int]*objStream
	scan    map[int]xrefEntry
}

var objHeaderRe = regexp.MustCompile(`(\d+)[ \t\r\n\f\x00]+(\d+)[ \t\r\n\f\x00]+obj\b`)

// Parse builds page-object graph from complete PDF file content. Classic
// cross-reference tables, cross-reference streams, object streams and
// incremental updates are supported. When cross-reference information is
// damaged the file is scanned for object headers instead.
func Parse(data []byte) (*Document, error) {
	start := bytes.Index(data, []byte("%PDF-"))
	if start < 0 || start > 1024 {
		return nil, errors.New("PDF header not found")
	}
	data = data[start:]

	p := &parser{
		lexer:   lexer{data: data, pos: 5},
		xref:    make(map[int]xrefEntry),
		trailer: make(Dict),
		objects: make(map[ObjectID]Object),
		loading: make(map[int]bool),
		streams: make(map[int]*objStream),
	}
	version := p.token()
	if version == "" {
		version = "1.7"
	}

	if err := p.readXRefChain(); err != nil || p.trailer.Get("Root") == nil {
		p.reconstruct()
	}
	if p.trailer.Get("Encrypt") != nil {
		return nil, ErrEncrypted
	}

	nums := make([]int, 0, len(p.xref))
	for num, e := range p.xref {
		if !e.free {
			nums = append(nums, num)
		}
	}
	slices.Sort(nums)
	for _, num := range nums {
		// individual broken objects are dropped, references to them become null
		_, _ = p.load(num)
	}

	doc := &Document{
		Version: version,
		Objects: make(map[ObjectID]Object, len(p.objects)),
		Trailer: make(Dict),
	}
	for id, obj := range p.objects {
		if t, err := TypeName(obj); err == nil && (t == "XRef" || t == "ObjStm") {
			if _, ok := p.trailer["Root"]; !ok {
				d, _ := DictOf(obj)
				for _, k := range []Name{"Root", "Info", "ID"} {
					if v, ok := d[k]; ok {
						p.trailer[k] = v
					}
				}
			}
			continue
		}
		doc.Objects[id] = obj
	}
	for _, k := range []Name{"Root", "Info", "ID"} {
		if v, ok := p.trailer[k]; ok {
			doc.Trailer[k] = v
		}
	}
	if _, ok := doc.Trailer.Ref("Root"); !ok {
		for _, id := range doc.IDs() {
			if d, ok := doc.Objects[id].(Dict); ok && d.Is("Catalog") {
				doc.Trailer["Root"] = Ref(id)
				break
			}
		}
	}
	if _, ok := doc.Trailer.Ref("Root"); !ok {
		return nil, ErrNoCatalog
	}
	return doc, nil
}

func (p *parser) readXRefChain() error {
	idx := bytes.LastIndex(p.data, []byte("startxref"))
	if idx < 0 {
		return errors.New("startxref not found")
	}
	p.pos = idx + len("startxref")
	off, err := strconv.Atoi(p.token())
	if err != nil {
		return fmt.Errorf("bad startxref: %w", err)
	}

	seen := make(map[int]bool)
	for !seen[off] {
		seen[off] = true
		if off <= 0 || off >= len(p.data) {
			return fmt.Errorf("cross-reference offset %d out of range", off)
		}
		p.pos = off
		var trailer Dict
		if p.hasPrefix("xref") {
			trailer, err = p.readXRefTable()
		} else {
			trailer, err = p.readXRefStream()
		}
		if err != nil {
			return err
		}
		for k, v := range trailer {
			if _, ok := p.trailer[k]; !ok {
				p.trailer[k] = v
			}
		}
		if stm, ok := trailer.Int("XRefStm"); ok && stm > 0 && stm < len(p.data) {
			p.pos = stm
			if _, err := p.readXRefStream(); err != nil {
				return fmt.Errorf("hybrid cross-reference stream: %w", err)
			}
		}
		prev, ok := trailer.Int("Prev")
		if !ok {
			break
		}
		off = prev
	}
	return nil
}

func (p *parser) setEntry(num int, e xrefEntry) {
	if _, ok := p.xref[num]; !ok {
		p.xref[num] = e
	}
}

func (p *parser) readXRefTable() (Dict, error) {
	p.pos += len("xref")
	for {
		if p.hasPrefix("trailer") {
			p.pos += len("trailer")
			obj, err := p.readObject()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			d, ok := obj.(Dict)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return d, nil
		}
		first, err1 := strconv.Atoi(p.token())
		count, err2 := strconv.Atoi(p.token())
		if err1 != nil || err2 != nil || first < 0 || count < 0 {
			return nil, fmt.Errorf("malformed cross-reference subsection at offset %d", p.pos)
		}
		for i := range count {
			off, err1 := strconv.Atoi(p.token())
			gen, err2 := strconv.Atoi(p.token())
			kind := p.token()
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("malformed cross-reference entry at offset %d", p.pos)
			}
			switch kind {
			case "n":
				if off <= 0 || off >= len(p.data) {
					return nil, fmt.Errorf("cross-reference entry for object %d points outside of file (%d)", first+i, off)
				}
				p.setEntry(first+i, xrefEntry{offset: off, gen: gen})
			case "f":
				p.setEntry(first+i, xrefEntry{free: true})
			default:
				return nil, fmt.Errorf("unknown cross-reference entry type %q", kind)
			}
		}
	}
}

func (p *parser) readXRefStream() (Dict, error) {
	obj, _, err := p.readIndirectAt(p.pos)
	if err != nil {
		return nil, fmt.Errorf("cross-reference stream: %w", err)
	}
	s, ok := obj.(*Stream)
	if !ok || !s.Dict.Is("XRef") {
		return nil, errors.New("cross-reference stream expected")
	}
	data, err := decodeStream(s)
	if err != nil {
		return nil, fmt.Errorf("cross-reference stream: %w", err)
	}

	wArr, _ := s.Dict.Get("W").(Array)
	if len(wArr) < 3 {
		return nil, errors.New("cross-reference stream has invalid /W")
	}
	var w [3]int
	for i := range w {
		v, _ := wArr[i].(Integer)
		if v < 0 || int(v) > len(data) {
			return nil, fmt.Errorf("cross-reference stream has invalid /W %v", wArr)
		}
		w[i] = int(v)
	}
	size := w[0] + w[1] + w[2]
	if size == 0 || size > len(data) {
		return nil, fmt.Errorf("cross-reference stream entry size %d does not fit %d bytes of data", size, len(data))
	}

	var index []int
	if arr, ok := s.Dict.Get("Index").(Array); ok {
		for _, o := range arr {
			v, _ := o.(Integer)
			index = append(index, int(v))
		}
	} else {
		n, _ := s.Dict.Int("Size")
		index = []int{0, n}
	}

	field := func(b []byte, def int) int {
		if len(b) == 0 {
			return def
		}
		v := 0
		for _, c := range b {
			v = v<<8 | int(c)
		}
		return v
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		for j := range index[i+1] {
			if pos+size > len(data) {
				break
			}
			entry := data[pos : pos+size]
			pos += size
			num := index[i] + j
			if num < 0 {
				continue
			}
			f2 := field(entry[w[0]:w[0]+w[1]], 0)
			f3 := field(entry[w[0]+w[1]:], 0)
			switch field(entry[:w[0]], 1) {
			case 0:
				p.setEntry(num, xrefEntry{free: true})
			case 1:
				if f2 <= 0 || f2 >= len(p.data) {
					return nil, fmt.Errorf("cross-reference stream entry for object %d points outside of file (%d)", num, f2)
				}
				p.setEntry(num, xrefEntry{offset: f2, gen: f3})
			case 2:
				p.setEntry(num, xrefEntry{compressed: true, stream: f2, offset: f3})
			}
		}
	}
	return s.Dict, nil
}

// readIndirectAt parses "num gen obj ... endobj" at the offset.
func (p *parser) readIndirectAt(offset int) (Object, ObjectID, error) {
	if offset < 0 || offset >= len(p.data) {
		return nil, ObjectID{}, fmt.Errorf("object offset %d is outside of file", offset)
	}
	p.pos = offset
	num, err1 := strconv.Atoi(p.token())
	gen, err2 := strconv.Atoi(p.token())
	if err1 != nil || err2 != nil || p.token() != "obj" {
		return nil, ObjectID{}, fmt.Errorf("no object header at offset %d", offset)
	}
	id := ObjectID{Num: num, Gen: gen}

	obj, err := p.readObject()
	if err != nil {
		return nil, id, fmt.Errorf("object %s: %w", id, err)
	}
	d, ok := obj.(Dict)
	if !ok || !p.hasPrefix("stream") {
		return obj, id, nil
	}

	p.pos += len("stream")
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}
	start := p.pos

	length := -1
	switch v := d.Get("Length").(type) {
	case Integer:
		length = int(v)
	case Reference:
		if v.Num != num {
			if lo, err := p.load(v.Num); err == nil {
				if n, ok := lo.(Integer); ok {
					length = int(n)
				}
			}
		}
		p.pos = start
	}

	var raw []byte
	if length >= 0 && length <= len(p.data)-start {
		p.pos = start + length
		if p.hasPrefix("endstream") {
			raw = p.data[start : start+length]
		}
	}
	if raw == nil {
		idx := bytes.Index(p.data[start:], []byte("endstream"))
		if idx < 0 {
			return nil, id, fmt.Errorf("object %s: stream is not terminated", id)
		}
		raw = trimEOL(p.data[start : start+idx])
		p.pos = start + idx
	}
	if p.hasPrefix("endstream") {
		p.pos += len("endstream")
	}
	return &Stream{Dict: d, Data: raw}, id, nil
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

func (p *parser) load(num int) (Object, error) {
	e, ok := p.xref[num]
	if !ok || e.free {
		return nil, fmt.Errorf("object %d is not in cross-reference table", num)
	}
	id := ObjectID{Num: num, Gen: e.gen}
	if e.compressed {
		id.Gen = 0
	}
	if obj, ok := p.objects[id]; ok {
		return obj, nil
	}
	if p.loading[num] {
		return nil, fmt.Errorf("object %d is part of a reference loop", num)
	}
	p.loading[num] = true
	defer delete(p.loading, num)

	save := p.pos
	defer func() { p.pos = save }()

	var (
		obj Object
		err error
	)
	if e.compressed {
		obj, err = p.loadCompressed(num, e)
	} else {
		obj, err = p.loadAt(num, e.offset)
	}
	if err != nil {
		return nil, err
	}
	p.objects[id] = obj
	return obj, nil
}

func (p *parser) loadAt(num, offset int) (Object, error) {
	obj, id, err := p.readIndirectAt(offset)
	if err == nil && id.Num == num {
		return obj, nil
	}
	// offset is wrong, look for the header elsewhere in the file
	if e, ok := p.scanned()[num]; ok && e.offset != offset {
		obj, id, err = p.readIndirectAt(e.offset)
		if err == nil && id.Num == num {
			return obj, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("object %d not found at offset %d", num, offset)
	}
	return nil, err
}

func (p *parser) loadCompressed(num int, e xrefEntry) (Object, error) {
	stm, err := p.objectStream(e.stream)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	off, ok := stm.offsets[num]
	if !ok {
		return nil, fmt.Errorf("object %d is missing from object stream %d", num, e.stream)
	}
	if off < 0 || off >= len(stm.data)-stm.first {
		return nil, fmt.Errorf("object %d offset %d is outside of object stream %d", num, off, e.stream)
	}
	l := lexer{data: stm.data, pos: stm.first + off}
	return l.readObject()
}

func (p *parser) objectStream(num int) (*objStream, error) {
	if stm, ok := p.streams[num]; ok {
		return stm, nil
	}
	obj, err := p.load(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*Stream)
	if !ok || !s.Dict.Is("ObjStm") {
		return nil, fmt.Errorf("object %d is not an object stream", num)
	}
	data, err := decodeStream(s)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}
	n, _ := s.Dict.Int("N")
	first, _ := s.Dict.Int("First")
	if first < 0 || first > len(data) {
		return nil, fmt.Errorf("object stream %d has invalid /First %d", num, first)
	}
	stm := &objStream{data: data, first: first, offsets: make(map[int]int, n)}
	l := lexer{data: data}
	for range n {
		objNum, err1 := strconv.Atoi(l.token())
		off, err2 := strconv.Atoi(l.token())
		if err1 != nil || err2 != nil {
			break
		}
		stm.offsets[objNum] = off
	}
	p.streams[num] = stm
	return stm, nil
}

// scanned returns offsets of all object headers found in the file, later
// definitions win as they would in an incremental update.
func (p *parser) scanned() map[int]xrefEntry {
	if p.scan != nil {
		return p.scan
	}
	p.scan = make(map[int]xrefEntry)
	for _, m := range objHeaderRe.FindAllSubmatchIndex(p.data, -1) {
		if m[0] > 0 && isRegular(p.data[m[0]-1]) {
			continue
		}
		num, _ := strconv.Atoi(string(p.data[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(p.data[m[4]:m[5]]))
		p.scan[num] = xrefEntry{offset: m[0], gen: gen}
	}
	return p.scan
}

// reconstruct rebuilds cross-reference information by scanning the file.
func (p *parser) reconstruct() {
	p.xref = make(map[int]xrefEntry)
	maps.Copy(p.xref, p.scanned())
	p.trailer = make(Dict)

	var idxs []int
	for off := 0; ; {
		i := bytes.Index(p.data[off:], []byte("trailer"))
		if i < 0 {
			break
		}
		idxs = append(idxs, off+i)
		off += i + len("trailer")
	}
	for _, idx := range slices.Backward(idxs) {
		p.pos = idx + len("trailer")
		obj, err := p.readObject()
		if d, ok := obj.(Dict); err == nil && ok {
			for k, v := range d {
				if _, ok := p.trailer[k]; !ok {
					p.trailer[k] = v
				}
			}
		}
	}

	// objects stored in object streams are not visible to the scan
	for num := range p.scan {
		obj, err := p.load(num)
		s, ok := obj.(*Stream)
		if err != nil || !ok || !s.Dict.Is("ObjStm") {
			continue
		}
		stm, err := p.objectStream(num)
		if err != nil {
			continue
		}
		for inner := range stm.offsets {
			if _, ok := p.xref[inner]; !ok {
				p.xref[inner] = xrefEntry{compressed: true, stream: num}
			}
		}
	}
}
