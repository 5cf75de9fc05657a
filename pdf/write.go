package pdf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
)

// Save writes document to the path. Data goes to a temporary file in the same
// directory first, so the destination is either complete or untouched.
func (d *Document) Save(path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = d.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	mode := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo serializes document with classic cross-reference table.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if _, ok := d.Trailer.Ref("Root"); !ok {
		return 0, errors.New("trailer has no /Root")
	}
	version := d.Version
	if version == "" {
		version = "1.7"
	}

	cw := &countingWriter{w: bufio.NewWriter(w)}
	fmt.Fprintf(cw, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	ids := d.IDs()
	offsets := make(map[int]int64, len(ids))
	gens := make(map[int]int, len(ids))
	var buf bytes.Buffer
	for _, id := range ids {
		offsets[id.Num] = cw.n
		gens[id.Num] = id.Gen

		buf.Reset()
		fmt.Fprintf(&buf, "%d %d obj\n", id.Num, id.Gen)
		switch obj := d.Objects[id].(type) {
		case *Stream:
			dict := obj.Dict.Clone()
			dict["Length"] = Integer(len(obj.Data))
			writeObject(&buf, dict)
			buf.WriteString("\nstream\n")
			buf.Write(obj.Data)
			buf.WriteString("\nendstream")
		default:
			writeObject(&buf, obj)
		}
		buf.WriteString("\nendobj\n")
		if _, err := cw.Write(buf.Bytes()); err != nil {
			return cw.n, err
		}
	}

	size := 1
	if len(ids) > 0 {
		size = ids[len(ids)-1].Num + 1
	}
	xref := cw.n
	fmt.Fprintf(cw, "xref\n0 %d\n", size)
	// free entries are linked into a list starting at object 0
	free := make([]int, 0)
	for num := 1; num < size; num++ {
		if _, ok := offsets[num]; !ok {
			free = append(free, num)
		}
	}
	nextFree := func(num int) int {
		i, _ := slices.BinarySearch(free, num+1)
		if i < len(free) {
			return free[i]
		}
		return 0
	}
	fmt.Fprintf(cw, "%010d 65535 f\r\n", nextFree(0))
	for num := 1; num < size; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(cw, "%010d %05d n\r\n", off, gens[num])
		} else {
			fmt.Fprintf(cw, "%010d 00001 f\r\n", nextFree(num))
		}
	}

	trailer := d.Trailer.Clone()
	trailer["Size"] = Integer(size)
	buf.Reset()
	writeObject(&buf, trailer)
	fmt.Fprintf(cw, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", buf.Bytes(), xref)

	if err := cw.w.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Bytes returns serialized document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		buf.WriteString(formatReal(float64(v)))
	case String:
		writeString(buf, v)
	case Name:
		writeName(buf, v)
	case Reference:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	case Array:
		buf.WriteByte('[')
		for i, o := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, o)
		}
		buf.WriteByte(']')
	case Dict:
		buf.WriteString("<<")
		for _, k := range sortedKeys(v) {
			val := v[k]
			if _, null := val.(Null); null || val == nil {
				continue
			}
			writeName(buf, k)
			buf.WriteByte(' ')
			writeObject(buf, val)
		}
		buf.WriteString(">>")
	case *Stream:
		// streams are only allowed as indirect objects, WriteTo handles them
		writeObject(buf, v.Dict)
	}
}

// sortedKeys orders dictionary keys with /Type first for readability.
func sortedKeys(d Dict) []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Name) int {
		switch {
		case a == b:
			return 0
		case a == "Type":
			return -1
		case b == "Type":
			return 1
		case a < b:
			return -1
		}
		return 1
	})
	return keys
}

func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

func writeName(buf *bytes.Buffer, n Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter(c) {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

// Literal returns string in literal syntax, for composing content streams.
func (s String) Literal() string {
	var buf bytes.Buffer
	writeString(&buf, s)
	return buf.String()
}

func writeString(buf *bytes.Buffer, s String) {
	buf.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\r':
			buf.WriteString(`\r`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}
