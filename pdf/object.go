// Package pdf implements an in-memory page-object graph: loading a PDF file
// into a map of numbered objects, walking its page tree, renumbering object ids
// and writing the graph back out.
package pdf

import (
	"fmt"
	"maps"
	"strconv"
)

// ObjectID identifies an indirect object.
type ObjectID struct {
	Num int
	Gen int
}

func (id ObjectID) String() string {
	return strconv.Itoa(id.Num) + " " + strconv.Itoa(id.Gen)
}

// Less orders ids by object number, then generation.
func (id ObjectID) Less(other ObjectID) bool {
	if id.Num != other.Num {
		return id.Num < other.Num
	}
	return id.Gen < other.Gen
}

// Object is any value which may appear in a page-object graph: Null, Bool,
// Integer, Real, String, Name, Array, Dict, Reference or *Stream.
type Object interface {
	isObject()
}

type (
	Null      struct{}
	Bool      bool
	Integer   int64
	Real      float64
	String    []byte
	Name      string
	Array     []Object
	Dict      map[Name]Object
	Reference ObjectID
)

// Stream is a dictionary followed by raw (still encoded) data. Data is never
// decoded unless the stream is an internal container (object or xref stream).
type Stream struct {
	Dict Dict
	Data []byte
}

func (Null) isObject()      {}
func (Bool) isObject()      {}
func (Integer) isObject()   {}
func (Real) isObject()      {}
func (String) isObject()    {}
func (Name) isObject()      {}
func (Array) isObject()     {}
func (Dict) isObject()      {}
func (Reference) isObject() {}
func (*Stream) isObject()   {}

// Ref returns reference to the object with given id.
func Ref(id ObjectID) Reference {
	return Reference(id)
}

// ID returns object id this reference points to.
func (r Reference) ID() ObjectID {
	return ObjectID(r)
}

// Get returns value stored under key or nil.
func (d Dict) Get(key Name) Object {
	if d == nil {
		return nil
	}
	return d[key]
}

// Name returns value of the key if it is a name.
func (d Dict) Name(key Name) (Name, bool) {
	n, ok := d.Get(key).(Name)
	return n, ok
}

// Int returns value of the key if it is an integer (reals are truncated).
func (d Dict) Int(key Name) (int, bool) {
	switch v := d.Get(key).(type) {
	case Integer:
		return int(v), true
	case Real:
		return int(v), true
	}
	return 0, false
}

// Ref returns value of the key if it is a reference.
func (d Dict) Ref(key Name) (ObjectID, bool) {
	r, ok := d.Get(key).(Reference)
	return ObjectID(r), ok
}

// Is reports whether dictionary declares given /Type.
func (d Dict) Is(typ Name) bool {
	n, ok := d.Name("Type")
	return ok && n == typ
}

// Clone makes shallow copy of the dictionary.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	maps.Copy(out, d)
	return out
}

// DictOf returns dictionary part of either dictionary or stream object.
func DictOf(obj Object) (Dict, bool) {
	switch v := obj.(type) {
	case Dict:
		return v, true
	case *Stream:
		return v.Dict, v.Dict != nil
	}
	return nil, false
}

// TypeName returns declared /Type of a dictionary or stream. Objects without
// declared type (or non-dictionary objects) report an error.
func TypeName(obj Object) (Name, error) {
	d, ok := DictOf(obj)
	if !ok {
		return "", fmt.Errorf("object of kind %T has no type", obj)
	}
	n, ok := d.Name("Type")
	if !ok {
		return "", fmt.Errorf("dictionary does not declare type")
	}
	return n, nil
}

// Copy makes deep copy of the object. Stream data is shared.
func Copy(obj Object) Object {
	switch v := obj.(type) {
	case Array:
		out := make(Array, len(v))
		for i, o := range v {
			out[i] = Copy(o)
		}
		return out
	case Dict:
		out := make(Dict, len(v))
		for k, o := range v {
			out[k] = Copy(o)
		}
		return out
	case *Stream:
		d, _ := Copy(v.Dict).(Dict)
		return &Stream{Dict: d, Data: v.Data}
	case String:
		return append(String(nil), v...)
	}
	return obj
}

// walkRefs calls fn for every reference reachable inside obj without
// following references.
func walkRefs(obj Object, fn func(Reference)) {
	switch v := obj.(type) {
	case Reference:
		fn(v)
	case Array:
		for _, o := range v {
			walkRefs(o, fn)
		}
	case Dict:
		for _, o := range v {
			walkRefs(o, fn)
		}
	case *Stream:
		walkRefs(v.Dict, fn)
	}
}

// rewriteRefs returns copy of obj where every reference is replaced by the
// result of fn.
func rewriteRefs(obj Object, fn func(Reference) Object) Object {
	switch v := obj.(type) {
	case Reference:
		return fn(v)
	case Array:
		out := make(Array, len(v))
		for i, o := range v {
			out[i] = rewriteRefs(o, fn)
		}
		return out
	case Dict:
		out := make(Dict, len(v))
		for k, o := range v {
			out[k] = rewriteRefs(o, fn)
		}
		return out
	case *Stream:
		d, _ := rewriteRefs(v.Dict, fn).(Dict)
		return &Stream{Dict: d, Data: v.Data}
	}
	return obj
}
