// Package pdfdoc reads the object structure of existing PDF files and
// writes incremental updates to them. It understands classic xref
// tables, xref streams and object streams; it does not decrypt.
package pdfdoc

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrMalformed reports a file whose structure cannot be read.
	ErrMalformed = errors.New("malformed pdf")
	// ErrEncrypted reports a file protected by a security handler.
	ErrEncrypted = errors.New("encrypted pdf")
)

// Error wraps a failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "pdfdoc: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func malformed(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))}
}

// Object is satisfied by every PDF object type.
type Object interface {
	pdfObject()
}

// Null is the PDF null object.
type Null struct{}

// Boolean is a PDF boolean.
type Boolean bool

// Integer is a PDF integer.
type Integer int64

// Real is a PDF real number.
type Real float64

// Name is a PDF name without the leading slash.
type Name string

// String is a literal or hexadecimal PDF string.
type String struct {
	Value []byte
	IsHex bool
}

// Array is a PDF array.
type Array []Object

// Dict is a PDF dictionary.
type Dict map[Name]Object

// Stream is a dictionary followed by raw, possibly encoded, data.
type Stream struct {
	Dict Dict
	Data []byte
}

// Reference points at an indirect object.
type Reference struct {
	Number     int
	Generation int
}

func (Null) pdfObject()      {}
func (Boolean) pdfObject()   {}
func (Integer) pdfObject()   {}
func (Real) pdfObject()      {}
func (Name) pdfObject()      {}
func (String) pdfObject()    {}
func (Array) pdfObject()     {}
func (Dict) pdfObject()      {}
func (Stream) pdfObject()    {}
func (Reference) pdfObject() {}

func (r Reference) String() string {
	return strconv.Itoa(r.Number) + " " + strconv.Itoa(r.Generation) + " R"
}

// Text builds a literal string object.
func Text(s string) String { return String{Value: []byte(s)} }

// GetName returns the name stored under key, or "".
func (d Dict) GetName(key Name) Name {
	n, _ := d[key].(Name)
	return n
}

// GetInt returns an integer entry. Reals are truncated.
func (d Dict) GetInt(key Name) (int64, bool) {
	switch n := d[key].(type) {
	case Integer:
		return int64(n), true
	case Real:
		return int64(n), true
	}
	return 0, false
}

// GetDict returns a direct sub-dictionary, or nil.
func (d Dict) GetDict(key Name) Dict {
	sub, _ := d[key].(Dict)
	return sub
}

// GetArray returns a direct array, or nil.
func (d Dict) GetArray(key Name) Array {
	arr, _ := d[key].(Array)
	return arr
}

// Clone copies the dictionary one level deep.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Number converts an Integer or Real to float64.
func Number(o Object) (float64, bool) {
	switch n := o.(type) {
	case Integer:
		return float64(n), true
	case Real:
		return float64(n), true
	}
	return 0, false
}

// Rect is a PDF rectangle normalized so that LLX <= URX and LLY <= URY.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// Width of the rectangle.
func (r Rect) Width() float64 { return r.URX - r.LLX }

// Height of the rectangle.
func (r Rect) Height() float64 { return r.URY - r.LLY }

// RectFrom reads a four-number array.
func RectFrom(o Object) (Rect, bool) {
	arr, ok := o.(Array)
	if !ok || len(arr) != 4 {
		return Rect{}, false
	}
	var v [4]float64
	for i, item := range arr {
		f, ok := Number(item)
		if !ok {
			return Rect{}, false
		}
		v[i] = f
	}
	r := Rect{LLX: min(v[0], v[2]), LLY: min(v[1], v[3]), URX: max(v[0], v[2]), URY: max(v[1], v[3])}
	return r, true
}

// Array converts the rectangle back to a PDF array.
func (r Rect) Array() Array {
	return Array{Real(r.LLX), Real(r.LLY), Real(r.URX), Real(r.URY)}
}
