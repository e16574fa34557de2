package pdfdoc

import (
	"bytes"
	"fmt"
	"strconv"
)

// Document is a parsed PDF file. Objects are parsed lazily on first use.
type Document struct {
	Version string

	data       []byte
	xref       xrefTable
	trailer    Dict
	startXRef  int64
	xrefStream bool
	cache      map[int]Object
	objStreams map[int]map[int]Object
}

// Open parses the cross-reference data of a PDF file. Files protected
// by a security handler are rejected with ErrEncrypted.
func Open(data []byte) (*Document, error) {
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return nil, malformed("open", "missing %%PDF header")
	}
	d := &Document{
		Version:    version(data),
		data:       data,
		cache:      make(map[int]Object),
		objStreams: make(map[int]map[int]Object),
	}
	start, err := findStartXRef(data)
	if err == nil {
		d.startXRef = start
		d.xref, d.trailer, d.xrefStream, err = readXRef(data, start)
	}
	if err != nil || d.trailer == nil || d.trailer["Root"] == nil {
		d.xref, d.trailer, err = rebuildXRef(data)
		if err != nil {
			return nil, malformed("open", "%v", err)
		}
		d.startXRef = -1
	}
	if d.trailer["Encrypt"] != nil {
		return nil, &Error{Op: "open", Err: ErrEncrypted}
	}
	return d, nil
}

func version(data []byte) string {
	idx := bytes.Index(data[:min(len(data), 1024)], []byte("%PDF-"))
	if idx < 0 {
		return ""
	}
	end := idx + 5
	for end < len(data) && end < idx+12 && !isWhitespace(data[end]) {
		end++
	}
	return string(data[idx+5 : end])
}

// Bytes returns the file the document was opened from.
func (d *Document) Bytes() []byte { return d.data }

// Trailer returns the newest trailer dictionary.
func (d *Document) Trailer() Dict { return d.trailer }

// Size is one more than the highest object number in use.
func (d *Document) Size() int {
	size := 0
	if n, ok := d.trailer.GetInt("Size"); ok {
		size = int(n)
	}
	for num := range d.xref {
		size = max(size, num+1)
	}
	return size
}

// Object returns indirect object num, or Null when it does not exist.
func (d *Document) Object(num int) (Object, error) {
	if obj, ok := d.cache[num]; ok {
		return obj, nil
	}
	e, ok := d.xref[num]
	if !ok || e.Kind == entryFree {
		return Null{}, nil
	}
	var obj Object
	var err error
	switch e.Kind {
	case entryOffset:
		obj, err = d.parseAt(num, e.Offset)
	case entryCompressed:
		obj, err = d.compressed(num, e)
	}
	if err != nil {
		return nil, &Error{Op: "object " + strconv.Itoa(num), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	d.cache[num] = obj
	return obj, nil
}

func (d *Document) parseAt(num int, off int64) (Object, error) {
	if off < 0 || off >= int64(len(d.data)) {
		return nil, fmt.Errorf("offset %d out of range", off)
	}
	p := newParser(d.data)
	p.pos = int(off)
	p.length = d.streamLength
	ref, obj, err := p.parseIndirect()
	if err != nil {
		return nil, err
	}
	if ref.Number != num {
		return nil, fmt.Errorf("offset %d holds object %d", off, ref.Number)
	}
	return obj, nil
}

func (d *Document) streamLength(ref Reference) (int, bool) {
	obj, err := d.Object(ref.Number)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(Integer)
	return int(n), ok
}

// compressed loads an object from an object stream, parsing the whole
// stream once.
func (d *Document) compressed(num int, e xrefEntry) (Object, error) {
	objs, ok := d.objStreams[e.Stream]
	if !ok {
		var err error
		objs, err = d.loadObjStream(e.Stream)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", e.Stream, err)
		}
		d.objStreams[e.Stream] = objs
	}
	if obj, ok := objs[num]; ok {
		return obj, nil
	}
	return Null{}, nil
}

func (d *Document) loadObjStream(num int) (map[int]Object, error) {
	obj, err := d.Object(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(Stream)
	if !ok || s.Dict.GetName("Type") != "ObjStm" {
		return nil, fmt.Errorf("not an object stream")
	}
	data, err := Decode(s)
	if err != nil {
		return nil, err
	}
	n, _ := s.Dict.GetInt("N")
	first, _ := s.Dict.GetInt("First")
	if first < 0 || int(first) > len(data) {
		return nil, fmt.Errorf("bad /First %d", first)
	}
	header := newParser(data[:first])
	out := make(map[int]Object, n)
	for i := int64(0); i < n; i++ {
		objNum, err1 := strconv.Atoi(header.readToken())
		off, err2 := strconv.Atoi(header.readToken())
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("bad header entry %d", i)
		}
		p := newParser(data)
		p.pos = int(first) + off
		if p.pos > len(data) {
			continue
		}
		val, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", objNum, err)
		}
		out[objNum] = val
	}
	return out, nil
}

// Resolve follows references until a direct object is reached.
// Unresolvable references yield Null.
func (d *Document) Resolve(o Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := o.(Reference)
		if !ok {
			return o
		}
		obj, err := d.Object(ref.Number)
		if err != nil {
			return Null{}
		}
		o = obj
	}
	return Null{}
}

// ResolveDict resolves o and returns it as a dictionary. A stream
// yields its dictionary.
func (d *Document) ResolveDict(o Object) Dict {
	switch v := d.Resolve(o).(type) {
	case Dict:
		return v
	case Stream:
		return v.Dict
	}
	return nil
}

// ResolveArray resolves o and returns it as an array.
func (d *Document) ResolveArray(o Object) Array {
	arr, _ := d.Resolve(o).(Array)
	return arr
}

// Catalog returns the document catalog.
func (d *Document) Catalog() (Dict, error) {
	cat := d.ResolveDict(d.trailer["Root"])
	if cat == nil {
		return nil, malformed("catalog", "/Root is not a dictionary")
	}
	return cat, nil
}

// RootRef is the catalog reference, or false when the catalog is direct.
func (d *Document) RootRef() (Reference, bool) {
	ref, ok := d.trailer["Root"].(Reference)
	return ref, ok
}

// Page is one leaf of the page tree with its inherited attributes applied.
type Page struct {
	Index     int
	Ref       Reference
	Dict      Dict
	MediaBox  Rect
	Resources Dict
}

// Letter size, used when no MediaBox is found on the page or its ancestors.
var defaultMediaBox = Rect{URX: 612, URY: 792}

// Pages walks the page tree in order.
func (d *Document) Pages() ([]Page, error) {
	cat, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	var pages []Page
	visited := make(map[int]bool)
	var walk func(node Object, inherited Dict) error
	walk = func(node Object, inherited Dict) error {
		ref, isRef := node.(Reference)
		if isRef {
			if visited[ref.Number] {
				return malformed("pages", "page tree cycle at %s", ref)
			}
			visited[ref.Number] = true
		}
		dict := d.ResolveDict(node)
		if dict == nil {
			return nil
		}
		merged := inherited.Clone()
		for _, key := range []Name{"MediaBox", "Resources", "Rotate", "CropBox"} {
			if v, ok := dict[key]; ok {
				merged[key] = v
			}
		}
		kids := d.ResolveArray(dict["Kids"])
		if dict.GetName("Type") == "Pages" || (kids != nil && dict.GetName("Type") != "Page") {
			for _, kid := range kids {
				if err := walk(kid, merged); err != nil {
					return err
				}
			}
			return nil
		}
		box, ok := RectFrom(d.Resolve(merged["MediaBox"]))
		if !ok {
			box = defaultMediaBox
		}
		pages = append(pages, Page{
			Index:     len(pages),
			Ref:       ref,
			Dict:      dict,
			MediaBox:  box,
			Resources: d.ResolveDict(merged["Resources"]),
		})
		return nil
	}
	if err := walk(cat["Pages"], Dict{}); err != nil {
		return nil, err
	}
	return pages, nil
}

// Contents returns the page's decoded content streams joined by newlines.
func (d *Document) Contents(p Page) ([]byte, error) {
	var streams []Object
	switch v := d.Resolve(p.Dict["Contents"]).(type) {
	case Stream:
		streams = []Object{v}
	case Array:
		streams = v
	}
	var buf bytes.Buffer
	for _, o := range streams {
		s, ok := d.Resolve(o).(Stream)
		if !ok {
			continue
		}
		data, err := Decode(s)
		if err != nil {
			return nil, &Error{Op: fmt.Sprintf("page %d contents", p.Index), Err: err}
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
