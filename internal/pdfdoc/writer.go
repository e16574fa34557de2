package pdfdoc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
)

// Marshal renders o in PDF syntax.
func Marshal(o Object) []byte {
	var buf bytes.Buffer
	writeObject(&buf, o)
	return buf.Bytes()
}

func writeObject(buf *bytes.Buffer, o Object) {
	switch v := o.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Boolean:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case Name:
		writeName(buf, v)
	case String:
		writeString(buf, v)
	case Reference:
		buf.WriteString(v.String())
	case Array:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, item)
		}
		buf.WriteByte(']')
	case Dict:
		writeDict(buf, v)
	case Stream:
		dict := v.Dict.Clone()
		dict["Length"] = Integer(len(v.Data))
		writeDict(buf, dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	}
}

func writeDict(buf *bytes.Buffer, d Dict) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, k := range keys {
		writeName(buf, Name(k))
		buf.WriteByte(' ')
		writeObject(buf, d[Name(k)])
	}
	buf.WriteString(">>")
}

func writeName(buf *bytes.Buffer, n Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func writeString(buf *bytes.Buffer, s String) {
	if s.IsHex {
		fmt.Fprintf(buf, "<%X>", s.Value)
		return
	}
	buf.WriteByte('(')
	for _, c := range s.Value {
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

func writeIndirect(buf *bytes.Buffer, ref Reference, o Object) {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Number, ref.Generation)
	writeObject(buf, o)
	buf.WriteString("\nendobj\n")
}

// Update collects changed and new objects and appends them to the
// original file as an incremental update. The original bytes are kept.
type Update struct {
	doc     *Document
	objects map[int]Object
	gens    map[int]int
	next    int
}

// NewUpdate starts an incremental update.
func (d *Document) NewUpdate() *Update {
	return &Update{doc: d, objects: make(map[int]Object), gens: make(map[int]int), next: d.Size()}
}

// Set replaces the object ref points to.
func (u *Update) Set(ref Reference, o Object) {
	u.objects[ref.Number] = o
	u.gens[ref.Number] = ref.Generation
	u.doc.cache[ref.Number] = o
}

// Add stores a new object and returns its reference.
func (u *Update) Add(o Object) Reference {
	ref := Reference{Number: u.next}
	u.next++
	u.Set(ref, o)
	return ref
}

// Len is the number of objects written by the update.
func (u *Update) Len() int { return len(u.objects) }

// Bytes returns the original file followed by the update. The new
// cross-reference section uses the same form, table or stream, as the
// section it extends.
func (u *Update) Bytes() []byte {
	d := u.doc
	var buf bytes.Buffer
	buf.Write(d.data)
	if len(d.data) > 0 && d.data[len(d.data)-1] != '\n' {
		buf.WriteByte('\n')
	}

	offsets := make(map[int]int64)
	nums := make([]int, 0, len(u.objects))
	for num := range u.objects {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		offsets[num] = int64(buf.Len())
		writeIndirect(&buf, Reference{Number: num, Generation: u.gens[num]}, u.objects[num])
	}

	// A rebuilt xref has no section to chain to, so every object is listed.
	if d.startXRef < 0 {
		for num, e := range d.xref {
			if _, ok := offsets[num]; !ok && e.Kind == entryOffset {
				offsets[num] = e.Offset
				u.gens[num] = e.Generation
			}
		}
	}

	trailer := Dict{"Size": Integer(u.next)}
	for _, key := range []Name{"Root", "Info", "ID"} {
		if v, ok := d.trailer[key]; ok {
			trailer[key] = v
		}
	}
	if d.startXRef >= 0 {
		trailer["Prev"] = Integer(d.startXRef)
	}

	start := int64(buf.Len())
	if d.xrefStream {
		xref := Reference{Number: u.next}
		trailer["Size"] = Integer(u.next + 1)
		offsets[xref.Number] = start
		writeIndirect(&buf, xref, xrefStream(offsets, u.gens, trailer))
	} else {
		writeXRefTable(&buf, offsets, u.gens, d.startXRef < 0)
		buf.WriteString("trailer\n")
		writeDict(&buf, trailer)
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)
	return buf.Bytes()
}

// subsections groups sorted object numbers into contiguous runs.
func subsections(offsets map[int]int64) [][]int {
	nums := make([]int, 0, len(offsets))
	for num := range offsets {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	var out [][]int
	for _, n := range nums {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last[len(last)-1] == n-1 {
				out[len(out)-1] = append(last, n)
				continue
			}
		}
		out = append(out, []int{n})
	}
	return out
}

func writeXRefTable(buf *bytes.Buffer, offsets map[int]int64, gens map[int]int, withHead bool) {
	buf.WriteString("xref\n")
	if withHead {
		buf.WriteString("0 1\n0000000000 65535 f\r\n")
	}
	for _, run := range subsections(offsets) {
		fmt.Fprintf(buf, "%d %d\n", run[0], len(run))
		for _, n := range run {
			fmt.Fprintf(buf, "%010d %05d n\r\n", offsets[n], gens[n])
		}
	}
}

func xrefStream(offsets map[int]int64, gens map[int]int, trailer Dict) Stream {
	var index Array
	var data bytes.Buffer
	for _, run := range subsections(offsets) {
		index = append(index, Integer(run[0]), Integer(len(run)))
		for _, n := range run {
			var entry [7]byte
			entry[0] = 1
			binary.BigEndian.PutUint32(entry[1:5], uint32(offsets[n]))
			binary.BigEndian.PutUint16(entry[5:7], uint16(gens[n]))
			data.Write(entry[:])
		}
	}
	dict := trailer.Clone()
	dict["Type"] = Name("XRef")
	dict["W"] = Array{Integer(1), Integer(4), Integer(2)}
	dict["Index"] = index
	dict["Filter"] = Name("FlateDecode")
	return Stream{Dict: dict, Data: Flate(data.Bytes())}
}

// File assembles a new PDF from scratch.
type File struct {
	objects []Object
}

// Add appends an object and returns its reference. Numbers start at 1.
func (f *File) Add(o Object) Reference {
	f.objects = append(f.objects, o)
	return Reference{Number: len(f.objects)}
}

// Set replaces an object created by Add.
func (f *File) Set(ref Reference, o Object) {
	f.objects[ref.Number-1] = o
}

// Bytes renders the file with a classic xref table. The trailer gets
// its /Size filled in.
func (f *File) Bytes(trailer Dict) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	offsets := make(map[int]int64, len(f.objects))
	for i, o := range f.objects {
		offsets[i+1] = int64(buf.Len())
		writeIndirect(&buf, Reference{Number: i + 1}, o)
	}
	start := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", len(f.objects)+1)
	for i := range f.objects {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[i+1])
	}
	tr := trailer.Clone()
	tr["Size"] = Integer(len(f.objects) + 1)
	buf.WriteString("trailer\n")
	writeDict(&buf, tr)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", start)
	return buf.Bytes()
}
