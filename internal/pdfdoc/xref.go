package pdfdoc

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

type entryKind uint8

const (
	entryFree entryKind = iota
	entryOffset
	entryCompressed
)

// xrefEntry locates one object. Compressed entries live in object
// stream Stream at position Index.
type xrefEntry struct {
	Kind       entryKind
	Offset     int64
	Generation int
	Stream     int
	Index      int
}

type xrefTable map[int]xrefEntry

// merge adds entries from an older section without overriding newer ones.
func (t xrefTable) merge(older xrefTable) {
	for num, e := range older {
		if _, ok := t[num]; !ok {
			t[num] = e
		}
	}
}

func findStartXRef(data []byte) (int64, error) {
	tail := data[max(0, len(data)-2048):]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}
	p := newParser(tail[idx+len("startxref"):])
	tok := p.readToken()
	off, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("invalid startxref %q", tok)
	}
	return off, nil
}

// readXRef reads the section at offset and every section reachable
// through /Prev and /XRefStm. The trailer returned is the newest one.
func readXRef(data []byte, offset int64) (xrefTable, Dict, bool, error) {
	table := make(xrefTable)
	var trailer Dict
	var isStream bool
	seen := make(map[int64]bool)
	queue := []int64{offset}
	for first := true; len(queue) > 0; first = false {
		off := queue[0]
		queue = queue[1:]
		if seen[off] || off < 0 || off >= int64(len(data)) {
			continue
		}
		seen[off] = true

		sect, tr, stream, err := readSection(data, off)
		if err != nil {
			return nil, nil, false, err
		}
		table.merge(sect)
		if first {
			trailer, isStream = tr, stream
		}
		if hybrid, ok := tr.GetInt("XRefStm"); ok {
			queue = append([]int64{hybrid}, queue...)
		}
		if prev, ok := tr.GetInt("Prev"); ok {
			queue = append(queue, prev)
		}
	}
	return table, trailer, isStream, nil
}

func readSection(data []byte, off int64) (xrefTable, Dict, bool, error) {
	p := newParser(data)
	p.pos = int(off)
	p.skipWhitespace()
	if !p.hasPrefix("xref") {
		t, d, err := readXRefStream(data, off)
		return t, d, true, err
	}
	p.pos += len("xref")
	table := make(xrefTable)
	for {
		tok := p.readToken()
		if tok == "trailer" || tok == "" {
			break
		}
		start, err1 := strconv.Atoi(tok)
		count, err2 := strconv.Atoi(p.readToken())
		if err1 != nil || err2 != nil {
			return nil, nil, false, fmt.Errorf("bad xref subsection at offset %d", p.pos)
		}
		for i := 0; i < count; i++ {
			o, err1 := strconv.ParseInt(p.readToken(), 10, 64)
			gen, err2 := strconv.Atoi(p.readToken())
			kind := p.readToken()
			if err1 != nil || err2 != nil {
				return nil, nil, false, fmt.Errorf("bad xref entry %d", start+i)
			}
			num := start + i
			if _, ok := table[num]; ok {
				continue
			}
			if kind == "n" {
				table[num] = xrefEntry{Kind: entryOffset, Offset: o, Generation: gen}
			} else {
				table[num] = xrefEntry{Kind: entryFree, Generation: gen}
			}
		}
	}
	obj, err := p.parseObject()
	if err != nil {
		return nil, nil, false, fmt.Errorf("trailer: %w", err)
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, nil, false, fmt.Errorf("trailer is not a dictionary")
	}
	return table, trailer, false, nil
}

func readXRefStream(data []byte, off int64) (xrefTable, Dict, error) {
	p := newParser(data)
	p.pos = int(off)
	_, obj, err := p.parseIndirect()
	if err != nil {
		return nil, nil, fmt.Errorf("xref stream: %w", err)
	}
	s, ok := obj.(Stream)
	if !ok || s.Dict.GetName("Type") != "XRef" {
		return nil, nil, fmt.Errorf("no xref at offset %d", off)
	}
	decoded, err := Decode(s)
	if err != nil {
		return nil, nil, fmt.Errorf("xref stream: %w", err)
	}
	w := s.Dict.GetArray("W")
	if len(w) != 3 {
		return nil, nil, fmt.Errorf("xref stream /W must have 3 entries")
	}
	var widths [3]int
	for i, v := range w {
		n, _ := v.(Integer)
		widths[i] = int(n)
	}
	entrySize := widths[0] + widths[1] + widths[2]
	if entrySize == 0 {
		return nil, nil, fmt.Errorf("xref stream has zero-width entries")
	}

	var index []int
	for _, v := range s.Dict.GetArray("Index") {
		if n, ok := v.(Integer); ok {
			index = append(index, int(n))
		}
	}
	if len(index) == 0 {
		size, _ := s.Dict.GetInt("Size")
		index = []int{0, int(size)}
	}

	table := make(xrefTable)
	pos := 0
	field := func(width int, def int64) int64 {
		if width == 0 {
			return def
		}
		var v int64
		for k := 0; k < width; k++ {
			v = v<<8 | int64(decoded[pos])
			pos++
		}
		return v
	}
	for i := 0; i+1 < len(index); i += 2 {
		for j := 0; j < index[i+1]; j++ {
			if pos+entrySize > len(decoded) {
				break
			}
			typ, f2, f3 := field(widths[0], 1), field(widths[1], 0), field(widths[2], 0)
			num := index[i] + j
			switch typ {
			case 0:
				table[num] = xrefEntry{Kind: entryFree, Generation: int(f3)}
			case 1:
				table[num] = xrefEntry{Kind: entryOffset, Offset: f2, Generation: int(f3)}
			case 2:
				table[num] = xrefEntry{Kind: entryCompressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return table, s.Dict, nil
}

var objHeaderRe = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// rebuildXRef scans the whole file for object headers when the xref
// data is missing or damaged. Later definitions win.
func rebuildXRef(data []byte) (xrefTable, Dict, error) {
	table := make(xrefTable)
	for _, m := range objHeaderRe.FindAllSubmatchIndex(data, -1) {
		num, _ := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(data[m[4]:m[5]]))
		table[num] = xrefEntry{Kind: entryOffset, Offset: int64(m[2]), Generation: gen}
	}
	if len(table) == 0 {
		return nil, nil, fmt.Errorf("no objects found")
	}

	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		p := newParser(data)
		p.pos = idx + len("trailer")
		if obj, err := p.parseObject(); err == nil {
			if d, ok := obj.(Dict); ok && d["Root"] != nil {
				return table, d, nil
			}
		}
	}
	// No usable trailer: look for the catalog or an xref stream dictionary.
	for num, e := range table {
		p := newParser(data)
		p.pos = int(e.Offset)
		_, obj, err := p.parseIndirect()
		if err != nil {
			continue
		}
		switch v := obj.(type) {
		case Dict:
			if v.GetName("Type") == "Catalog" {
				return table, Dict{"Root": Reference{Number: num, Generation: e.Generation}}, nil
			}
		case Stream:
			if v.Dict.GetName("Type") == "XRef" && v.Dict["Root"] != nil {
				return table, v.Dict, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("no catalog found")
}
