package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// parser is a recursive descent parser over PDF syntax.
type parser struct {
	data []byte
	pos  int
	// length resolves an indirect /Length; nil when parsing without a document.
	length func(Reference) (int, bool)
}

func newParser(data []byte) *parser {
	return &parser{data: data}
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', 0:
			p.pos++
		case '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (p *parser) readToken() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

func (p *parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.data[p.pos:], []byte(s))
}

// parseObject parses the next direct object.
func (p *parser) parseObject() (Object, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, io.ErrUnexpectedEOF
	}
	switch b := p.data[p.pos]; {
	case b == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.parseDict()
		}
		return p.parseHexString()
	case b == '(':
		return p.parseLiteralString()
	case b == '/':
		return p.parseName(), nil
	case b == '[':
		return p.parseArray()
	case b >= '0' && b <= '9', b == '+', b == '-', b == '.':
		return p.parseNumberOrRef()
	default:
		switch tok := p.readToken(); tok {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		case "null":
			return Null{}, nil
		default:
			return nil, fmt.Errorf("unexpected token %q at offset %d", tok, p.pos)
		}
	}
}

func (p *parser) parseName() Name {
	p.pos++ // '/'
	var buf bytes.Buffer
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		if b == '#' && p.pos+2 < len(p.data) {
			hi, lo := unhex(p.data[p.pos+1]), unhex(p.data[p.pos+2])
			if hi >= 0 && lo >= 0 {
				buf.WriteByte(byte(hi<<4 | lo))
				p.pos += 3
				continue
			}
		}
		buf.WriteByte(b)
		p.pos++
	}
	return Name(buf.String())
}

// parseNumberOrRef reads a number, or "N G R" when two integers are
// followed by R.
func (p *parser) parseNumberOrRef() (Object, error) {
	start := p.pos
	tok := p.readToken()
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		after := p.pos
		p.skipWhitespace()
		if p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			if gen, err := strconv.ParseInt(p.readToken(), 10, 64); err == nil {
				p.skipWhitespace()
				if p.pos < len(p.data) && p.data[p.pos] == 'R' {
					p.pos++
					return Reference{Number: int(n), Generation: int(gen)}, nil
				}
			}
		}
		p.pos = after
		return Integer(n), nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		// Malformed numbers such as "--5" read as 0.
		if tok == "" {
			return nil, fmt.Errorf("invalid number at offset %d", start)
		}
		return Real(0), nil
	}
	return Real(f), nil
}

func (p *parser) parseLiteralString() (String, error) {
	p.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		p.pos++
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return String{Value: buf.Bytes()}, nil
			}
			buf.WriteByte(b)
		case '\\':
			if p.pos >= len(p.data) {
				return String{}, fmt.Errorf("unterminated escape")
			}
			esc := p.data[p.pos]
			p.pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
			default:
				if esc >= '0' && esc <= '7' {
					oct := int(esc - '0')
					for i := 0; i < 2 && p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						oct = oct*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					buf.WriteByte(byte(oct))
				} else {
					buf.WriteByte(esc)
				}
			}
		default:
			buf.WriteByte(b)
		}
	}
	return String{}, fmt.Errorf("unterminated literal string")
}

func (p *parser) parseHexString() (String, error) {
	p.pos++ // '<'
	var buf bytes.Buffer
	hi := -1
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		p.pos++
		if b == '>' {
			if hi >= 0 {
				buf.WriteByte(byte(hi << 4))
			}
			return String{Value: buf.Bytes(), IsHex: true}, nil
		}
		if isWhitespace(b) {
			continue
		}
		v := unhex(b)
		if v < 0 {
			return String{}, fmt.Errorf("invalid hex digit %q", b)
		}
		if hi < 0 {
			hi = v
		} else {
			buf.WriteByte(byte(hi<<4 | v))
			hi = -1
		}
	}
	return String{}, fmt.Errorf("unterminated hex string")
}

func (p *parser) parseArray() (Array, error) {
	p.pos++ // '['
	arr := Array{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unterminated array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		arr = append(arr, obj)
	}
}

func (p *parser) parseDict() (Dict, error) {
	p.pos += 2 // '<<'
	d := make(Dict)
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if p.hasPrefix(">>") {
			p.pos += 2
			return d, nil
		}
		if p.data[p.pos] != '/' {
			return nil, fmt.Errorf("dictionary key expected at offset %d", p.pos)
		}
		key := p.parseName()
		val, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("dictionary value for /%s: %w", key, err)
		}
		if _, null := val.(Null); !null {
			d[key] = val
		}
	}
}

// parseIndirect parses "N G obj ... endobj" at the current position.
func (p *parser) parseIndirect() (Reference, Object, error) {
	num, err1 := strconv.Atoi(p.readToken())
	gen, err2 := strconv.Atoi(p.readToken())
	if err1 != nil || err2 != nil || p.readToken() != "obj" {
		return Reference{}, nil, fmt.Errorf("object header expected at offset %d", p.pos)
	}
	ref := Reference{Number: num, Generation: gen}
	val, err := p.parseObject()
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	p.skipWhitespace()
	if !p.hasPrefix("stream") {
		return ref, val, nil
	}
	dict, ok := val.(Dict)
	if !ok {
		return ref, nil, fmt.Errorf("object %s: stream without dictionary", ref)
	}
	p.pos += len("stream")
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}
	data, err := p.streamData(dict)
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	return ref, Stream{Dict: dict, Data: data}, nil
}

// streamData reads stream bytes using /Length, falling back to a scan
// for "endstream" when the length is missing or wrong.
func (p *parser) streamData(dict Dict) ([]byte, error) {
	length := -1
	switch v := dict["Length"].(type) {
	case Integer:
		length = int(v)
	case Reference:
		if p.length != nil {
			if n, ok := p.length(v); ok {
				length = n
			}
		}
	}
	start := p.pos
	if length >= 0 && start+length <= len(p.data) {
		end := start + length
		rest := newParser(p.data)
		rest.pos = end
		rest.skipWhitespace()
		if rest.hasPrefix("endstream") {
			p.pos = rest.pos + len("endstream")
			return p.data[start:end], nil
		}
	}
	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("unterminated stream")
	}
	end := start + idx
	for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
		end--
	}
	p.pos = start + idx + len("endstream")
	return p.data[start:end], nil
}

func unhex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}
