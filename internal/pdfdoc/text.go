package pdfdoc

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// DecodeText reads a PDF text string: UTF-16BE when it starts with a
// byte order mark, UTF-8 with its mark, otherwise PDFDocEncoding, read
// here as Latin-1.
func DecodeText(o Object) string {
	s, ok := o.(String)
	if !ok {
		if n, ok := o.(Name); ok {
			return string(n)
		}
		return ""
	}
	b := s.Value
	switch {
	case bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		out, err := utf16be.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return string(b[3:])
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// EncodeText builds a text string object: a literal for ASCII, UTF-16BE
// with a byte order mark for anything else.
func EncodeText(s string) String {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return Text(s)
	}
	out, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return Text(s)
	}
	return String{Value: out, IsHex: true}
}
