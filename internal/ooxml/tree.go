// Package ooxml reads and writes the parts of a Word-compatible OOXML
// package and exposes a minimal mutable XML tree over them.
//
// The tree keeps every element, attribute, comment and processing
// instruction it does not interpret, so a part that is parsed and written
// back unchanged is semantically identical to the input. Prefixes are kept
// exactly as written (the decoder runs in raw mode), which means element
// names are matched by prefix, e.g. "w:p".
package ooxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedXML is returned when a part is not well-formed XML.
var ErrMalformedXML = errors.New("ooxml: malformed xml")

// NodeType identifies the kind of a Node.
type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Node is one node of a parsed part.
type Node struct {
	Type NodeType
	// Name of an element. Space holds the prefix as written in the part.
	// For a ProcInstNode, Name.Local holds the target.
	Name     xml.Name
	Attr     []xml.Attr
	Data     string
	Children []*Node
	Parent   *Node
}

// Parse builds a tree from a part's bytes. The returned node is a
// DocumentNode whose children are the prolog and the root element.
func Parse(data []byte) (*Node, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	root := &Node{Type: DocumentNode}
	cur := root
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Type: ElementNode, Name: t.Name}
			if len(t.Attr) > 0 {
				n.Attr = append([]xml.Attr(nil), t.Attr...)
			}
			cur.AppendChild(n)
			cur = n
		case xml.EndElement:
			if cur.Type != ElementNode || cur.Name != t.Name {
				return nil, fmt.Errorf("%w: unexpected end element %s", ErrMalformedXML, qualified(t.Name))
			}
			cur = cur.Parent
		case xml.CharData:
			cur.AppendChild(&Node{Type: TextNode, Data: string(t)})
		case xml.Comment:
			cur.AppendChild(&Node{Type: CommentNode, Data: string(t)})
		case xml.ProcInst:
			cur.AppendChild(&Node{Type: ProcInstNode, Name: xml.Name{Local: t.Target}, Data: string(t.Inst)})
		case xml.Directive:
			cur.AppendChild(&Node{Type: DirectiveNode, Data: string(t)})
		}
	}
	if cur != root {
		return nil, fmt.Errorf("%w: unclosed element %s", ErrMalformedXML, qualified(cur.Name))
	}
	if root.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedXML)
	}
	return root, nil
}

// Bytes serializes the subtree rooted at n.
func (n *Node) Bytes() []byte {
	var b bytes.Buffer
	n.write(&b)
	return b.Bytes()
}

func (n *Node) write(b *bytes.Buffer) {
	switch n.Type {
	case DocumentNode:
		for _, c := range n.Children {
			c.write(b)
		}
	case ElementNode:
		b.WriteByte('<')
		b.WriteString(qualified(n.Name))
		for _, a := range n.Attr {
			b.WriteByte(' ')
			b.WriteString(qualified(a.Name))
			b.WriteString(`="`)
			b.WriteString(attrEscaper.Replace(a.Value))
			b.WriteByte('"')
		}
		if len(n.Children) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for _, c := range n.Children {
			c.write(b)
		}
		b.WriteString("</")
		b.WriteString(qualified(n.Name))
		b.WriteByte('>')
	case TextNode:
		b.WriteString(textEscaper.Replace(n.Data))
	case CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")
	case ProcInstNode:
		b.WriteString("<?")
		b.WriteString(n.Name.Local)
		if n.Data != "" {
			b.WriteByte(' ')
			b.WriteString(n.Data)
		}
		b.WriteString("?>")
	case DirectiveNode:
		b.WriteString("<!")
		b.WriteString(n.Data)
		b.WriteByte('>')
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;")
)

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func splitName(name string) xml.Name {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return xml.Name{Space: name[:i], Local: name[i+1:]}
	}
	return xml.Name{Local: name}
}

// NewElement creates a detached element such as NewElement("w:r").
func NewElement(name string, attrs ...xml.Attr) *Node {
	return &Node{Type: ElementNode, Name: splitName(name), Attr: attrs}
}

// NewText creates a detached character-data node.
func NewText(s string) *Node {
	return &Node{Type: TextNode, Data: s}
}

// A returns an attribute with a qualified name, for use with NewElement.
func A(name, value string) xml.Attr {
	return xml.Attr{Name: splitName(name), Value: value}
}

// Root returns the document element of a DocumentNode.
func (n *Node) Root() *Node {
	for _, c := range n.Children {
		if c.Type == ElementNode {
			return c
		}
	}
	return nil
}

// Is reports whether n is an element with the given qualified name.
func (n *Node) Is(name string) bool {
	if n == nil || n.Type != ElementNode {
		return false
	}
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return n.Name.Space == name[:i] && n.Name.Local == name[i+1:]
	}
	return n.Name.Space == "" && n.Name.Local == name
}

// Elements returns the element children of n.
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first element child with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Is(name) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all element children with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Is(name) {
			out = append(out, c)
		}
	}
	return out
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// FindAll returns every descendant element (n excluded) with the given
// name, in document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.Walk(func(x *Node) bool {
			if x.Is(name) {
				out = append(out, x)
			}
			return true
		})
	}
	return out
}

// Find returns the first descendant element with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	for _, c := range n.Children {
		c.Walk(func(x *Node) bool {
			if found != nil {
				return false
			}
			if x.Is(name) {
				found = x
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

// Ancestor returns the nearest ancestor with the given name.
func (n *Node) Ancestor(name string) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Is(name) {
			return p
		}
	}
	return nil
}

// GetAttr returns the value of the attribute with the qualified name.
func (n *Node) GetAttr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	want := splitName(name)
	for _, a := range n.Attr {
		if a.Name == want {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or adds an attribute.
func (n *Node) SetAttr(name, value string) {
	want := splitName(name)
	for i, a := range n.Attr {
		if a.Name == want {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xml.Attr{Name: want, Value: value})
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(name string) {
	want := splitName(name)
	for i, a := range n.Attr {
		if a.Name == want {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// AppendChild detaches c from its parent and appends it to n.
func (n *Node) AppendChild(c *Node) {
	c.detach()
	c.Parent = n
	n.Children = append(n.Children, c)
}

// InsertChild inserts c at position i of n's children.
func (n *Node) InsertChild(i int, c *Node) {
	c.detach()
	c.Parent = n
	if i >= len(n.Children) {
		n.Children = append(n.Children, c)
		return
	}
	if i < 0 {
		i = 0
	}
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = c
}

// Index returns the position of n among its parent's children, or -1.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	n.detach()
}

func (n *Node) detach() {
	if n.Parent == nil {
		return
	}
	if i := n.Index(); i >= 0 {
		n.Parent.Children = append(n.Parent.Children[:i], n.Parent.Children[i+1:]...)
	}
	n.Parent = nil
}

// InsertBefore inserts nodes, in order, immediately before n.
func (n *Node) InsertBefore(nodes ...*Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for _, x := range nodes {
		x.detach()
		parent.InsertChild(n.Index(), x)
	}
}

// InsertAfter inserts nodes, in order, immediately after n.
func (n *Node) InsertAfter(nodes ...*Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	prev := n
	for _, x := range nodes {
		x.detach()
		parent.InsertChild(prev.Index()+1, x)
		prev = x
	}
}

// ReplaceWith puts nodes where n was and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	n.InsertBefore(nodes...)
	n.Remove()
}

// RemoveChildren detaches every child of n.
func (n *Node) RemoveChildren() {
	for _, c := range n.Children {
		c.Parent = nil
	}
	n.Children = nil
}

// Clone returns a deep copy of n with no parent.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Type: n.Type, Name: n.Name, Data: n.Data}
	if len(n.Attr) > 0 {
		c.Attr = append([]xml.Attr(nil), n.Attr...)
	}
	for _, ch := range n.Children {
		cc := ch.Clone()
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// CharData concatenates the direct character-data children of n.
func (n *Node) CharData() string {
	var b strings.Builder
	for _, c := range n.Children {
		if c.Type == TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
