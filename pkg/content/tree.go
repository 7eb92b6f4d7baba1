// Package content holds the live editable HTML tree and the placeholder
// anchors that selection rewrites stream into.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlaceholderAttr marks the span that anchors an in-flight rewrite.
const PlaceholderAttr = "data-inkwell-rewrite"

var (
	// ErrSelectionNotFound is returned when the requested text does not
	// occur in the tree's text.
	ErrSelectionNotFound = errors.New("content: selection not found")
	// ErrEmptySelection is returned for a blank selection.
	ErrEmptySelection = errors.New("content: empty selection")
	// ErrDetached is returned when a placeholder is no longer in the tree.
	ErrDetached = errors.New("content: placeholder detached")
)

// Tree is a parsed document body. All mutation goes through the tree's
// lock so placeholder writes and serialization never interleave.
type Tree struct {
	mu   sync.Mutex
	doc  *goquery.Document
	body *goquery.Selection
	seq  int
}

// Parse builds a tree from serialized body markup.
func Parse(markup string) (*Tree, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + markup + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("parse body: no body element")
	}
	return &Tree{doc: doc, body: body}, nil
}

// HTML serializes the body's children.
func (t *Tree) HTML() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.body.Html()
}

// PlainText returns the rendered text of the body with block elements
// separated by newlines.
func (t *Tree) PlainText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return renderText(t.body.Get(0))
}

// PlainText projects markup to its plain-text rendering.
func PlainText(markup string) string {
	if !strings.ContainsAny(markup, "<&") {
		return strings.TrimSpace(markup)
	}
	t, err := Parse(markup)
	if err != nil {
		return strings.TrimSpace(markup)
	}
	return t.PlainText()
}

// Selection addresses the Occurrence-th (zero based) appearance of Text in
// the plain-text rendering of the tree, in document order. Whitespace runs,
// including block boundaries, match any whitespace run.
type Selection struct {
	Text       string
	Occurrence int
}

// Placeholder is an anchor element inserted where a selection was removed.
type Placeholder struct {
	tree     *Tree
	id       string
	original string
}

// ID returns the placeholder's attribute value.
func (p *Placeholder) ID() string { return p.id }

// Original returns the text the placeholder replaced.
func (p *Placeholder) Original() string { return p.original }

// InsertPlaceholder removes the selected range and puts an empty anchor
// span at its start. A range crossing elements is cut like a DOM range
// deletion; elements the cut leaves empty are dropped.
func (t *Tree) InsertPlaceholder(sel Selection) (*Placeholder, error) {
	if sel.Text == "" {
		return nil, ErrEmptySelection
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := locate(t.body.Get(0), sel.Text, sel.Occurrence)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSelectionNotFound, sel.Text)
	}

	t.seq++
	id := strconv.Itoa(t.seq)
	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: PlaceholderAttr, Val: id}},
	}
	original := r.text()
	if r.start == r.end {
		splitAround(r.start, r.startOff, r.endOff, span)
	} else {
		deleteRange(r, span)
	}
	return &Placeholder{tree: t, id: id, original: original}, nil
}

// splitAround replaces node.Data[from:to] with anchor.
func splitAround(node *html.Node, from, to int, anchor *html.Node) {
	before := node.Data[:from]
	after := node.Data[to:]
	parent := node.Parent
	if before != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: before}, node)
	}
	parent.InsertBefore(anchor, node)
	if after != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, node)
	}
	parent.RemoveChild(node)
}

func deleteRange(r textRange, anchor *html.Node) {
	ancestors := map[*html.Node]bool{}
	for n := r.start.Parent; n != nil; n = n.Parent {
		ancestors[n] = true
	}
	common := r.end.Parent
	for !ancestors[common] {
		common = common.Parent
	}

	// Start side: everything after the start node up to the common ancestor.
	startTop := r.start
	for startTop.Parent != common {
		removeSiblingsAfter(startTop)
		startTop = startTop.Parent
	}
	// End side: everything before the end node up to the common ancestor.
	endTop := r.end
	for endTop.Parent != common {
		removeSiblingsBefore(endTop)
		endTop = endTop.Parent
	}
	for n := startTop.NextSibling; n != nil && n != endTop; {
		next := n.NextSibling
		common.RemoveChild(n)
		n = next
	}

	r.start.Data = r.start.Data[:r.startOff]
	r.end.Data = r.end.Data[r.endOff:]
	r.start.Parent.InsertBefore(anchor, r.start.NextSibling)
	if r.start.Data == "" {
		r.start.Parent.RemoveChild(r.start)
	}
	if r.end.Data == "" {
		parent := r.end.Parent
		parent.RemoveChild(r.end)
		for parent != common && parent.FirstChild == nil {
			next := parent.Parent
			next.RemoveChild(parent)
			parent = next
		}
	}
}

func removeSiblingsAfter(n *html.Node) {
	for c := n.NextSibling; c != nil; {
		next := c.NextSibling
		n.Parent.RemoveChild(c)
		c = next
	}
}

func removeSiblingsBefore(n *html.Node) {
	for c := n.PrevSibling; c != nil; {
		prev := c.PrevSibling
		n.Parent.RemoveChild(c)
		c = prev
	}
}

// Replace substitutes replacement markup for the selection in markup.
func Replace(markup string, sel Selection, replacement string) (string, error) {
	t, err := Parse(markup)
	if err != nil {
		return "", err
	}
	ph, err := t.InsertPlaceholder(sel)
	if err != nil {
		return "", err
	}
	if err := ph.Commit(replacement); err != nil {
		return "", err
	}
	return t.HTML()
}

func (p *Placeholder) find() *goquery.Selection {
	return p.tree.body.Find(`span[` + PlaceholderAttr + `="` + p.id + `"]`).First()
}

// SetHTML replaces the placeholder's children with parsed markup.
func (p *Placeholder) SetHTML(markup string) error {
	p.tree.mu.Lock()
	defer p.tree.mu.Unlock()
	span := p.find()
	if span.Length() == 0 {
		return ErrDetached
	}
	span.SetHtml(markup)
	return nil
}

// Commit replaces the placeholder with the parsed markup nodes.
func (p *Placeholder) Commit(markup string) error {
	p.tree.mu.Lock()
	defer p.tree.mu.Unlock()
	span := p.find()
	if span.Length() == 0 {
		return ErrDetached
	}
	parent := span.Get(0).Parent
	if markup == "" {
		span.Remove()
	} else {
		span.ReplaceWithHtml(markup)
	}
	mergeText(parent)
	return nil
}

// Restore puts the original text back where the placeholder was and
// rejoins the split text node. A selection that crossed elements comes
// back as plain text.
func (p *Placeholder) Restore() error {
	p.tree.mu.Lock()
	defer p.tree.mu.Unlock()
	span := p.find()
	if span.Length() == 0 {
		return ErrDetached
	}
	node := span.Get(0)
	parent := node.Parent
	parent.InsertBefore(&html.Node{Type: html.TextNode, Data: p.original}, node)
	parent.RemoveChild(node)
	mergeText(parent)
	return nil
}

// textRange is a located selection: from start.Data[startOff] through
// end.Data[endOff-1], spanning the text nodes in between.
type textRange struct {
	start, end       *html.Node
	startOff, endOff int
	texts            []textNode
}

type textNode struct {
	node *html.Node
	// breakBefore marks a block boundary between this node and the
	// previous text node.
	breakBefore bool
}

// text returns the raw selected text, with block boundaries as newlines.
func (r textRange) text() string {
	if r.start == r.end {
		return r.start.Data[r.startOff:r.endOff]
	}
	var b strings.Builder
	inside := false
	for _, tn := range r.texts {
		switch {
		case tn.node == r.start:
			inside = true
			b.WriteString(tn.node.Data[r.startOff:])
		case tn.node == r.end:
			if tn.breakBefore {
				b.WriteByte('\n')
			}
			b.WriteString(tn.node.Data[:r.endOff])
			return b.String()
		case inside:
			if tn.breakBefore {
				b.WriteByte('\n')
			}
			b.WriteString(tn.node.Data)
		}
	}
	return b.String()
}

// textPos maps one byte of the projection back to the tree. node is nil
// for separators standing in for block boundaries and line breaks.
type textPos struct {
	node *html.Node
	off  int
}

// projection renders root's text with whitespace runs collapsed to single
// spaces, recording where every byte came from.
type projection struct {
	buf       []byte
	pos       []textPos
	texts     []textNode
	pendBreak bool
}

func (p *projection) add(b byte, at textPos) {
	if isSpace(b) {
		if n := len(p.buf); n > 0 && p.buf[n-1] == ' ' {
			return
		}
		b = ' '
	}
	p.buf = append(p.buf, b)
	p.pos = append(p.pos, at)
}

func (p *projection) separator() {
	p.add(' ', textPos{off: -1})
	p.pendBreak = true
}

func (p *projection) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		p.texts = append(p.texts, textNode{node: n, breakBefore: p.pendBreak && len(p.texts) > 0})
		p.pendBreak = false
		for i := 0; i < len(n.Data); i++ {
			p.add(n.Data[i], textPos{node: n, off: i})
		}
		return
	case html.ElementNode:
		if skipElement(n) {
			return
		}
		if n.DataAtom == atom.Br {
			p.separator()
			return
		}
	}
	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		p.separator()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
	if block {
		p.separator()
	}
}

// locate finds the occurrence-th match of needle in root's projection.
func locate(root *html.Node, needle string, occurrence int) (textRange, bool) {
	if occurrence < 0 {
		occurrence = 0
	}
	var p projection
	p.walk(root)
	want := collapseSpace(needle)

	from := 0
	for {
		idx := bytes.Index(p.buf[from:], want)
		if idx < 0 {
			return textRange{}, false
		}
		idx += from
		if occurrence == 0 {
			first, last := idx, idx+len(want)-1
			for first <= last && p.pos[first].node == nil {
				first++
			}
			for last >= first && p.pos[last].node == nil {
				last--
			}
			if first > last {
				return textRange{}, false
			}
			return textRange{
				start:    p.pos[first].node,
				startOff: p.pos[first].off,
				end:      p.pos[last].node,
				endOff:   p.pos[last].off + 1,
				texts:    p.texts,
			}, true
		}
		occurrence--
		from = idx + len(want)
	}
}

func collapseSpace(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if isSpace(b) {
			if n := len(out); n > 0 && out[n-1] == ' ' {
				continue
			}
			b = ' '
		}
		out = append(out, b)
	}
	return out
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// mergeText joins adjacent text children of n.
func mergeText(n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		}
		c = next
	}
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template:
		return true
	}
	return false
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.Blockquote: true, atom.Pre: true, atom.Tr: true,
	atom.Table: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Hr: true,
}

func renderText(root *html.Node) string {
	if root == nil {
		return ""
	}
	var buf bytes.Buffer
	newline := func() {
		if b := buf.Bytes(); len(b) > 0 && b[len(b)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipElement(n) {
				return
			}
			if n.DataAtom == atom.Br {
				buf.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			newline()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			newline()
		}
	}
	walk(root)
	return strings.TrimSpace(buf.String())
}
