package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

const (
	// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion
	MaxHTMLSize = 10 * 1024 * 1024
)

var (
	ErrTooLarge        = errors.New("document exceeds maximum size")
	ErrInvalidSelector = errors.New("invalid CSS selector")
	ErrInvalidXPath    = errors.New("invalid XPath expression")
)

// Document is a parsed HTML or XML tree
type Document struct {
	root *html.Node
}

// Node is one element (or text node) in a Document
type Node struct {
	n *html.Node
}

// ParseHTML parses an HTML string. The input is already Unicode, so no
// charset conversion happens here; see DecodeBody for raw bytes.
func ParseHTML(src string) (*Document, error) {
	if len(src) > MaxHTMLSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(src))
	}
	root, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseXML parses XML through the HTML parser. Tag names are lowercased
// and unknown elements are kept, which is enough for RSS and sitemap
// style feeds that plugins consume.
func ParseXML(src string) (*Document, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "<?xml") {
		if end := strings.Index(src, "?>"); end >= 0 {
			src = src[end+2:]
		}
	}
	return ParseHTML(src)
}

// Root returns the document node
func (d *Document) Root() *Node {
	return &Node{n: d.root}
}

// Find returns every element matching selector below the document root
func (d *Document) Find(selector string) ([]*Node, error) {
	return d.Root().Find(selector)
}

// First returns the first element matching selector, or nil
func (d *Document) First(selector string) (*Node, error) {
	return d.Root().First(selector)
}

// XPath evaluates expr against the document
func (d *Document) XPath(expr string) ([]*Node, error) {
	return d.Root().XPath(expr)
}

// Find runs a CSS selector below n
func (n *Node) Find(selector string) ([]*Node, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSelector, selector, err)
	}
	sel := goquery.NewDocumentFromNode(n.n).FindMatcher(matcher)
	return wrap(sel.Nodes), nil
}

// First runs a CSS selector below n and returns the first match
func (n *Node) First(selector string) (*Node, error) {
	nodes, err := n.Find(selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// XPath evaluates expr relative to n
func (n *Node) XPath(expr string) ([]*Node, error) {
	nodes, err := htmlquery.QueryAll(n.n, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidXPath, expr, err)
	}
	return wrap(nodes), nil
}

// XPathOne evaluates expr relative to n and returns the first match
func (n *Node) XPathOne(expr string) (*Node, error) {
	nodes, err := n.XPath(expr)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Tag returns the lowercased element name, or "" for non-elements
func (n *Node) Tag() string {
	if n.n.Type != html.ElementNode {
		return ""
	}
	return n.n.Data
}

// Text returns the trimmed text content
func (n *Node) Text() string {
	return strings.TrimSpace(htmlquery.InnerText(n.n))
}

// HTML returns the inner HTML
func (n *Node) HTML() string {
	return htmlquery.OutputHTML(n.n, false)
}

// OuterHTML returns the node including its own tag
func (n *Node) OuterHTML() string {
	return htmlquery.OutputHTML(n.n, true)
}

// Attr returns an attribute value and whether it exists
func (n *Node) Attr(name string) (string, bool) {
	if !htmlquery.ExistsAttr(n.n, name) {
		return "", false
	}
	return htmlquery.SelectAttr(n.n, name), true
}

// Attrs returns every attribute on the element
func (n *Node) Attrs() map[string]string {
	attrs := make(map[string]string, len(n.n.Attr))
	for _, a := range n.n.Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

// Children returns direct element children
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Node{n: c})
		}
	}
	return out
}

// Parent returns the parent element, or nil at the top
func (n *Node) Parent() *Node {
	if n.n.Parent == nil {
		return nil
	}
	return &Node{n: n.n.Parent}
}

func wrap(nodes []*html.Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = &Node{n: n}
	}
	return out
}
