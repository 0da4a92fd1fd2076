package vdom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML parses markup into a Document rooted at the <body> element.
// Fragments are accepted; the parser supplies the missing html and body
// elements. Comments and whitespace-only text are dropped.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("vdom: parse html: %w", err)
	}
	body := findElement(root, "body")
	if body == nil {
		return nil, fmt.Errorf("vdom: parse html: no body element")
	}
	return NewDocument(convert(body)), nil
}

// ParseHTMLString is ParseHTML over a string.
func ParseHTMLString(markup string) (*Document, error) {
	return ParseHTML(strings.NewReader(markup))
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func convert(n *html.Node) *VNode {
	v := &VNode{Kind: KindElement, Tag: n.Data, Props: make(Props, len(n.Attr))}
	for _, a := range n.Attr {
		v.Props[a.Key] = a.Val
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		var child *VNode
		switch c.Type {
		case html.ElementNode:
			child = convert(c)
		case html.TextNode:
			if strings.TrimSpace(c.Data) == "" {
				continue
			}
			child = Text(c.Data)
		default:
			continue
		}
		child.parent = v
		v.children = append(v.children, child)
	}
	return v
}
