package vdom

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// createElement creates a detached element.
// Arguments can be: nil, Attr, []Attr, *VNode, []*VNode, Children, string.
func createElement(tag string, args []any) *VNode {
	node := &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: make(Props),
	}

	adopt := func(c *VNode) {
		if c == nil {
			return
		}
		if c.parent != nil {
			c.Remove()
		}
		c.parent = node
		node.children = append(node.children, c)
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			continue
		case Attr:
			if v.Key != "" {
				node.Props[v.Key] = v.Value
			}
		case []Attr:
			for _, a := range v {
				if a.Key != "" {
					node.Props[a.Key] = a.Value
				}
			}
		case *VNode:
			adopt(v)
		case []*VNode:
			for _, c := range v {
				adopt(c)
			}
		case Children:
			for _, c := range v {
				adopt(c)
			}
		case string:
			adopt(Text(v))
		}
	}

	return node
}

// Element creates an element with an arbitrary tag name.
func Element(tag string, args ...any) *VNode {
	return createElement(tag, args)
}

func Html(args ...any) *VNode    { return createElement("html", args) }
func Body(args ...any) *VNode    { return createElement("body", args) }
func Main(args ...any) *VNode    { return createElement("main", args) }
func Section(args ...any) *VNode { return createElement("section", args) }
func Article(args ...any) *VNode { return createElement("article", args) }
func Header(args ...any) *VNode  { return createElement("header", args) }
func Footer(args ...any) *VNode  { return createElement("footer", args) }
func Nav(args ...any) *VNode     { return createElement("nav", args) }
func H1(args ...any) *VNode      { return createElement("h1", args) }
func H2(args ...any) *VNode      { return createElement("h2", args) }

func Div(args ...any) *VNode    { return createElement("div", args) }
func P(args ...any) *VNode      { return createElement("p", args) }
func Span(args ...any) *VNode   { return createElement("span", args) }
func Ul(args ...any) *VNode     { return createElement("ul", args) }
func Li(args ...any) *VNode     { return createElement("li", args) }
func Strong(args ...any) *VNode { return createElement("strong", args) }
func A(args ...any) *VNode      { return createElement("a", args) }
func Br(args ...any) *VNode     { return createElement("br", args) }

func Form(args ...any) *VNode     { return createElement("form", args) }
func Input(args ...any) *VNode    { return createElement("input", args) }
func Textarea(args ...any) *VNode { return createElement("textarea", args) }
func Select(args ...any) *VNode   { return createElement("select", args) }
func Option(args ...any) *VNode   { return createElement("option", args) }
func Button(args ...any) *VNode   { return createElement("button", args) }
func Label(args ...any) *VNode    { return createElement("label", args) }
func Output(args ...any) *VNode   { return createElement("output", args) }

func Table(args ...any) *VNode { return createElement("table", args) }
func Tr(args ...any) *VNode    { return createElement("tr", args) }
func Td(args ...any) *VNode    { return createElement("td", args) }

func Template(args ...any) *VNode { return createElement("template", args) }
