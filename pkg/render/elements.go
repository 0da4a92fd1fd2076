package render

import "strings"

// inlineElements stay on one line in pretty output.
var inlineElements = setOf(`
	a abbr b bdi bdo br cite code data dfn em i kbd mark q rb rp rt rtc ruby
	s samp small span strong sub sup time u var wbr`)

// booleanAttrs render bare when their value is empty, as the HTML parser
// produces them.
var booleanAttrs = setOf(`
	allowfullscreen async autofocus autoplay checked controls default defer
	disabled formnovalidate hidden ismap itemscope loop multiple muted
	nomodule novalidate open playsinline readonly required reversed selected`)

func setOf(names string) map[string]bool {
	fields := strings.Fields(names)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func isInlineElement(tag string) bool { return inlineElements[tag] }

func isBooleanAttr(name string) bool { return booleanAttrs[name] }
