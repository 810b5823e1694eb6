package export

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
)

// RenderElements converts a page tree to HTML. Styles are emitted verbatim
// as inline declarations; no layout is computed.
func RenderElements(doc editor.Document) string {
	if doc.Root == nil {
		return ""
	}
	var b strings.Builder
	renderElement(&b, doc.Root)
	return b.String()
}

// renderElement recurses; persisted documents are depth-bounded by
// editor.Validate.
func renderElement(b *strings.Builder, el *editor.Element) {
	attrs := elementAttrs(el)
	switch el.Kind {
	case editor.KindRoot, editor.KindContainer, editor.KindTwoColumn:
		fmt.Fprintf(b, "<div%s>", attrs)
		for _, child := range el.Children {
			renderElement(b, child)
		}
		b.WriteString("</div>\n")
	case editor.KindText:
		fmt.Fprintf(b, "<p%s>%s</p>\n", attrs, html.EscapeString(innerText(el)))
	case editor.KindLink:
		href := "#"
		if el.Content != nil {
			href = safeURL(el.Content.Href)
		}
		fmt.Fprintf(b, "<a%s href=\"%s\">%s</a>\n", attrs, html.EscapeString(href), html.EscapeString(innerText(el)))
	case editor.KindVideo:
		src := ""
		if el.Content != nil {
			src = safeURL(el.Content.Src)
		}
		fmt.Fprintf(b, "<iframe%s src=\"%s\" title=\"%s\" allowfullscreen></iframe>\n",
			attrs, html.EscapeString(src), html.EscapeString(el.Label))
	case editor.KindIcon:
		fmt.Fprintf(b, "<span%s aria-hidden=\"true\">%s</span>\n", attrs, html.EscapeString(innerText(el)))
	case editor.KindContactForm:
		fmt.Fprintf(b, "<form%s method=\"post\">", attrs)
		b.WriteString(`<label>Name <input type="text" name="name"></label>`)
		b.WriteString(`<label>Email <input type="email" name="email"></label>`)
		b.WriteString(`<button type="submit">Submit</button></form>`)
		b.WriteString("\n")
	case editor.KindPaymentForm:
		fmt.Fprintf(b, "<div%s>Checkout is available on the live page.</div>\n", attrs)
	}
}

func elementAttrs(el *editor.Element) string {
	class := "el el-" + strings.ToLower(string(el.Kind))
	if el.Kind == editor.KindRoot {
		class = "el page-body"
	}
	out := fmt.Sprintf(` id="%s" class="%s"`, html.EscapeString(el.ID), class)
	if style := inlineStyle(el.Styles); style != "" {
		out += fmt.Sprintf(` style="%s"`, html.EscapeString(style))
	}
	return out
}

func innerText(el *editor.Element) string {
	if el.Content == nil {
		return ""
	}
	return el.Content.InnerText
}

// inlineStyle turns a style map into a CSS declaration list with keys in
// sorted order. Keys that are not plain identifiers and values that could
// break out of the declaration are dropped.
func inlineStyle(styles map[string]any) string {
	if len(styles) == 0 {
		return ""
	}
	keys := make([]string, 0, len(styles))
	for key := range styles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		prop, ok := cssProperty(key)
		if !ok {
			continue
		}
		value, ok := cssValue(styles[key])
		if !ok {
			continue
		}
		parts = append(parts, prop+": "+value)
	}
	return strings.Join(parts, "; ")
}

// cssProperty converts camelCase keys to kebab-case.
func cssProperty(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	var b strings.Builder
	for i, r := range key {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	return b.String(), true
}

func cssValue(raw any) (string, bool) {
	var value string
	switch v := raw.(type) {
	case string:
		value = strings.TrimSpace(v)
	case float64:
		value = fmt.Sprintf("%g", v)
	case int:
		value = fmt.Sprintf("%d", v)
	case bool:
		value = fmt.Sprintf("%t", v)
	default:
		return "", false
	}
	if value == "" || strings.ContainsAny(value, ";{}<>") {
		return "", false
	}
	return value, true
}

// safeURL allows http, https, mailto and relative links.
func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "#"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https", "mailto":
		return raw
	default:
		return "#"
	}
}
