package plugin

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/pkg/errors"
)

// BlokFunc renders the body of a blok node embedded in rich text.
type BlokFunc func(body []any) (string, error)

// RenderRichText renders a Storyblok rich text document to HTML.  Strings are
// returned as they are; nil, and anything that isn't a document with a content
// list, renders as "".  So does a document that fails to render: a bad field
// must not take the whole page down.
func RenderRichText(doc any, blok BlokFunc) string {
	out, err := renderRichText(doc, blok)
	if err != nil {
		return ""
	}
	return out
}

func renderRichText(doc any, blok BlokFunc) (out string, err error) {
	switch d := doc.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(d, &decoded); err != nil {
			return "", errors.Wrap(err, "cannot decode rich text")
		}
		return renderRichText(decoded, blok)
	}

	node, ok := doc.(map[string]any)
	if !ok {
		return "", nil
	}
	if _, ok := node["content"].([]any); !ok {
		return "", nil
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = "", errors.Errorf("rich text renderer panicked: %v", r)
		}
	}()

	rr := richTextRenderer{blok: blok}
	if err := rr.node(node); err != nil {
		return "", err
	}
	return rr.out.String(), nil
}

type richTextRenderer struct {
	out  strings.Builder
	blok BlokFunc
}

func (rr *richTextRenderer) children(node map[string]any) error {
	content, ok := node["content"]
	if !ok || content == nil {
		return nil
	}
	list, ok := content.([]any)
	if !ok {
		return errors.Errorf("content of %q node is not a list", node["type"])
	}
	for _, child := range list {
		c, ok := child.(map[string]any)
		if !ok {
			return errors.Errorf("unexpected node %v", child)
		}
		if err := rr.node(c); err != nil {
			return err
		}
	}
	return nil
}

// wrap renders the children of node between an opening and closing tag.
func (rr *richTextRenderer) wrap(node map[string]any, tag string, attrs ...string) error {
	rr.out.WriteString(openTag(tag, attrs...))
	if err := rr.children(node); err != nil {
		return err
	}
	rr.out.WriteString("</" + tag + ">")
	return nil
}

func (rr *richTextRenderer) node(node map[string]any) error {
	attrs, _ := node["attrs"].(map[string]any)

	switch node["type"] {
	case "doc":
		return rr.children(node)
	case "paragraph":
		return rr.wrap(node, "p", alignment(attrs)...)
	case "heading":
		level := intAttr(attrs, "level")
		if level < 1 || level > 6 {
			return errors.Errorf("invalid heading level %d", level)
		}
		return rr.wrap(node, fmt.Sprintf("h%d", level), alignment(attrs)...)
	case "bullet_list":
		return rr.wrap(node, "ul")
	case "ordered_list":
		if order := intAttr(attrs, "order"); order > 1 {
			return rr.wrap(node, "ol", "start", fmt.Sprint(order))
		}
		return rr.wrap(node, "ol")
	case "list_item":
		return rr.wrap(node, "li")
	case "blockquote":
		return rr.wrap(node, "blockquote")
	case "code_block":
		rr.out.WriteString("<pre>")
		if err := rr.wrap(node, "code", "class", stringAttr(attrs, "class")); err != nil {
			return err
		}
		rr.out.WriteString("</pre>")
		return nil
	case "horizontal_rule":
		rr.out.WriteString("<hr />")
		return nil
	case "hard_break":
		rr.out.WriteString("<br />")
		return nil
	case "image":
		rr.out.WriteString(selfClosingTag("img",
			"src", stringAttr(attrs, "src"),
			"alt", stringAttr(attrs, "alt"),
			"title", stringAttr(attrs, "title"),
		))
		return nil
	case "emoji":
		rr.emoji(attrs)
		return nil
	case "table":
		rr.out.WriteString("<table><tbody>")
		if err := rr.children(node); err != nil {
			return err
		}
		rr.out.WriteString("</tbody></table>")
		return nil
	case "tableRow":
		return rr.wrap(node, "tr")
	case "tableCell":
		return rr.wrap(node, "td", spans(attrs)...)
	case "tableHeader":
		return rr.wrap(node, "th", spans(attrs)...)
	case "blok":
		return rr.blokNode(attrs)
	case "text":
		return rr.text(node)
	default:
		// unknown nodes render as nothing, like the JS resolver does
		return nil
	}
}

func (rr *richTextRenderer) emoji(attrs map[string]any) {
	name := stringAttr(attrs, "name")
	emoji := stringAttr(attrs, "emoji")
	rr.out.WriteString(openTag("span", "data-type", "emoji", "data-name", name, "data-emoji", emoji))
	if emoji != "" {
		rr.out.WriteString(html.EscapeString(emoji))
	} else if fallback := stringAttr(attrs, "fallbackImage"); fallback != "" {
		rr.out.WriteString(selfClosingTag("img", "src", fallback, "alt", name, "draggable", "false", "loading", "lazy", "align", "absmiddle"))
	}
	rr.out.WriteString("</span>")
}

func (rr *richTextRenderer) blokNode(attrs map[string]any) error {
	if rr.blok == nil {
		return nil
	}
	body, _ := attrs["body"].([]any)
	if body == nil {
		body = []any{}
	}
	out, err := rr.blok(body)
	if err != nil {
		return errors.Wrap(err, "cannot render blok")
	}
	rr.out.WriteString(out)
	return nil
}

func (rr *richTextRenderer) text(node map[string]any) error {
	text, _ := node["text"].(string)
	out := html.EscapeString(text)

	marks, _ := node["marks"].([]any)
	for _, m := range marks {
		mark, ok := m.(map[string]any)
		if !ok {
			return errors.Errorf("unexpected mark %v", m)
		}
		out = renderMark(mark, out)
	}

	rr.out.WriteString(out)
	return nil
}

// renderMark wraps already rendered text in the tag for mark.  Marks are
// applied in order, so the first one ends up innermost.
func renderMark(mark map[string]any, inner string) string {
	attrs, _ := mark["attrs"].(map[string]any)

	wrapIn := func(tag string, tagAttrs ...string) string {
		return openTag(tag, tagAttrs...) + inner + "</" + tag + ">"
	}

	switch mark["type"] {
	case "bold":
		return wrapIn("strong")
	case "italic":
		return wrapIn("em")
	case "strike":
		return wrapIn("s")
	case "underline":
		return wrapIn("u")
	case "code":
		return wrapIn("code")
	case "superscript":
		return wrapIn("sup")
	case "subscript":
		return wrapIn("sub")
	case "link":
		return wrapIn("a", "href", linkHref(attrs), "target", stringAttr(attrs, "target"))
	case "anchor":
		return wrapIn("span", "id", stringAttr(attrs, "id"))
	case "styled":
		return wrapIn("span", "class", stringAttr(attrs, "class"))
	case "highlight":
		if color := stringAttr(attrs, "color"); color != "" {
			return wrapIn("mark", "style", "background-color: "+color+";")
		}
		return wrapIn("mark")
	case "textStyle":
		if color := stringAttr(attrs, "color"); color != "" {
			return wrapIn("span", "style", "color: "+color+";")
		}
		return inner
	default:
		return inner
	}
}

func linkHref(attrs map[string]any) string {
	href := stringAttr(attrs, "href")
	switch stringAttr(attrs, "linktype") {
	case "email":
		if !strings.HasPrefix(href, "mailto:") {
			href = "mailto:" + href
		}
	case "story":
		if anchor := stringAttr(attrs, "anchor"); anchor != "" {
			href += "#" + anchor
		}
	}
	return href
}

func alignment(attrs map[string]any) []string {
	if align := stringAttr(attrs, "textAlign"); align != "" {
		return []string{"style", "text-align: " + align + ";"}
	}
	return nil
}

func spans(attrs map[string]any) []string {
	var out []string
	if n := intAttr(attrs, "colspan"); n > 1 {
		out = append(out, "colspan", fmt.Sprint(n))
	}
	if n := intAttr(attrs, "rowspan"); n > 1 {
		out = append(out, "rowspan", fmt.Sprint(n))
	}
	return out
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func intAttr(attrs map[string]any, key string) int {
	switch n := attrs[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

// openTag builds "<tag k="v">" from key/value pairs, skipping empty values.
func openTag(tag string, attrs ...string) string {
	var b strings.Builder
	b.WriteString("<" + tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		b.WriteString(" " + attrs[i] + `="` + html.EscapeString(attrs[i+1]) + `"`)
	}
	b.WriteString(">")
	return b.String()
}

func selfClosingTag(tag string, attrs ...string) string {
	return strings.TrimSuffix(openTag(tag, attrs...), ">") + " />"
}
