package plugin

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/pkg/errors"
)

// HTML exposes block and rich text rendering to html/template.  Block
// templates are looked up in the template set created by New:
//
//	h := plugin.NewHTML(plugin.Config{Extension: ".html"})
//	tmpl := template.Must(h.New("site").ParseGlob("templates/**/*.html"))
//	tmpl.ExecuteTemplate(w, "page.html", story)
type HTML struct {
	cfg  Config
	tmpl *htmltemplate.Template
}

func NewHTML(cfg Config) *HTML {
	return &HTML{cfg: cfg}
}

// New creates the template set the adapter renders blocks from, with the sb_*
// functions already registered.
func (h *HTML) New(name string) *htmltemplate.Template {
	h.tmpl = htmltemplate.New(name).Funcs(h.Funcs())
	return h.tmpl
}

func (h *HTML) RenderBlock(name string, data map[string]any) (string, error) {
	if h.tmpl == nil {
		return "", errors.New("no templates to render blocks with")
	}
	var out strings.Builder
	if err := h.tmpl.ExecuteTemplate(&out, name, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (h *HTML) Funcs() htmltemplate.FuncMap {
	f := funcs{cfg: h.cfg, r: h}
	return htmltemplate.FuncMap{
		"sb_blocks": func(blocks any) (htmltemplate.HTML, error) {
			out, err := RenderBlocks(blocks, h, h.cfg)
			return htmltemplate.HTML(out), err
		},
		"sb_richtext": func(doc any) htmltemplate.HTML {
			return htmltemplate.HTML(f.richText(doc))
		},
		"sb_markdown": func(text string) htmltemplate.HTML {
			return htmltemplate.HTML(f.markdown(text))
		},
		"sb_richtext_markdown": f.richTextMarkdown,
	}
}

// Text is the text/template flavour of HTML.  Nothing is escaped.
type Text struct {
	cfg  Config
	tmpl *texttemplate.Template
}

func NewText(cfg Config) *Text {
	return &Text{cfg: cfg}
}

func (t *Text) New(name string) *texttemplate.Template {
	t.tmpl = texttemplate.New(name).Funcs(t.Funcs())
	return t.tmpl
}

func (t *Text) RenderBlock(name string, data map[string]any) (string, error) {
	if t.tmpl == nil {
		return "", errors.New("no templates to render blocks with")
	}
	var out strings.Builder
	if err := t.tmpl.ExecuteTemplate(&out, name, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (t *Text) Funcs() texttemplate.FuncMap {
	f := funcs{cfg: t.cfg, r: t}
	return texttemplate.FuncMap{
		"sb_blocks": func(blocks any) (string, error) {
			return RenderBlocks(blocks, t, t.cfg)
		},
		"sb_richtext":          f.richText,
		"sb_markdown":          f.markdown,
		"sb_richtext_markdown": f.richTextMarkdown,
	}
}

// funcs holds what both adapters have in common.
type funcs struct {
	cfg Config
	r   BlockRenderer
}

func (f funcs) richText(doc any) string {
	out, err := renderRichText(doc, func(body []any) (string, error) {
		return RenderBlocks(body, f.r, f.cfg)
	})
	if err != nil {
		f.cfg.logf("%v\n", errors.Wrap(err, "sb_richtext"))
		return ""
	}
	return f.cfg.sanitize(out)
}

func (f funcs) markdown(text string) string {
	return f.cfg.sanitize(MarkdownToHTML(text))
}

func (f funcs) richTextMarkdown(doc any) string {
	html := f.richText(doc)
	if html == "" {
		return ""
	}
	markdown, err := HTMLToMarkdown(html)
	if err != nil {
		f.cfg.logf("%v\n", errors.Wrap(err, "sb_richtext_markdown"))
		return ""
	}
	return markdown
}
