package plugin

import (
	"net/url"

	md "github.com/JohannesKaufmann/html-to-markdown"
	mdplugin "github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	bm "github.com/microcosm-cc/bluemonday"
	bf "github.com/russross/blackfriday"
)

// MarkdownToHTML renders the value of a Storyblok markdown field.
func MarkdownToHTML(text string) string {
	return string(bf.MarkdownCommon([]byte(text)))
}

// HTMLToMarkdown converts rendered rich text back into GitHub flavoured
// Markdown, for sites whose templates want Markdown rather than HTML.
func HTMLToMarkdown(html string) (string, error) {
	opt := &md.Options{
		// Storyblok hands out asset links like //a.storyblok.com/f/...; left
		// alone they'd turn into relative links.
		GetAbsoluteURL: func(selec *goquery.Selection, rawURL string, domain string) string {
			u, err := url.Parse(rawURL)
			if err != nil {
				return rawURL
			}
			if u.Scheme == "" && u.Host != "" {
				u.Scheme = "https"
				return u.String()
			}
			return rawURL
		},
	}

	converter := md.NewConverter("", true, opt)
	converter.Use(mdplugin.GitHubFlavored())

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", errors.Wrap(err, "cannot convert rich text to markdown")
	}
	return markdown, nil
}

// sanitize applies bluemonday's UGC policy if the config asks for it.
func (c Config) sanitize(html string) string {
	if !c.Sanitize {
		return html
	}
	return bm.UGCPolicy().Sanitize(html)
}
