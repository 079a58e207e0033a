package plugin

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return doc
}

func doc(content string) string {
	return `{"type":"doc","content":[` + content + `]}`
}

func TestRenderRichText(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "paragraph with marks",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"Hello "},{"type":"text","text":"world","marks":[{"type":"bold"},{"type":"italic"}]}]}`),
			want: `<p>Hello <em><strong>world</strong></em></p>`,
		},
		{
			name: "text is escaped",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"a < b & c"}]}`),
			want: `<p>a &lt; b &amp; c</p>`,
		},
		{
			name: "heading",
			doc:  doc(`{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Title"}]}`),
			want: `<h2>Title</h2>`,
		},
		{
			name: "aligned paragraph",
			doc:  doc(`{"type":"paragraph","attrs":{"textAlign":"center"},"content":[{"type":"text","text":"x"}]}`),
			want: `<p style="text-align: center;">x</p>`,
		},
		{
			name: "story link with anchor",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"here","marks":[{"type":"link","attrs":{"href":"/about","linktype":"story","anchor":"team","target":"_blank"}}]}]}`),
			want: `<p><a href="/about#team" target="_blank">here</a></p>`,
		},
		{
			name: "email link",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"mail","marks":[{"type":"link","attrs":{"href":"a@b.c","linktype":"email"}}]}]}`),
			want: `<p><a href="mailto:a@b.c">mail</a></p>`,
		},
		{
			name: "lists",
			doc:  doc(`{"type":"bullet_list","content":[{"type":"list_item","content":[{"type":"paragraph","content":[{"type":"text","text":"a"}]}]}]},{"type":"ordered_list","attrs":{"order":3},"content":[{"type":"list_item","content":[{"type":"paragraph","content":[{"type":"text","text":"b"}]}]}]}`),
			want: `<ul><li><p>a</p></li></ul><ol start="3"><li><p>b</p></li></ol>`,
		},
		{
			name: "breaks and rules",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"a"},{"type":"hard_break"},{"type":"text","text":"b"}]},{"type":"horizontal_rule"}`),
			want: `<p>a<br />b</p><hr />`,
		},
		{
			name: "code block",
			doc:  doc(`{"type":"code_block","attrs":{"class":"language-go"},"content":[{"type":"text","text":"x := 1"}]}`),
			want: `<pre><code class="language-go">x := 1</code></pre>`,
		},
		{
			name: "image",
			doc:  doc(`{"type":"image","attrs":{"src":"https://a.storyblok.com/f/1/x.png","alt":"X"}}`),
			want: `<img src="https://a.storyblok.com/f/1/x.png" alt="X" />`,
		},
		{
			name: "highlight and styles",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"hi","marks":[{"type":"highlight","attrs":{"color":"#ff0"}},{"type":"styled","attrs":{"class":"big"}}]}]}`),
			want: `<p><span class="big"><mark style="background-color: #ff0;">hi</mark></span></p>`,
		},
		{
			name: "table",
			doc:  doc(`{"type":"table","content":[{"type":"tableRow","content":[{"type":"tableHeader","attrs":{"colspan":2},"content":[{"type":"text","text":"h"}]}]}]}`),
			want: `<table><tbody><tr><th colspan="2">h</th></tr></tbody></table>`,
		},
		{
			name: "unknown nodes render as nothing",
			doc:  doc(`{"type":"mystery","content":[{"type":"text","text":"?"}]},{"type":"paragraph","content":[{"type":"text","text":"ok"}]}`),
			want: `<p>ok</p>`,
		},
		{
			name: "invalid heading drops everything",
			doc:  doc(`{"type":"paragraph","content":[{"type":"text","text":"ok"}]},{"type":"heading","attrs":{"level":9}}`),
			want: ``,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderRichText(mustDoc(t, tc.doc), nil); got != tc.want {
				t.Errorf("got  %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestRenderRichTextInputs(t *testing.T) {
	if got := RenderRichText("<p>already html</p>", nil); got != "<p>already html</p>" {
		t.Errorf("string input: got %q", got)
	}
	if got := RenderRichText(nil, nil); got != "" {
		t.Errorf("nil input: got %q", got)
	}
	if got := RenderRichText(map[string]any{"type": "doc"}, nil); got != "" {
		t.Errorf("document without content: got %q", got)
	}
	if got := RenderRichText(map[string]any{"content": "nope"}, nil); got != "" {
		t.Errorf("non-list content: got %q", got)
	}
	if got := RenderRichText(42, nil); got != "" {
		t.Errorf("number: got %q", got)
	}

	raw := json.RawMessage(doc(`{"type":"paragraph","content":[{"type":"text","text":"raw"}]}`))
	if got := RenderRichText(raw, nil); got != "<p>raw</p>" {
		t.Errorf("raw JSON: got %q", got)
	}
}

func TestRenderRichTextBlok(t *testing.T) {
	d := mustDoc(t, doc(`{"type":"paragraph","content":[{"type":"text","text":"before"}]},{"type":"blok","attrs":{"body":[{"component":"cta"},{"component":"teaser"}]}}`))

	var seen []any
	got := RenderRichText(d, func(body []any) (string, error) {
		seen = body
		return "<div>bloks</div>", nil
	})
	if got != "<p>before</p><div>bloks</div>" {
		t.Errorf("got %q", got)
	}
	if len(seen) != 2 {
		t.Errorf("hook saw %d blocks, want 2", len(seen))
	}

	if got := RenderRichText(d, nil); got != "<p>before</p>" {
		t.Errorf("without a hook: got %q", got)
	}
}

func TestRenderRichTextSwallowsFailures(t *testing.T) {
	d := mustDoc(t, doc(`{"type":"paragraph","content":[{"type":"text","text":"before"}]},{"type":"blok","attrs":{"body":[{"component":"cta"}]}}`))

	failing := func(body []any) (string, error) { return "", errors.New("boom") }
	if got := RenderRichText(d, failing); got != "" {
		t.Errorf("failing blok: got %q", got)
	}

	panicking := func(body []any) (string, error) { panic("boom") }
	if got := RenderRichText(d, panicking); got != "" {
		t.Errorf("panicking blok: got %q", got)
	}
}
