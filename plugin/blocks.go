package plugin

import (
	"log"
	"strings"

	"github.com/pkg/errors"
)

const defaultBlocksFolder = "blocks/"

// Config is shared by both template adapters.
type Config struct {
	// Folder (template name prefix) holding one template per component.
	// Defaults to "blocks/"; a leading slash is dropped.
	BlocksFolder string

	// Appended to every block template name, e.g. ".html".
	Extension string

	// Run rich text and markdown output through bluemonday's UGC policy.
	Sanitize bool

	// Where swallowed rendering errors are reported.  Nil means they're
	// dropped silently.
	Logger *log.Logger
}

func (c Config) blocksFolder() string {
	if c.BlocksFolder == "" {
		return defaultBlocksFolder
	}
	return strings.TrimPrefix(c.BlocksFolder, "/")
}

// TemplateName is the name of the template that renders component.
func (c Config) TemplateName(component string) string {
	return c.blocksFolder() + Slugify(component) + c.Extension
}

func (c Config) logf(format string, v ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, v...)
	}
}

// BlockRenderer executes the named template with data.  Both template
// adapters implement it.
type BlockRenderer interface {
	RenderBlock(name string, data map[string]any) (string, error)
}

// RenderBlocks renders a single block or a list of blocks, each with the
// template named after its component.  The template sees the block as
// .block, with its component already slugified.  Anything that isn't a block,
// or has no component, renders as "".
func RenderBlocks(blocks any, r BlockRenderer, cfg Config) (string, error) {
	var list []map[string]any
	switch b := blocks.(type) {
	case map[string]any:
		list = []map[string]any{b}
	case []map[string]any:
		list = b
	case []any:
		for _, item := range b {
			if block, ok := item.(map[string]any); ok {
				list = append(list, block)
			}
		}
	default:
		return "", nil
	}

	var out strings.Builder
	for _, block := range list {
		component, _ := block["component"].(string)
		if component == "" {
			continue
		}

		// the caller's data stays untouched
		copied := make(map[string]any, len(block))
		for k, v := range block {
			copied[k] = v
		}
		copied["component"] = Slugify(component)

		name := cfg.TemplateName(component)
		html, err := r.RenderBlock(name, map[string]any{"block": copied})
		if err != nil {
			return "", errors.Wrapf(err, "cannot render block %q", name)
		}
		out.WriteString(html)
	}
	return out.String(), nil
}
