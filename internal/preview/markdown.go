package preview

import (
	"bytes"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

var markdownRenderer = goldmark.New(goldmark.WithExtensions(meta.Meta))

// renderMarkdown converts a project's .md file to HTML at serve time, the
// way a project's README renders in the preview pane. Front matter parsed
// by goldmark-meta is discarded here; a future admin surface can expose it
// via parser.Context if a consumer needs it.
func renderMarkdown(src []byte) ([]byte, error) {
	ctx := parser.NewContext()
	var buf bytes.Buffer
	if err := markdownRenderer.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
