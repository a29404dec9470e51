package surgeon

import (
	"fmt"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var mdConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
})

// Markdown renders the current tree as CommonMark, for a readable preview
// of what the changes did to the content. Audit attributes do not show.
func (s *Session) Markdown() (string, error) {
	markup, err := s.doc.Render()
	if err != nil {
		return "", err
	}
	md, err := mdConverter().ConvertString(markup)
	if err != nil {
		return "", fmt.Errorf("surgeon: markdown: %w", err)
	}
	return md, nil
}
