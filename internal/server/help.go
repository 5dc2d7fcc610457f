// ABOUTME: Renders the /help usage page from embedded markdown
// ABOUTME: Uses goldmark with GFM tables, prefixed with the configured title and description

package server

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/agent-server/internal/config"
)

//go:embed static/help.md
var helpMarkdown []byte

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderHelp converts the usage page to a standalone HTML document.
func renderHelp(cfg config.ServerConfig) ([]byte, error) {
	var source bytes.Buffer
	fmt.Fprintf(&source, "# %s\n\n%s\n\n", cfg.Title, cfg.Description)
	source.Write(helpMarkdown)

	var body bytes.Buffer
	if err := markdown.Convert(source.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n", html.EscapeString(cfg.Title))
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}
