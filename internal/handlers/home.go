package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"chaos-ai/internal/contextutil"
)

//go:embed home.md
var homeMarkdown []byte

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>chaos-ai</title>
  <style>
    :root {
      color-scheme: dark;
    }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 760px;
      line-height: 1.6;
      background: #12081c;
      color: #f4e9ff;
    }
    pre {
      background: #1f1030;
      padding: 1rem;
      overflow-x: auto;
      border-radius: 8px;
    }
    code {
      font-family: 'SFMono-Regular', Consolas, 'Liberation Mono', Menlo, monospace;
      color: #f0abfc;
    }
  </style>
</head>
<body>
  <article>{{.}}</article>
</body>
</html>`))

// HomeHandler serves the landing page. The page is rendered once at construction.
type HomeHandler struct {
	page []byte
}

// NewHomeHandler renders the embedded landing page.
func NewHomeHandler() (*HomeHandler, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	var body bytes.Buffer
	if err := md.Convert(homeMarkdown, &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	if err := homeTemplate.Execute(&page, template.HTML(body.String())); err != nil {
		return nil, fmt.Errorf("execute home template: %w", err)
	}

	return &HomeHandler{page: page.Bytes()}, nil
}

// ServeHTTP writes the landing page.
func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(h.page); err != nil {
		contextutil.LoggerFromContext(r.Context()).WarnContext(r.Context(), "failed to write home page", "error", err)
	}
}
