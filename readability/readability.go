// Package readability fetches a web page and extracts its primary readable
// text, stripped of navigation, chrome, and ads.
//
// Extraction runs fully in-process: the page is fetched with a bounded HTTP
// client, the main content subtree is located by semantic landmarks or text
// density, sanitised, and converted to markdown. A page whose best candidate
// falls below the confidence threshold yields ErrNotReadable — callers treat
// that as "nothing to do", not a hard failure.
package readability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ErrNotReadable is returned when no confident content extraction is
// possible for a page.
var ErrNotReadable = errors.New("readability: no readable content found")

// Result is a successful extraction.
type Result struct {
	Title string
	// Text is the extracted main content as markdown.
	Text string
}

// Extractor fetches pages and extracts readable content.
type Extractor struct {
	config    Config
	client    *http.Client
	sanitizer *bluemonday.Policy
	md        *converter.Converter
	logger    *slog.Logger
}

// New creates an Extractor.
func New(cfg Config, logger *slog.Logger) *Extractor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		config:    cfg,
		client:    newHTTPClient(cfg.Timeout),
		sanitizer: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Extract fetches pageURL and returns its readable content as markdown.
// The URL must already be well-formed (see ValidateURL); low-confidence
// pages return ErrNotReadable.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*Result, error) {
	if err := ValidateURL(pageURL); err != nil {
		return nil, err
	}

	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("readability: parse html: %w", err)
	}

	title := findTitle(doc)

	best := findMainContent(doc, e.config.MinTextLen)
	if best == nil {
		return nil, ErrNotReadable
	}

	clean := e.sanitizer.Sanitize(renderNode(best))
	markdown, err := e.md.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return nil, fmt.Errorf("readability: convert markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	if len(markdown) < e.config.MinTextLen {
		return nil, ErrNotReadable
	}

	e.logger.Debug("readability: extracted",
		"url", pageURL, "title", title, "content_length", len(markdown))

	return &Result{Title: title, Text: markdown}, nil
}
