package scraper

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/logger"
)

var authorPattern = regexp.MustCompile(`/@([^/?#]+)`)

// Extractor fetches a page and reads its head metadata.
type Extractor struct {
	fetcher Fetcher
}

// NewExtractor creates an extractor over fetcher.
func NewExtractor(fetcher Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract returns the page metadata of pageURL. Fetch failures are
// reported as ErrUpstream.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*domain.PageMetadata, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url must be an absolute http(s) url", domain.ErrValidation)
	}

	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	final := page.FinalURL
	if final == "" {
		final = pageURL
	}

	meta, err := ParseMetadata(strings.NewReader(page.HTML), final)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrUpstream, final, err)
	}
	logger.CtxDebug(ctx, "Extracted metadata from %s (author=%q)", final, meta.Author)
	return meta, nil
}

// ParseMetadata reads title, meta tags and the canonical link of an HTML
// document. The author comes from an /@handle path segment of pageURL,
// falling back to <meta name="author">.
func ParseMetadata(r io.Reader, pageURL string) (*domain.PageMetadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	meta := &domain.PageMetadata{PageURL: pageURL}
	var metaAuthor string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if meta.Title == "" {
					meta.Title = strings.TrimSpace(textContent(n))
				}
			case atom.Meta:
				content := strings.TrimSpace(attr(n, "content"))
				switch {
				case strings.EqualFold(attr(n, "name"), "description"):
					setOnce(&meta.Description, content)
				case strings.EqualFold(attr(n, "name"), "keywords"):
					setOnce(&meta.Keywords, content)
				case strings.EqualFold(attr(n, "name"), "author"):
					setOnce(&metaAuthor, content)
				case strings.EqualFold(attr(n, "property"), "og:title"):
					setOnce(&meta.OGTitle, content)
				case strings.EqualFold(attr(n, "property"), "og:description"):
					setOnce(&meta.OGDescription, content)
				}
			case atom.Link:
				if hasToken(attr(n, "rel"), "canonical") {
					setOnce(&meta.Canonical, strings.TrimSpace(attr(n, "href")))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if m := authorPattern.FindStringSubmatch(pageURL); m != nil {
		meta.Author = m[1]
	} else {
		meta.Author = metaAuthor
	}
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
