// Package importer turns external material into source text for
// script generation. Web articles are fetched, reduced to their main
// content, and converted to markdown; local text files are read as-is.
package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/mytalk-labs/mytalk/internal/frontmatter"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "Mozilla/5.0 (compatible; MyTalk/1.0)"

	// maxBodyBytes bounds the downloaded page size.
	maxBodyBytes = 4 << 20

	// maxMaterialRunes caps the text handed to the language model so
	// a long article does not blow the prompt budget.
	maxMaterialRunes = 12000
)

var (
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
	reMarkdownHeading   = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
)

// skippedTags carry navigation and styling, not article text. They
// are pruned before conversion.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"form":     true,
	"iframe":   true,
	"noscript": true,
	"svg":      true,
}

// Article is extracted source material with a display title.
type Article struct {
	Title    string
	Markdown string
	// Source is the URL or file path the material came from.
	Source string
	// Category is set when the material header pins one.
	Category core.Category
}

// FetchArticle downloads a web page and extracts its main content as
// markdown. The content node is the first <article>, falling back to
// <main> and then <body>.
func FetchArticle(ctx context.Context, rawURL string) (*Article, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid article url: %q", rawURL)
	}

	page, err := fetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	title := pageTitle(doc)
	content := mainContent(doc)
	stripChrome(content)

	md, err := htmltomarkdown.ConvertString(renderNode(content))
	if err != nil {
		return nil, fmt.Errorf("failed to convert article to markdown: %w", err)
	}
	md = tidyMarkdown(md)
	if md == "" {
		return nil, fmt.Errorf("no article text found at %s", rawURL)
	}

	if title == "" {
		title = u.Host
	}
	return &Article{
		Title:    title,
		Markdown: truncateRunes(md, maxMaterialRunes),
		Source:   rawURL,
	}, nil
}

// ReadFile loads a local text or markdown file. An optional YAML
// header pins the title, category, and original source; otherwise the
// title is the first markdown heading, or the file name when there is
// none.
func ReadFile(path string) (*Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("source file is empty: %s", path)
	}

	header, err := frontmatter.Extract(text)
	if err != nil {
		return nil, fmt.Errorf("bad material header in %s: %w", path, err)
	}
	text = header.Body
	if text == "" {
		return nil, fmt.Errorf("source file is empty: %s", path)
	}

	title := header.Material.Title
	if title == "" {
		first, _, _ := strings.Cut(text, "\n")
		if m := reMarkdownHeading.FindStringSubmatch(strings.TrimSpace(first)); m != nil {
			title = strings.TrimSpace(m[1])
		}
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	source := path
	if header.Material.Source != "" {
		source = header.Material.Source
	}

	return &Article{
		Title:    title,
		Markdown: truncateRunes(text, maxMaterialRunes),
		Source:   source,
		Category: core.Category(header.Material.Category),
	}, nil
}

// fetchPage fetches HTML content from a URL.
func fetchPage(ctx context.Context, pageURL string) (string, error) {
	client := &http.Client{Timeout: fetchTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status fetching %s: %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// pageTitle prefers the first <h1>, falling back to <title>.
func pageTitle(doc *html.Node) string {
	if h1 := findElement(doc, "h1"); h1 != nil {
		if t := getTextContent(h1); t != "" {
			return t
		}
	}
	if tn := findElement(doc, "title"); tn != nil {
		return getTextContent(tn)
	}
	return ""
}

// mainContent picks the node most likely to hold the article body.
func mainContent(doc *html.Node) *html.Node {
	for _, tag := range []string{"article", "main", "body"} {
		if n := findElement(doc, tag); n != nil {
			return n
		}
	}
	return doc
}

// stripChrome removes non-content subtrees in place.
func stripChrome(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && skippedTags[c.Data] {
			n.RemoveChild(c)
			continue
		}
		stripChrome(c)
	}
}

// tidyMarkdown collapses runs of blank lines and trims trailing
// whitespace from each line.
func tidyMarkdown(content string) string {
	content = reExcessiveNewlines.ReplaceAllString(content, "\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// getTextContent returns the text content of a node and its children.
func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			getText(c)
		}
	}
	getText(n)
	return strings.TrimSpace(sb.String())
}

// renderNode renders an HTML node back to string.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}
