// Package feed fetches RSS/Atom feeds and extracts their item titles.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	jsonfeed "github.com/mmcdole/gofeed/json"
	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/net/html/charset"

	"github.com/tesso57/trendfeed/internal/domain/trend"
)

// Namespaces consulted by the default title fallbacks.
const (
	AtomNamespace       = "http://www.w3.org/2005/Atom"
	DublinCoreNamespace = "http://purl.org/dc/elements/1.1/"
)

// canonicalPrefixes are namespaces gofeed files under a fixed prefix whatever
// prefix the document declares. Every other namespace keeps its declared prefix.
var canonicalPrefixes = map[string]string{
	DublinCoreNamespace: "dc",
}

// TitleCandidate names an element that may hold an item title. An empty
// Namespace refers to the dialect's own title element; otherwise Namespace is
// the URI of an extension namespace, matched whatever prefix the document binds it to.
type TitleCandidate struct {
	Namespace string
	Name      string
}

// DefaultTitleCandidates is the lookup order used when none is configured.
var DefaultTitleCandidates = []TitleCandidate{
	{Name: "title"},
	{Namespace: AtomNamespace, Name: "title"},
	{Namespace: DublinCoreNamespace, Name: "title"},
}

// Parser extracts titles from feed documents.
type Parser struct {
	Candidates []TitleCandidate
}

// ParseTitles extracts titles with DefaultTitleCandidates.
func ParseTitles(data []byte, limit int) ([]string, error) {
	return Parser{}.ParseTitles(data, limit)
}

// ParseTitles returns up to limit non-empty, trimmed titles in document order.
// Items without any candidate title are skipped. A document cut off mid-way
// keeps the titles read before the break. Errors wrap trend.ErrParse.
func (p Parser) ParseTitles(data []byte, limit int) ([]string, error) {
	titles := []string{}
	if limit <= 0 {
		return titles, nil
	}
	candidates := p.Candidates
	if len(candidates) == 0 {
		candidates = DefaultTitleCandidates
	}

	nodes, err := parseNodes(data)
	if err != nil {
		return nil, err
	}
	prefixes := &prefixIndex{data: data}
	for _, n := range nodes {
		if title := n.title(candidates, prefixes); title != "" {
			titles = append(titles, title)
			if len(titles) == limit {
				break
			}
		}
	}
	return titles, nil
}

// node is one RSS item, Atom entry or JSON Feed item.
type node struct {
	own        string
	extensions ext.Extensions
	// qualified holds child element text by namespace URI for nodes read by recoverNodes.
	qualified map[xml.Name]string
}

func (n node) title(candidates []TitleCandidate, prefixes *prefixIndex) string {
	for _, c := range candidates {
		if v := n.lookup(c, prefixes); v != "" {
			return v
		}
	}
	return ""
}

func (n node) lookup(c TitleCandidate, prefixes *prefixIndex) string {
	if c.Namespace == "" {
		if strings.EqualFold(c.Name, "title") {
			return strings.TrimSpace(n.own)
		}
		return ""
	}
	if v := strings.TrimSpace(n.qualified[xml.Name{Space: c.Namespace, Local: c.Name}]); v != "" {
		return v
	}
	if len(n.extensions) == 0 {
		return ""
	}
	for _, prefix := range prefixes.lookup(c.Namespace) {
		for _, e := range n.extensions[prefix][c.Name] {
			if v := strings.TrimSpace(e.Value); v != "" {
				return v
			}
		}
	}
	return ""
}

// prefixIndex maps namespace URIs to the prefixes a document binds them to.
// The document is scanned on first use only.
type prefixIndex struct {
	data     []byte
	declared map[string][]string
	scanned  bool
}

func (p *prefixIndex) lookup(namespace string) []string {
	if !p.scanned {
		p.declared = declaredPrefixes(p.data)
		p.scanned = true
	}
	var out []string
	if prefix, ok := canonicalPrefixes[namespace]; ok {
		out = append(out, prefix)
	}
	for _, prefix := range p.declared[namespace] {
		if !slices.Contains(out, prefix) {
			out = append(out, prefix)
		}
	}
	return out
}

// declaredPrefixes collects every xmlns:prefix binding in data, stopping at
// the first syntax error.
func declaredPrefixes(data []byte) map[string][]string {
	declared := map[string][]string{}
	dec := newDecoder(data)
	for {
		tok, err := dec.Token()
		if err != nil {
			return declared
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Space != "xmlns" {
				continue
			}
			uri := strings.TrimSpace(attr.Value)
			if !slices.Contains(declared[uri], attr.Name.Local) {
				declared[uri] = append(declared[uri], attr.Name.Local)
			}
		}
	}
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func parseNodes(data []byte) ([]node, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		f, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			if nodes := recoverNodes(data); len(nodes) > 0 {
				return nodes, nil
			}
			return nil, fmt.Errorf("%w: rss: %w", trend.ErrParse, err)
		}
		nodes := make([]node, 0, len(f.Items))
		for _, item := range f.Items {
			nodes = append(nodes, node{own: item.Title, extensions: item.Extensions})
		}
		return nodes, nil
	case gofeed.FeedTypeAtom:
		f, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			if nodes := recoverNodes(data); len(nodes) > 0 {
				return nodes, nil
			}
			return nil, fmt.Errorf("%w: atom: %w", trend.ErrParse, err)
		}
		nodes := make([]node, 0, len(f.Entries))
		for _, entry := range f.Entries {
			nodes = append(nodes, node{own: entry.Title, extensions: entry.Extensions})
		}
		return nodes, nil
	case gofeed.FeedTypeJSON:
		f, err := (&jsonfeed.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: json feed: %w", trend.ErrParse, err)
		}
		nodes := make([]node, 0, len(f.Items))
		for _, item := range f.Items {
			nodes = append(nodes, node{own: item.Title})
		}
		return nodes, nil
	default:
		return nil, fmt.Errorf("%w: unrecognised feed format", trend.ErrParse)
	}
}

// recoverNodes rescans an XML feed the strict parsers rejected. It keeps every
// item or entry read before the first unrecoverable error, including a final
// unterminated one whose children were already closed.
func recoverNodes(data []byte) []node {
	var (
		nodes []node
		cur   *node
		space string
		depth int
		field xml.Name
		text  strings.Builder
	)
	finish := func() {
		cur.own = cur.qualified[xml.Name{Space: space, Local: "title"}]
		nodes = append(nodes, *cur)
		cur = nil
	}

	dec := newDecoder(data)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case cur == nil && (t.Name.Local == "item" || t.Name.Local == "entry"):
				cur = &node{qualified: map[xml.Name]string{}}
				space = t.Name.Space
				depth = 0
			case cur != nil:
				depth++
				if depth == 1 {
					field = t.Name
					text.Reset()
				}
			}
		case xml.CharData:
			if cur != nil && depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if cur == nil {
				continue
			}
			if depth == 0 {
				finish()
				continue
			}
			if depth == 1 {
				if _, seen := cur.qualified[field]; !seen {
					cur.qualified[field] = text.String()
				}
			}
			depth--
		}
	}
	if cur != nil && len(cur.qualified) > 0 {
		finish()
	}
	return nodes
}

// snippet returns at most n bytes of data for log messages.
func snippet(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return strings.ToValidUTF8(string(data), "")
}
