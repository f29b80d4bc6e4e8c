package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/onioncrawl/internal/model"
)

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses html. Malformed markup is repaired by the HTML5
// parser rather than rejected.
func ParseDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// Title returns the trimmed text of the first <title> element, or "".
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Meta maps the lower-cased name attribute of every <meta> element that has
// both a name and a content attribute to its content. Later duplicates win.
func (d *Document) Meta() map[string]string {
	meta := make(map[string]string)
	d.doc.Find("meta[name][content]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		meta[strings.ToLower(name)] = content
	})
	return meta
}

// Metadata returns the title and meta tags of the document.
func (d *Document) Metadata() model.Metadata {
	return model.Metadata{Title: d.Title(), Meta: d.Meta()}
}

// Text returns the human-visible text of the document, excluding script,
// style and noscript contents. The document itself is not modified.
func (d *Document) Text() string {
	clone := d.doc.Selection.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return clone.Text()
}

// ExtractMetadata parses html and returns its metadata.
func ExtractMetadata(html string) (model.Metadata, error) {
	doc, err := ParseDocument(html)
	if err != nil {
		return model.NewMetadata(), err
	}
	return doc.Metadata(), nil
}
