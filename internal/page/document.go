package page

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// Element is a single node of a parsed HTML document.
type Element interface {
	Text() string
	Attr(name string) (string, bool)
}

// Document is the query surface the extractors need from a parsed page.
type Document interface {
	// Find returns the first element with the given tag name.
	Find(tag string) (Element, bool)
	// FindAll returns, in document order, the elements with the given tag name
	// for which match returns true. A nil match keeps every element.
	FindAll(tag string, match func(Element) bool) []Element
}

type goqueryDocument struct {
	doc *goquery.Document
}

type goqueryElement struct {
	sel *goquery.Selection
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	return &goqueryDocument{doc: doc}, nil
}

func (d *goqueryDocument) Find(tag string) (Element, bool) {
	sel := d.doc.Find(tag).First()
	if sel.Length() == 0 {
		return nil, false
	}

	return &goqueryElement{sel: sel}, true
}

func (d *goqueryDocument) FindAll(tag string, match func(Element) bool) []Element {
	var elements []Element

	d.doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		el := &goqueryElement{sel: s}
		if match == nil || match(el) {
			elements = append(elements, el)
		}
	})

	return elements
}

func (e *goqueryElement) Text() string {
	return e.sel.Text()
}

func (e *goqueryElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}
