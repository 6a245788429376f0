package distribution

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// element is the subset of a DOM node the parser cares about
type element struct {
	attrs map[string]string
	text  string // first child text, if the first child is text
}

func (e element) attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

type pkgInfo struct {
	element
	payload *element // first nested payload
}

// Elements whose text names the restart behaviour of a package
var restartTags = []string{"restartAction", "restart-action"}

// document holds every interesting element in document order, at any depth
type document struct {
	pkgInfos []pkgInfo
	pkgRefs  []element
	products []element
	texts    map[string]string // first child text of the first restartTags hit
}

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseDocument(data)
}

func parseDocument(data []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	doc := &document{texts: make(map[string]string)}
	var (
		open    []int        // indices of the pkg-info elements we are inside
		collect func(string) // receives the first child text of the last start element
		sawRoot bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			collect = nil
			switch name := t.Name.Local; name {
			case "pkg-info":
				doc.pkgInfos = append(doc.pkgInfos, pkgInfo{element: newElement(t)})
				open = append(open, len(doc.pkgInfos)-1)
			case "payload":
				if len(open) > 0 {
					pi := &doc.pkgInfos[open[len(open)-1]]
					if pi.payload == nil {
						p := newElement(t)
						pi.payload = &p
					}
				}
			case "pkg-ref":
				doc.pkgRefs = append(doc.pkgRefs, newElement(t))
				i := len(doc.pkgRefs) - 1
				collect = func(s string) { doc.pkgRefs[i].text += s }
			case "product":
				doc.products = append(doc.products, newElement(t))
			case "restartAction", "restart-action":
				if _, seen := doc.texts[name]; !seen {
					doc.texts[name] = ""
					collect = func(s string) { doc.texts[name] += s }
				}
			}
		case xml.CharData:
			if collect != nil {
				collect(string(t))
			}
		case xml.EndElement:
			collect = nil
			if t.Name.Local == "pkg-info" && len(open) > 0 {
				open = open[:len(open)-1]
			}
		default:
			collect = nil
		}
	}

	if !sawRoot {
		return nil, errors.New("no root element")
	}
	return doc, nil
}

func newElement(t xml.StartElement) element {
	e := element{attrs: make(map[string]string, len(t.Attr))}
	for _, a := range t.Attr {
		e.attrs[a.Name.Local] = a.Value
	}
	return e
}

// Installer manifests are occasionally declared in a legacy encoding
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.ToLower(label))
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
