package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Mallon94/mobile-air/pkg/codegen"
	"github.com/beevik/etree"
)

// IndentSpaces is the indentation the document is written back with
const IndentSpaces = 4

// Document is an in-memory AndroidManifest.xml. It is read once, patched by
// every plugin merge and flushed once.
type Document struct {
	doc *etree.Document
}

// Parse reads a manifest document. The root element must be <manifest>.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	if root.Tag != "manifest" {
		return nil, fmt.Errorf("root element is <%s>, expected <manifest>", root.FullTag())
	}

	return &Document{doc: doc}, nil
}

// ParseFile reads and parses the manifest at path. Parse failures wrap
// codegen.ErrManifestParse.
func ParseFile(path string) (*Document, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, nil, codegen.NewManifestParseError(path, err)
	}
	return doc, data, nil
}

// Bytes renders the document. Output is normalized to IndentSpaces
// indentation, so rendering an unchanged document twice is byte-identical.
func (d *Document) Bytes() ([]byte, error) {
	d.doc.Indent(IndentSpaces)

	out, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render manifest: %w", err)
	}

	out = bytes.TrimRight(out, " \t\r\n")
	return append(out, '\n'), nil
}

// Permissions returns the top-level uses-permission names in document order
func (d *Document) Permissions() []string {
	var perms []string
	for _, el := range d.doc.Root().SelectElements("uses-permission") {
		perms = append(perms, el.SelectAttrValue(attrName, ""))
	}
	return perms
}

// ServiceNames returns the names of the services under <application>
func (d *Document) ServiceNames() []string {
	app := d.application(false)
	if app == nil {
		return nil
	}

	var names []string
	for _, el := range app.SelectElements("service") {
		names = append(names, el.SelectAttrValue(attrName, ""))
	}
	return names
}

// Service returns the service element with the given name, or nil
func (d *Document) Service(name string) *etree.Element {
	app := d.application(false)
	if app == nil {
		return nil
	}

	for _, el := range app.SelectElements("service") {
		if el.SelectAttrValue(attrName, "") == name {
			return el
		}
	}
	return nil
}

func (d *Document) application(create bool) *etree.Element {
	root := d.doc.Root()
	app := root.SelectElement("application")
	if app == nil && create {
		app = root.CreateElement("application")
	}
	return app
}
