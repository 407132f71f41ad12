// Package metadata tags libvirt domain definitions with the crucible resource
// they were rendered from. The tag lives in the domain's <metadata> element,
// so it persists with the domain itself.
package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/api/v1alpha1"
)

const (
	// Namespace is the XML namespace of the crucible element.
	Namespace = "http://" + v1alpha1.GroupName + "/" + v1alpha1.Version

	// Prefix is the namespace prefix libvirt keeps for the element.
	Prefix = "crucible"
)

// Record identifies the resource a domain was defined from.
type Record struct {
	Kind string `xml:"kind,attr"`
	Name string `xml:"name,attr"`
}

// String renders r as a namespaced element.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s:resource xmlns:%s="%s" kind="`, Prefix, Prefix, Namespace)
	_ = xml.EscapeText(&b, []byte(r.Kind))
	b.WriteString(`" name="`)
	_ = xml.EscapeText(&b, []byte(r.Name))
	b.WriteString(`"/>`)
	return b.String()
}

// Set replaces the domain's metadata with r.
func Set(d *libvirtxml.Domain, r Record) {
	d.Metadata = &libvirtxml.DomainMetadata{XML: r.String()}
}

// Get returns the record of a domain. ok is false when the domain carries
// none, such as a domain defined by another tool.
func Get(d *libvirtxml.Domain) (r Record, ok bool, err error) {
	if d.Metadata == nil || d.Metadata.XML == "" {
		return Record{}, false, nil
	}

	dec := xml.NewDecoder(strings.NewReader(d.Metadata.XML))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		if err != nil {
			return Record{}, false, fmt.Errorf("failed to parse domain metadata: %w", err)
		}

		start, isStart := tok.(xml.StartElement)
		if !isStart || start.Name.Space != Namespace || start.Name.Local != "resource" {
			continue
		}
		if err := dec.DecodeElement(&r, &start); err != nil {
			return Record{}, false, fmt.Errorf("failed to parse domain metadata: %w", err)
		}
		return r, true, nil
	}
}
