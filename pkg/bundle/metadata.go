package bundle

import (
	"encoding/xml"
	"fmt"
)

// Metadata identifies the package a bundle carries. It is built
// once from metadata.xml and never modified afterwards.
type Metadata struct {
	Name         string
	Summary      string
	Description  string
	Version      string
	Architecture string
	License      string
	Packager     string
}

// ParseError reports a malformed or incomplete descriptor
// document. Doc names the document, Field the offending element.
type ParseError struct {
	Doc   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Doc, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: missing required %s", e.Doc, e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }

// pisiDoc mirrors the PISI metadata.xml dialect. Only the
// elements the engine reports on are mapped.
type pisiDoc struct {
	XMLName xml.Name `xml:"PISI"`
	Source  struct {
		Name     string `xml:"Name"`
		Packager struct {
			Name  string `xml:"Name"`
			Email string `xml:"Email"`
		} `xml:"Packager"`
	} `xml:"Source"`
	Package struct {
		Name         string `xml:"Name"`
		Summary      string `xml:"Summary"`
		Description  string `xml:"Description"`
		Architecture string `xml:"Architecture"`
		License      string `xml:"License"`
	} `xml:"Package"`
	History struct {
		Updates []struct {
			Version string `xml:"Version"`
		} `xml:"Update"`
	} `xml:"History"`
}

// ParseMetadata decodes a metadata.xml document. Name is the one
// hard requirement; every other field may be empty depending on
// the bundle dialect.
func ParseMetadata(data []byte) (*Metadata, error) {
	var doc pisiDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{
			Doc: "metadata.xml", Field: "document", Err: err,
		}
	}
	if doc.Package.Name == "" {
		return nil, &ParseError{
			Doc: "metadata.xml", Field: "Package/Name",
		}
	}

	m := &Metadata{
		Name:         doc.Package.Name,
		Summary:      doc.Package.Summary,
		Description:  doc.Package.Description,
		Architecture: doc.Package.Architecture,
		License:      doc.Package.License,
	}
	if len(doc.History.Updates) > 0 {
		m.Version = doc.History.Updates[0].Version
	}
	if doc.Source.Packager.Name != "" {
		m.Packager = fmt.Sprintf(
			"%s <%s>",
			doc.Source.Packager.Name,
			doc.Source.Packager.Email,
		)
	}
	return m, nil
}
