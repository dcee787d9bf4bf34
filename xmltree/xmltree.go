// Package xmltree converts the scan engine's native XML reports into a
// generic JSON-compatible tree and back. The conversion is structural and
// lossless: element names, attributes and text all survive a round trip.
package xmltree

import (
	"fmt"

	mxj "github.com/clbanning/mxj/v2"
)

// Parse decodes an XML document into a generic map tree. Attribute keys are
// prefixed with "-" and element text is kept under "#text", so no structure
// is lost.
func Parse(xmlBytes []byte) (map[string]interface{}, error) {
	m, err := mxj.NewMapXml(xmlBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing xml report: %w", err)
	}
	return map[string]interface{}(m), nil
}

// JSON renders an XML document as its generic JSON tree.
func JSON(xmlBytes []byte) ([]byte, error) {
	m, err := Parse(xmlBytes)
	if err != nil {
		return nil, err
	}
	out, err := mxj.Map(m).Json()
	if err != nil {
		return nil, fmt.Errorf("encoding report tree: %w", err)
	}
	return out, nil
}

// XML re-encodes a generic map tree back to XML.
func XML(tree map[string]interface{}) ([]byte, error) {
	out, err := mxj.Map(tree).Xml()
	if err != nil {
		return nil, fmt.Errorf("encoding xml report: %w", err)
	}
	return out, nil
}
