// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package z2folio

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/molecula/z2folio/folio"
	"github.com/pkg/errors"
)

// RenderXML renders one instance document as the XML record handed to
// the frontend. Two quirks are kept for wire compatibility with
// existing clients: subfields are always emitted as elements, never as
// XML attributes, and a tag beginning with "@" is rewritten to begin
// with "__" in both open and close forms. Null-valued keys are emitted
// as empty elements. Keys are emitted in sorted order so the rendering
// is deterministic.
func RenderXML(inst folio.Instance) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<record>")
	if err := renderMap(&buf, map[string]interface{}(inst)); err != nil {
		return nil, err
	}
	buf.WriteString("</record>")
	return buf.Bytes(), nil
}

func renderMap(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := renderValue(buf, tagName(k), m[k]); err != nil {
			return err
		}
	}
	return nil
}

func renderValue(buf *bytes.Buffer, tag string, v interface{}) error {
	switch val := v.(type) {
	case []interface{}:
		// repeated elements, one per array entry
		for _, item := range val {
			if err := renderValue(buf, tag, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		buf.WriteString("<" + tag + ">")
		if err := renderMap(buf, val); err != nil {
			return err
		}
		buf.WriteString("</" + tag + ">")
		return nil
	case nil:
		buf.WriteString("<" + tag + "></" + tag + ">")
		return nil
	case string:
		return renderText(buf, tag, val)
	case json.Number:
		return renderText(buf, tag, val.String())
	case bool:
		return renderText(buf, tag, strconv.FormatBool(val))
	case float64:
		return renderText(buf, tag, strconv.FormatFloat(val, 'g', -1, 64))
	default:
		return errors.Errorf("cannot render %T in element %s", v, tag)
	}
}

func renderText(buf *bytes.Buffer, tag, text string) error {
	buf.WriteString("<" + tag + ">")
	if err := xml.EscapeText(buf, []byte(text)); err != nil {
		return errors.Wrap(err, "escaping element text")
	}
	buf.WriteString("</" + tag + ">")
	return nil
}

func tagName(key string) string {
	if len(key) > 0 && key[0] == '@' {
		return "__" + key[1:]
	}
	return key
}
