package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the opaque report returned by the API. The client only
// guarantees it was a JSON object; readers impose their own schema.
type Document map[string]any

// DecodeDocument parses body into a Document. Numbers are kept as
// json.Number so large integers survive a round trip. The body must hold
// exactly one object.
func DecodeDocument(body []byte) (Document, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	dec := jsonAPI.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, ErrNotObject
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return doc, nil
}

// Marshal encodes the document back to JSON.
func (d Document) Marshal() ([]byte, error) {
	return jsonAPI.Marshal(d)
}

// MarshalIndent encodes the document as indented JSON with sorted keys.
func (d Document) MarshalIndent() ([]byte, error) {
	return jsonAPI.MarshalIndent(d, "", "  ")
}

// Path walks nested objects and arrays. String elements index objects,
// int elements index arrays. Missing keys, out-of-range indexes and type
// mismatches return ok=false.
func (d Document) Path(path ...any) (any, bool) {
	var cur any = map[string]any(d)
	for _, p := range path {
		switch key := p.(type) {
		case string:
			m, ok := asMap(cur)
			if !ok {
				return nil, false
			}
			cur, ok = m[key]
			if !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}
