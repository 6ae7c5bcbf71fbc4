package client

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"object", `{"a": 1}`, false},
		{"object with whitespace", "  \n{\"a\": {\"b\": [1, 2]}}\n", false},
		{"empty object", `{}`, false},
		{"array", `[]`, true},
		{"string", `"x"`, true},
		{"null", `null`, true},
		{"truncated", `{"a": `, true},
		{"empty", ``, true},
		{"trailing html", `{"ip":"8.8.8.8"} <html>oops</html>`, true},
		{"two objects", `{"a": 1} {"b": 2}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Errorf("DecodeDocument(%q) should fail", tt.body)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDocument(%q) failed: %v", tt.body, err)
			}
			if doc == nil {
				t.Error("document should not be nil")
			}
		})
	}
}

func TestDecodeDocument_NotObjectSentinel(t *testing.T) {
	_, err := DecodeDocument([]byte(`[1]`))
	if !errors.Is(err, ErrNotObject) {
		t.Errorf("error = %v, want ErrNotObject", err)
	}
}

func TestDecodeDocument_TrailingDataSentinel(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"ip":"8.8.8.8"} <html>oops</html>`))
	if !errors.Is(err, ErrTrailingData) {
		t.Errorf("error = %v, want ErrTrailingData", err)
	}
}

func TestDecodeDocument_PreservesLargeIntegers(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"asn": 9007199254740993}`))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}
	n, ok := doc["asn"].(json.Number)
	if !ok {
		t.Fatalf("asn type = %T, want json.Number", doc["asn"])
	}
	if n.String() != "9007199254740993" {
		t.Errorf("asn = %s, want 9007199254740993", n.String())
	}
}

func TestDocument_Path(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{
		"whois": {"data": [{"city": "Seoul"}]},
		"issues": {"is_vpn": true}
	}`))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}

	tests := []struct {
		name   string
		path   []any
		want   any
		wantOK bool
	}{
		{"nested array object", []any{"whois", "data", 0, "city"}, "Seoul", true},
		{"bool", []any{"issues", "is_vpn"}, true, true},
		{"missing key", []any{"port", "count"}, nil, false},
		{"index out of range", []any{"whois", "data", 3, "city"}, nil, false},
		{"index into object", []any{"whois", 0}, nil, false},
		{"key into array", []any{"whois", "data", "city"}, nil, false},
		{"unsupported path type", []any{1.5}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := doc.Path(tt.path...)
			if ok != tt.wantOK {
				t.Fatalf("Path(%v) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Path(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDocument_Marshal(t *testing.T) {
	doc := Document{"ip": "1.1.1.1"}
	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"ip":"1.1.1.1"}` {
		t.Errorf("Marshal = %s", data)
	}
}
