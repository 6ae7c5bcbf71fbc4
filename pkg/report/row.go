// Package report turns Criminal IP reports into table rows and exports them
// as CSV.
package report

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Sternrassler/ipintel-client/pkg/client"
)

// NotAvailable is shown for text fields the report does not carry.
const NotAvailable = "N/A"

// Header is the column order used by WriteCSV and WriteTable.
var Header = []string{"IP", "Country", "City", "ISP", "Open Ports", "VPN", "Mobile"}

// Row is the summary of one successful lookup.
type Row struct {
	IP        string `json:"ip"`
	Country   string `json:"country"`
	City      string `json:"city"`
	ISP       string `json:"isp"`
	OpenPorts int    `json:"open_ports"`
	VPN       bool   `json:"vpn"`
	Mobile    bool   `json:"mobile"`

	// Payload is the full report, kept for detail views.
	Payload client.Document `json:"-"`
}

// RowFromDocument extracts the summary columns from a report. Missing text
// fields become NotAvailable, a missing port count 0, missing flags false.
func RowFromDocument(ip string, doc client.Document) Row {
	return Row{
		IP:        ip,
		Country:   strings.ToUpper(stringAt(doc, "whois", "data", 0, "org_country_code")),
		City:      stringAt(doc, "whois", "data", 0, "city"),
		ISP:       stringAt(doc, "whois", "data", 0, "org_name"),
		OpenPorts: intAt(doc, "port", "count"),
		VPN:       boolAt(doc, "issues", "is_vpn"),
		Mobile:    boolAt(doc, "issues", "is_mobile"),
		Payload:   doc,
	}
}

// Record returns the row as CSV fields in Header order.
func (r Row) Record() []string {
	return []string{
		r.IP,
		r.Country,
		r.City,
		r.ISP,
		strconv.Itoa(r.OpenPorts),
		yesNo(r.VPN),
		yesNo(r.Mobile),
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func stringAt(doc client.Document, path ...any) string {
	v, ok := doc.Path(path...)
	if !ok || v == nil {
		return NotAvailable
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return NotAvailable
	}
}

func intAt(doc client.Document, path ...any) int {
	v, ok := doc.Path(path...)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

func boolAt(doc client.Document, path ...any) bool {
	v, ok := doc.Path(path...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
