package report

import (
	"errors"
	"fmt"
	"io"
)

// ErrNoPayload is returned by WriteDetail for rows without a full report.
var ErrNoPayload = errors.New("row has no report payload")

// WriteDetail writes the full report behind row as indented JSON, preceded
// by a header line naming the IP.
func WriteDetail(w io.Writer, row Row) error {
	if row.Payload == nil {
		return fmt.Errorf("%s: %w", row.IP, ErrNoPayload)
	}
	data, err := row.Payload.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encode report for %s: %w", row.IP, err)
	}
	if _, err := fmt.Fprintf(w, "== %s ==\n%s\n", row.IP, data); err != nil {
		return err
	}
	return nil
}

// FindRow returns the row for ip.
func FindRow(rows []Row, ip string) (Row, bool) {
	for _, r := range rows {
		if r.IP == ip {
			return r, true
		}
	}
	return Row{}, false
}
