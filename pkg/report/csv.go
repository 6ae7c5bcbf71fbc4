package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// ErrNoRows is returned when there is nothing to export.
var ErrNoRows = errors.New("no rows to export")

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes Header followed by one record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.IP, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes rows to path, prefixed with a UTF-8 byte order mark.
func ExportCSV(path string, rows []Row) (err error) {
	if len(rows) == 0 {
		return ErrNoRows
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if _, err := bw.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	if err := WriteCSV(bw, rows); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteTable renders rows as an aligned text table.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r.Record(), "\t"))
	}
	return tw.Flush()
}
