package revenue

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// CSVHeader is the first line of every export. Header names are separated by
// ", " while data lines use a bare comma.
const CSVHeader = "Invoice ID, Amount, Paid Amount, Status, Issue Date, Paid Date"

const csvDate = "2006-01-02"

// WriteCSV writes the header and one comma-joined line per row. Fields are
// not quoted, so a value containing a comma shifts the columns of its line.
func WriteCSV(w io.Writer, rows []Row) error {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(CSVHeader + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := buf.WriteString(csvLine(row) + "\n"); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func csvLine(row Row) string {
	return strings.Join([]string{
		row.InvoiceID,
		row.Amount.StringFixed(2),
		row.PaidAmount.StringFixed(2),
		string(row.Status),
		formatDate(&row.IssueDate),
		formatDate(row.PaidDate),
	}, ",")
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(csvDate)
}
