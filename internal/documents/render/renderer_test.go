package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexaforge/agency-office/internal/documents"
)

var generatedAt = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func sampleDocument(items int) Document {
	doc := Document{
		Type:      documents.KindInvoice,
		Number:    "INV-000042",
		Status:    "sent",
		IssueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DueLabel:  "Due Date",
		Client: Party{
			Name:    "Acme Ltd",
			Email:   "billing@acme.test",
			Phone:   "+880 1700 000000",
			Address: "House 12, Road 5\nDhaka 1212",
		},
		Subtotal:    decimal.RequireFromString("50000"),
		TaxRate:     decimal.RequireFromString("5"),
		TaxAmount:   decimal.RequireFromString("2500"),
		Discount:    decimal.RequireFromString("500"),
		Total:       decimal.RequireFromString("52000"),
		Notes:       "Bank transfer preferred.",
		Terms:       "Payment due within 30 days.",
		GeneratedAt: generatedAt,
	}
	due := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	doc.DueDate = &due
	for i := 0; i < items; i++ {
		doc.Items = append(doc.Items, Item{
			Description: fmt.Sprintf("Website redesign phase %d", i+1),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString("50000"),
			Amount:      decimal.RequireFromString("50000"),
		})
	}
	return doc
}

// pdfText is s as it appears in an uncompressed content stream: UTF-16BE
// with the PDF string delimiters escaped.
func pdfText(s string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, u := range utf16.Encode([]rune(s)) {
		for _, c := range []byte{byte(u >> 8), byte(u)} {
			switch c {
			case '\\', '(', ')':
				b.WriteByte('\\')
				b.WriteByte(c)
			case '\r':
				b.WriteString(`\r`)
			default:
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte(')')
	return b.String()
}

func TestRenderIsDeterministic(t *testing.T) {
	doc := sampleDocument(3)

	first, err := NewRenderer(WithCompanyName("Hexaforge")).Render(doc)
	require.NoError(t, err)
	second, err := NewRenderer(WithCompanyName("Hexaforge")).Render(doc)
	require.NoError(t, err)

	assert.NotEmpty(t, first.Data)
	assert.True(t, bytes.Equal(first.Data, second.Data), "renders differ")
	assert.True(t, bytes.HasPrefix(first.Data, []byte("%PDF-")))
}

func TestRenderFilename(t *testing.T) {
	f, err := NewRenderer().Render(sampleDocument(1))
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-000042.pdf", f.Name)

	q := sampleDocument(1)
	q.Type = documents.KindQuotation
	q.Number = "QUO-000001"
	assert.Equal(t, "quotation-QUO-000001.pdf", q.Filename())
}

func TestRenderRejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"unknown type", func(d *Document) { d.Type = "receipt" }},
		{"missing number", func(d *Document) { d.Number = "" }},
		{"missing status", func(d *Document) { d.Status = "" }},
		{"missing client", func(d *Document) { d.Client.Name = "  " }},
		{"missing issue date", func(d *Document) { d.IssueDate = time.Time{} }},
		{"missing generation time", func(d *Document) { d.GeneratedAt = time.Time{} }},
		{"item without description", func(d *Document) { d.Items[0].Description = "" }},
		{"item with zero quantity", func(d *Document) { d.Items[0].Quantity = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := sampleDocument(1)
			tt.mutate(&doc)

			f, err := NewRenderer().Render(doc)
			assert.ErrorIs(t, err, ErrRender)
			assert.Nil(t, f.Data)
			assert.Empty(t, f.Name)
		})
	}
}

func TestBillToLinesSkipsAbsentFields(t *testing.T) {
	lines := billToLines(Party{Name: "Acme Ltd", Address: "Dhaka\n\n1212"})
	assert.Equal(t, []string{"Acme Ltd", "Dhaka", "1212"}, lines)

	lines = billToLines(Party{Name: "Acme Ltd", Company: "Acme Group", Email: "a@acme.test", Phone: "123"})
	assert.Equal(t, []string{"Acme Ltd", "Acme Group", "a@acme.test", "123"}, lines)
}

func TestRenderBillToOmitsAbsentFields(t *testing.T) {
	doc := sampleDocument(1)
	doc.Client.Email = ""
	doc.Client.Phone = ""

	f, err := NewRenderer(WithCompression(false)).Render(doc)
	require.NoError(t, err)
	assert.Contains(t, string(f.Data), pdfText("Acme Ltd"))
	assert.Contains(t, string(f.Data), pdfText("Dhaka 1212"))
	assert.NotContains(t, string(f.Data), pdfText("billing@acme.test"))
	assert.NotContains(t, string(f.Data), pdfText("+880 1700 000000"))
}

func TestRenderWritesSectionsAndTotals(t *testing.T) {
	f, err := NewRenderer(WithCompression(false), WithCompanyName("Hexaforge")).Render(sampleDocument(1))
	require.NoError(t, err)
	out := string(f.Data)

	for _, want := range []string{
		"INVOICE", "Hexaforge", "INV-000042", "01 Mar 2025", "31 Mar 2025",
		"SENT", "BILL TO", "Unit Price", "৳50,000.00", "Tax (5%)",
		"-৳500.00", "৳52,000.00", "Notes", "Terms & Conditions",
		"Thank you for your business!", "Generated on 10 Mar 2025 09:30 UTC",
	} {
		assert.Contains(t, out, pdfText(want), want)
	}
	assert.NotContains(t, out, pdfText("Tk 50,000.00"))
}

func TestRenderOmitsZeroTaxAndDiscount(t *testing.T) {
	doc := sampleDocument(1)
	doc.TaxRate = decimal.Zero
	doc.TaxAmount = decimal.Zero
	doc.Discount = decimal.Zero
	doc.Notes = ""
	doc.Terms = ""

	f, err := NewRenderer(WithCompression(false)).Render(doc)
	require.NoError(t, err)
	out := string(f.Data)
	assert.NotContains(t, out, strings.TrimSuffix(pdfText("Tax ("), ")"))
	assert.NotContains(t, out, pdfText("Discount"))
	assert.NotContains(t, out, pdfText("Notes"))
	assert.NotContains(t, out, pdfText("Terms & Conditions"))
}

func TestRenderPaginatesLongTables(t *testing.T) {
	f, err := NewRenderer(WithCompression(false)).Render(sampleDocument(120))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, f.Pages, 3)
	headers := bytes.Count(f.Data, []byte(pdfText("Unit Price")+"Tj"))
	assert.GreaterOrEqual(t, headers, 3, "table header repeated on continuation pages")
	assert.LessOrEqual(t, headers, f.Pages)
	assert.Contains(t, string(f.Data), pdfText("120"))
}

func tallItemDocument(lines int) Document {
	doc := sampleDocument(1)
	desc := make([]string, lines)
	for i := range desc {
		desc[i] = fmt.Sprintf("Deliverable %02d", i+1)
	}
	doc.Items[0].Description = strings.Join(desc, "\n")
	doc.Items[0].Quantity = decimal.NewFromInt(2)
	doc.Items[0].UnitPrice = decimal.RequireFromString("25000")
	return doc
}

func TestLayoutSplitsRowsTallerThanAPage(t *testing.T) {
	l, err := NewRenderer().layout(tallItemDocument(80))
	require.NoError(t, err)

	var chunks []placement
	for _, p := range l.placed {
		if p.name == "item 1" {
			chunks = append(chunks, p)
		}
	}
	require.GreaterOrEqual(t, len(chunks), 2, "80 lines cannot fit on one page")
	for i, p := range chunks {
		assert.GreaterOrEqual(t, p.top, marginTop, "chunk %d top", i)
		assert.LessOrEqual(t, p.bottom, l.bottom, "chunk %d crosses the page bottom", i)
		if i > 0 {
			assert.Equal(t, chunks[i-1].page+1, p.page, "chunk %d page", i)
		}
	}
}

func TestRenderSplitsRowsTallerThanAPage(t *testing.T) {
	f, err := NewRenderer(WithCompression(false)).Render(tallItemDocument(80))
	require.NoError(t, err)
	out := string(f.Data)

	assert.GreaterOrEqual(t, f.Pages, 2)
	for _, line := range []string{"Deliverable 01", "Deliverable 40", "Deliverable 80"} {
		assert.Contains(t, out, pdfText(line))
	}
	assert.GreaterOrEqual(t, strings.Count(out, pdfText("Unit Price")+"Tj"), 2, "header repeated above the continuation")
	assert.Equal(t, 1, strings.Count(out, pdfText("1")+"Tj"), "row number printed with the first chunk only")
}

func TestRenderDefaultFontPrintsTakaSign(t *testing.T) {
	doc := sampleDocument(1)
	doc.Total = decimal.RequireFromString("12345")

	f, err := NewRenderer(WithCompression(false)).Render(doc)
	require.NoError(t, err)
	assert.Contains(t, string(f.Data), pdfText("৳12,345.00"))
	assert.Contains(t, string(f.Data), "/FontFile2")
}

func TestLoadFontsOverridesBundledFaces(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "regular.ttf")
	require.NoError(t, os.WriteFile(regular, defaultBold, 0o600))

	opt, err := LoadFonts(regular, "")
	require.NoError(t, err)
	r := NewRenderer(opt)
	assert.Equal(t, defaultBold, r.regular)
	assert.Nil(t, r.bold)

	f, err := r.Render(sampleDocument(1))
	require.NoError(t, err)
	assert.NotEmpty(t, f.Data)

	_, err = LoadFonts(filepath.Join(dir, "missing.ttf"), "")
	assert.Error(t, err)

	opt, err = LoadFonts("", "")
	require.NoError(t, err)
	assert.Equal(t, defaultRegular, NewRenderer(opt).regular)
}

func TestLayoutKeepsTrailingBlocksOnOnePage(t *testing.T) {
	r := NewRenderer()
	for n := 0; n <= 70; n++ {
		l, err := r.layout(sampleDocument(n))
		require.NoError(t, err)

		for _, p := range l.placed {
			switch p.name {
			case "totals", "Notes", "Terms & Conditions", "footer":
				assert.GreaterOrEqual(t, p.top, marginTop, "%d items: %s top", n, p.name)
				assert.LessOrEqual(t, p.bottom, l.bottom, "%d items: %s crosses the page bottom", n, p.name)
				assert.Greater(t, p.bottom, p.top, "%d items: %s split", n, p.name)
			}
		}
	}
}

func TestStatusColor(t *testing.T) {
	tests := map[string]RGB{
		"draft":     {156, 163, 175},
		"sent":      {59, 130, 246},
		"paid":      {34, 197, 94},
		"overdue":   {239, 68, 68},
		"cancelled": {107, 114, 128},
		"pending":   {234, 179, 8},
		"approved":  {34, 197, 94},
		"rejected":  {239, 68, 68},
		"converted": {59, 130, 246},
		"unknown":   {156, 163, 175},
	}
	for status, want := range tests {
		assert.Equal(t, want, StatusColor(status), status)
	}
}

func TestFromInvoiceResolvesOverdue(t *testing.T) {
	due := generatedAt.Add(-24 * time.Hour)
	inv := documents.Invoice{
		Header: documents.Header{
			ID:        uuid.New(),
			Number:    "INV-000001",
			Client:    documents.Client{Name: "Acme Ltd"},
			IssueDate: generatedAt.Add(-30 * 24 * time.Hour),
			Items: []documents.LineItem{{
				Description: "Hosting",
				Quantity:    decimal.NewFromInt(12),
				UnitPrice:   decimal.NewFromInt(100),
				Amount:      decimal.NewFromInt(1200),
			}},
			Total: decimal.NewFromInt(1200),
		},
		Status:  documents.StatusSent,
		DueDate: &due,
	}

	doc := FromInvoice(inv, generatedAt)
	assert.Equal(t, "overdue", doc.Status)
	assert.Equal(t, "Due Date", doc.DueLabel)
	assert.Equal(t, generatedAt, doc.GeneratedAt)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "1200", doc.Items[0].Amount.String())
}

func TestFromProposalSections(t *testing.T) {
	p := documents.Proposal{
		Header:      documents.Header{Number: "PRO-000002", Client: documents.Client{Name: "Acme"}, IssueDate: generatedAt},
		Status:      documents.StatusDraft,
		Title:       "Website rebuild",
		ScopeOfWork: "Design and build",
		Timeline:    "  ",
		Version:     2,
	}

	doc := FromProposal(p, generatedAt)
	assert.Equal(t, "Website rebuild (v2)", doc.Subject)
	assert.Equal(t, []Section{{Title: "Scope of Work", Body: "Design and build"}}, doc.Sections)

	f, err := NewRenderer().Render(doc)
	require.NoError(t, err)
	assert.Equal(t, "proposal-PRO-000002.pdf", f.Name)
}
