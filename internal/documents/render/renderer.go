package render

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/hexaforge/agency-office/internal/money"
)

const (
	pageFormat  = "A4"
	marginLeft  = 15.0
	marginTop   = 15.0
	marginRight = 15.0
	footerSpace = 18.0
	lineHeight  = 5.0
	rowHeight   = 7.0
	itemLine    = 4.5
	rowPadding  = 2.5
	fontFamily  = "body"
	dateLayout  = "02 Jan 2006"
)

var (
	tableHeaders = []string{"#", "Description", "Qty", "Unit Price", "Amount"}
	tableAligns  = []string{"C", "L", "R", "R", "R"}
)

// File is a rendered document ready for download.
type File struct {
	Name  string
	Data  []byte
	Pages int
}

// Renderer turns normalised documents into PDF files. It holds no per-call
// state and is safe for concurrent use.
type Renderer struct {
	company  string
	regular  []byte
	bold     []byte
	compress bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCompanyName prints the issuing company in the header band.
func WithCompanyName(name string) Option {
	return func(r *Renderer) { r.company = strings.TrimSpace(name) }
}

// WithFonts replaces the bundled AgencySans faces with other TrueType fonts.
// The regular face is used for bold when bold is empty. Fonts without a glyph
// for the taka sign print it as a blank.
func WithFonts(regular, bold []byte) Option {
	return func(r *Renderer) {
		r.regular = regular
		r.bold = bold
	}
}

// WithCompression toggles stream compression.
func WithCompression(on bool) Option {
	return func(r *Renderer) { r.compress = on }
}

// LoadFonts reads TrueType font files for WithFonts. An empty regular path keeps the bundled faces.
func LoadFonts(regularPath, boldPath string) (Option, error) {
	if regularPath == "" {
		return func(*Renderer) {}, nil
	}
	regular, err := os.ReadFile(regularPath)
	if err != nil {
		return nil, fmt.Errorf("render: read regular font: %w", err)
	}
	var bold []byte
	if boldPath != "" {
		if bold, err = os.ReadFile(boldPath); err != nil {
			return nil, fmt.Errorf("render: read bold font: %w", err)
		}
	}
	return WithFonts(regular, bold), nil
}

// NewRenderer constructs a renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{regular: defaultRegular, bold: defaultBold, compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render lays out doc. Output is byte-identical for identical input.
func (r *Renderer) Render(doc Document) (File, error) {
	l, err := r.layout(doc)
	if err != nil {
		return File{}, err
	}
	pages := l.pdf.PageNo()
	var buf bytes.Buffer
	if err := l.pdf.Output(&buf); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return File{Name: doc.Filename(), Data: buf.Bytes(), Pages: pages}, nil
}

func (r *Renderer) layout(doc Document) (*layout, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", pageFormat, "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(doc.Type.Title()+" "+doc.Number, true)
	pdf.SetProducer("agency-office", false)
	if r.company != "" {
		pdf.SetAuthor(r.company, true)
	}

	pageW, pageH := pdf.GetPageSize()
	l := &layout{
		pdf:      pdf,
		doc:      doc,
		company:  r.company,
		contentW: pageW - marginLeft - marginRight,
		bottom:   pageH - footerSpace,
	}
	l.configureFonts(r.regular, r.bold)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(l.pageFooter)

	l.addPage()
	l.header()
	l.badge()
	l.separator()
	l.billTo()
	l.table()
	l.totals()
	for _, s := range doc.Sections {
		l.textBlock(s.Title, s.Body)
	}
	if strings.TrimSpace(doc.Notes) != "" {
		l.textBlock("Notes", doc.Notes)
	}
	if strings.TrimSpace(doc.Terms) != "" {
		l.textBlock("Terms & Conditions", doc.Terms)
	}
	l.footer()

	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrRender, pdf.Error())
	}
	return l, nil
}

// placement records where a block landed; used to check keep-together rules.
type placement struct {
	name   string
	page   int
	top    float64
	bottom float64
}

type layout struct {
	pdf      *gofpdf.Fpdf
	doc      Document
	company  string
	contentW float64
	bottom   float64
	placed   []placement
}

func (l *layout) configureFonts(regular, bold []byte) {
	if len(bold) == 0 {
		bold = regular
	}
	l.pdf.AddUTF8FontFromBytes(fontFamily, "", regular)
	l.pdf.AddUTF8FontFromBytes(fontFamily, "B", bold)
}

func (l *layout) addPage() {
	l.pdf.AddPage()
	l.pdf.SetXY(marginLeft, marginTop)
}

// keepTogether starts a new page unless a block of height h fits below the cursor.
func (l *layout) keepTogether(h float64) {
	if l.pdf.GetY()+h > l.bottom && l.pdf.GetY() > marginTop {
		l.addPage()
	}
}

func (l *layout) place(name string, top float64) {
	l.placed = append(l.placed, placement{name: name, page: l.pdf.PageNo(), top: top, bottom: l.pdf.GetY()})
}

// wrap splits text into printable lines of at most w millimetres using the current font.
func (l *layout) wrap(text string, w float64) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(para) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, l.pdf.SplitText(para, w)...)
	}
	return out
}

func (l *layout) textColor(gray bool) {
	if gray {
		l.pdf.SetTextColor(107, 114, 128)
		return
	}
	l.pdf.SetTextColor(31, 41, 55)
}

func (l *layout) header() {
	pdf := l.pdf
	top := pdf.GetY()
	l.textColor(false)
	pdf.SetFont(fontFamily, "B", 22)
	pdf.CellFormat(l.contentW/2, 10, strings.ToUpper(l.doc.Type.Title()), "", 0, "L", false, 0, "")
	if l.company != "" {
		pdf.SetFont(fontFamily, "B", 12)
		pdf.CellFormat(l.contentW/2, 10, l.company, "", 0, "R", false, 0, "")
	}
	pdf.Ln(12)

	pdf.SetFont(fontFamily, "", 10)
	l.labelValue("Number", l.doc.Number)
	l.labelValue("Date", l.doc.IssueDate.Format(dateLayout))
	if l.doc.DueDate != nil && l.doc.DueLabel != "" {
		l.labelValue(l.doc.DueLabel, l.doc.DueDate.Format(dateLayout))
	}
	if l.doc.Subject != "" {
		l.labelValue("Subject", l.doc.Subject)
	}
	l.place("header", top)
}

func (l *layout) labelValue(label, value string) {
	l.textColor(true)
	l.pdf.CellFormat(30, 5.5, label+":", "", 0, "L", false, 0, "")
	l.textColor(false)
	l.pdf.CellFormat(0, 5.5, value, "", 1, "L", false, 0, "")
}

func (l *layout) badge() {
	pdf := l.pdf
	pdf.Ln(2)
	top := pdf.GetY()
	label := strings.ToUpper(l.doc.Status)
	c := StatusColor(l.doc.Status)
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(c.R, c.G, c.B)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(pdf.GetStringWidth(label)+8, 7, label, "", 1, "C", true, 0, "")
	l.textColor(false)
	pdf.Ln(3)
	l.place("badge", top)
}

func (l *layout) separator() {
	y := l.pdf.GetY()
	l.pdf.SetDrawColor(229, 231, 235)
	l.pdf.SetLineWidth(0.3)
	l.pdf.Line(marginLeft, y, marginLeft+l.contentW, y)
	l.pdf.Ln(5)
}

// billToLines returns the present Bill To lines in print order: name, company,
// email, phone, then each non-empty address line.
func billToLines(p Party) []string {
	lines := []string{strings.TrimSpace(p.Name)}
	for _, v := range []string{p.Company, p.Email, p.Phone} {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	for _, v := range strings.Split(p.Address, "\n") {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func (l *layout) billTo() {
	pdf := l.pdf
	top := pdf.GetY()
	pdf.SetFont(fontFamily, "B", 9)
	l.textColor(true)
	pdf.CellFormat(0, lineHeight, "BILL TO", "", 1, "L", false, 0, "")

	l.textColor(false)
	for i, line := range billToLines(l.doc.Client) {
		if i == 0 {
			pdf.SetFont(fontFamily, "B", 11)
		} else {
			pdf.SetFont(fontFamily, "", 10)
		}
		for _, wrapped := range l.wrap(line, l.contentW/2) {
			pdf.CellFormat(l.contentW/2, lineHeight, wrapped, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(5)
	l.place("bill_to", top)
}

func (l *layout) columnWidths() []float64 {
	return []float64{10, l.contentW - 10 - 20 - 35 - 35, 20, 35, 35}
}

func (l *layout) tableHeader() {
	pdf := l.pdf
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(243, 244, 246)
	pdf.SetTextColor(55, 65, 81)
	for i, w := range l.columnWidths() {
		pdf.CellFormat(w, rowHeight, tableHeaders[i], "", 0, tableAligns[i], true, 0, "")
	}
	pdf.Ln(rowHeight)
	l.textColor(false)
	pdf.SetFont(fontFamily, "", 9)
}

func (l *layout) table() {
	pdf := l.pdf
	l.keepTogether(2 * rowHeight)
	top := pdf.GetY()
	l.tableHeader()
	widths := l.columnWidths()

	if len(l.doc.Items) == 0 {
		l.textColor(true)
		pdf.CellFormat(l.contentW, rowHeight, "No line items", "B", 1, "C", false, 0, "")
		l.textColor(false)
	}
	for i, it := range l.doc.Items {
		desc := l.wrap(it.Description, widths[1])
		cells := []string{
			fmt.Sprintf("%d", i+1),
			"",
			it.Quantity.String(),
			money.Format(it.UnitPrice, money.TakaSign),
			money.Format(it.Amount, money.TakaSign),
		}
		// A description longer than a page continues on the next one, under
		// a repeated header; the figures print with its first chunk only.
		for len(desc) > 0 {
			n := len(desc)
			if pdf.GetY()+rowSpan(n) > l.bottom {
				fits := linesFitting(l.bottom - pdf.GetY())
				if n <= l.pageLines() || fits < 1 {
					l.addPage()
					l.tableHeader()
					fits = linesFitting(l.bottom - pdf.GetY())
				}
				n = min(n, fits)
			}
			rowTop := pdf.GetY()
			l.itemRow(widths, cells, desc[:n])
			l.place(fmt.Sprintf("item %d", i+1), rowTop)
			desc = desc[n:]
			cells = make([]string, len(widths))
		}
	}
	pdf.Ln(4)
	l.place("table", top)
}

func (l *layout) itemRow(widths []float64, cells, desc []string) {
	pdf := l.pdf
	h := rowSpan(len(desc))
	y0 := pdf.GetY()
	x := marginLeft
	for col, w := range widths {
		if col == 1 {
			for j, line := range desc {
				pdf.SetXY(x, y0+rowPadding/2+float64(j)*itemLine)
				pdf.CellFormat(w, itemLine, line, "", 0, "L", false, 0, "")
			}
		} else if cells[col] != "" {
			pdf.SetXY(x, y0+rowPadding/2)
			pdf.CellFormat(w, itemLine, cells[col], "", 0, tableAligns[col], false, 0, "")
		}
		x += w
	}
	pdf.SetDrawColor(229, 231, 235)
	pdf.Line(marginLeft, y0+h, marginLeft+l.contentW, y0+h)
	pdf.SetXY(marginLeft, y0+h)
}

// pageLines is the number of description lines that fit on a page below the table header.
func (l *layout) pageLines() int {
	return linesFitting(l.bottom - marginTop - rowHeight)
}

func rowSpan(lines int) float64 {
	return max(float64(lines)*itemLine+rowPadding, rowHeight)
}

func linesFitting(space float64) int {
	n := int((space - rowPadding) / itemLine)
	for n > 0 && rowSpan(n) > space {
		n--
	}
	return n
}

func (l *layout) totals() {
	type row struct{ label, value string }
	rows := []row{{"Subtotal", money.Format(l.doc.Subtotal, money.TakaSign)}}
	if l.doc.TaxRate.IsPositive() {
		rows = append(rows, row{"Tax (" + money.FormatPercent(l.doc.TaxRate) + "%)", money.Format(l.doc.TaxAmount, money.TakaSign)})
	}
	if l.doc.Discount.IsPositive() {
		rows = append(rows, row{"Discount", "-" + money.Format(l.doc.Discount, money.TakaSign)})
	}

	const labelW, valueW = 45.0, 45.0
	h := float64(len(rows))*6 + 2 + 9
	l.keepTogether(h)

	pdf := l.pdf
	top := pdf.GetY()
	x := marginLeft + l.contentW - labelW - valueW
	pdf.SetFont(fontFamily, "", 10)
	for _, r := range rows {
		pdf.SetX(x)
		l.textColor(true)
		pdf.CellFormat(labelW, 6, r.label, "", 0, "R", false, 0, "")
		l.textColor(false)
		pdf.CellFormat(valueW, 6, r.value, "", 1, "R", false, 0, "")
	}
	y := pdf.GetY() + 1
	pdf.SetDrawColor(31, 41, 55)
	pdf.SetLineWidth(0.4)
	pdf.Line(x, y, x+labelW+valueW, y)
	pdf.SetLineWidth(0.3)
	pdf.SetY(y + 1)

	pdf.SetX(x)
	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(labelW, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(valueW, 8, money.Format(l.doc.Total, money.TakaSign), "", 1, "R", false, 0, "")
	l.place("totals", top)
	pdf.Ln(4)
}

// textBlock prints a titled paragraph block. Blocks that fit on one page are
// never split; longer blocks flow across pages line by line.
func (l *layout) textBlock(title, body string) {
	pdf := l.pdf
	pdf.SetFont(fontFamily, "", 10)
	lines := l.wrap(body, l.contentW)
	h := 7 + float64(len(lines))*lineHeight + 3
	if h <= l.bottom-marginTop {
		l.keepTogether(h)
	} else {
		l.keepTogether(7 + 3*lineHeight)
	}

	top := pdf.GetY()
	pdf.SetFont(fontFamily, "B", 11)
	l.textColor(false)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	l.textColor(true)
	for _, line := range lines {
		if pdf.GetY()+lineHeight > l.bottom {
			l.addPage()
			pdf.SetFont(fontFamily, "", 10)
			l.textColor(true)
		}
		pdf.CellFormat(0, lineHeight, line, "", 1, "L", false, 0, "")
	}
	l.textColor(false)
	pdf.Ln(3)
	l.place(title, top)
}

func (l *layout) footer() {
	pdf := l.pdf
	l.keepTogether(4 + 7 + lineHeight)
	top := pdf.GetY()
	pdf.Ln(2)
	l.separator()
	pdf.SetFont(fontFamily, "B", 10)
	l.textColor(false)
	pdf.CellFormat(0, 7, "Thank you for your business!", "", 1, "C", false, 0, "")
	pdf.SetFont(fontFamily, "", 8)
	l.textColor(true)
	generated := "Generated on " + l.doc.GeneratedAt.Format(dateLayout+" 15:04 MST")
	pdf.CellFormat(0, lineHeight, generated, "", 1, "C", false, 0, "")
	l.place("footer", top)
}

func (l *layout) pageFooter() {
	pdf := l.pdf
	pdf.SetY(-12)
	pdf.SetFont(fontFamily, "", 8)
	pdf.SetTextColor(156, 163, 175)
	label := fmt.Sprintf("%s %s  |  Page %d of {nb}", l.doc.Type.Title(), l.doc.Number, pdf.PageNo())
	pdf.CellFormat(0, 5, label, "", 0, "C", false, 0, "")
}
