package documents

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hexaforge/agency-office/internal/platform/db"
)

//go:embed schema.sql
var schemaSQL string

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Repository provides PostgreSQL backed persistence for documents.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

// EnsureSchema creates the document tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("documents: ensure schema: %w", err)
	}
	return nil
}

type txRepo struct {
	q queries
}

var (
	_ Store   = (*Repository)(nil)
	_ TxStore = (*txRepo)(nil)
)

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: queries{db: tx, lock: true}})
	})
}

// ============================================================================
// READS
// ============================================================================

// GetQuotation retrieves a quotation with its items.
func (r *Repository) GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	return r.q.getQuotation(ctx, id)
}

// GetProposal retrieves a proposal with its items.
func (r *Repository) GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return r.q.getProposal(ctx, id)
}

// GetInvoice retrieves an invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.q.getInvoice(ctx, id)
}

// ListQuotations returns quotations newest first.
func (r *Repository) ListQuotations(ctx context.Context, status *Status) ([]Quotation, error) {
	rows, err := r.q.list(ctx, KindQuotation, statusFilter(status), nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Quotation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.quotation())
	}
	return out, nil
}

// ListProposals returns proposals newest first.
func (r *Repository) ListProposals(ctx context.Context, status *Status) ([]Proposal, error) {
	rows, err := r.q.list(ctx, KindProposal, statusFilter(status), nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Proposal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.proposal())
	}
	return out, nil
}

// ListInvoices returns invoices matching filter, newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	rows, err := r.q.list(ctx, KindInvoice, filter.Statuses, filter.IssuedFrom, filter.IssuedTo)
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.invoice())
	}
	return out, nil
}

// MarkOverdue persists sent -> overdue for invoices past their due date.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, updated_at = $3
		WHERE kind = 'invoice' AND status = $2 AND due_date IS NOT NULL AND due_date < $3
	`, string(StatusOverdue), string(StatusSent), now)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	return t.q.getQuotation(ctx, id)
}

func (t *txRepo) GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return t.q.getProposal(ctx, id)
}

func (t *txRepo) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return t.q.getInvoice(ctx, id)
}

func (t *txRepo) InsertQuotation(ctx context.Context, q *Quotation) error {
	return t.q.insert(ctx, rowFromQuotation(q))
}

func (t *txRepo) InsertProposal(ctx context.Context, p *Proposal) error {
	return t.q.insert(ctx, rowFromProposal(p))
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv *Invoice) error {
	return t.q.insert(ctx, rowFromInvoice(inv))
}

func (t *txRepo) UpdateQuotation(ctx context.Context, q *Quotation) error {
	return t.q.update(ctx, rowFromQuotation(q))
}

func (t *txRepo) UpdateProposal(ctx context.Context, p *Proposal) error {
	return t.q.update(ctx, rowFromProposal(p))
}

func (t *txRepo) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	return t.q.update(ctx, rowFromInvoice(inv))
}

func (t *txRepo) SetQuotationStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) error {
	return t.q.setStatus(ctx, KindQuotation, id, from, to, nil)
}

func (t *txRepo) SetProposalStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) error {
	return t.q.setStatus(ctx, KindProposal, id, from, to, nil)
}

func (t *txRepo) SetInvoiceStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, payment *Payment) error {
	return t.q.setStatus(ctx, KindInvoice, id, from, to, payment)
}

// ============================================================================
// QUERIES
// ============================================================================

type queries struct {
	db   dbtx
	lock bool
}

const documentColumns = `
	id, kind, number, status, client_id, client_name, client_email, client_phone,
	client_address, client_company, subtotal, tax_rate, tax_amount, discount_amount,
	total, issue_date, valid_until, due_date, notes, terms, title, scope_of_work,
	timeline, deliverables, pricing_summary, version, previous_version_id,
	quotation_id, paid_amount, paid_at, created_at, updated_at`

// documentRow is the flattened storage shape shared by every document kind.
type documentRow struct {
	Header
	Kind              Kind
	Status            Status
	ValidUntil        *time.Time
	DueDate           *time.Time
	Title             string
	ScopeOfWork       string
	Timeline          string
	Deliverables      string
	PricingSummary    string
	Version           int
	PreviousVersionID *uuid.UUID
	QuotationID       *uuid.UUID
	PaidAmount        decimal.Decimal
	PaidAt            *time.Time
}

func (r *documentRow) scanTargets() []any {
	return []any{
		&r.ID, &r.Kind, &r.Number, &r.Status, &r.Client.ID, &r.Client.Name, &r.Client.Email,
		&r.Client.Phone, &r.Client.Address, &r.Client.Company, &r.Subtotal, &r.TaxRate,
		&r.TaxAmount, &r.DiscountAmount, &r.Total, &r.IssueDate, &r.ValidUntil, &r.DueDate,
		&r.Notes, &r.Terms, &r.Title, &r.ScopeOfWork, &r.Timeline, &r.Deliverables,
		&r.PricingSummary, &r.Version, &r.PreviousVersionID, &r.QuotationID, &r.PaidAmount,
		&r.PaidAt, &r.CreatedAt, &r.UpdatedAt,
	}
}

func (q queries) get(ctx context.Context, kind Kind, id uuid.UUID) (*documentRow, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND kind = $2`
	if q.lock {
		query += ` FOR UPDATE`
	}
	var row documentRow
	if err := q.db.QueryRow(ctx, query, id, string(kind)).Scan(row.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	items, err := q.items(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	row.Items = items[id]
	return &row, nil
}

func (q queries) getQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	row, err := q.get(ctx, KindQuotation, id)
	if err != nil {
		return nil, err
	}
	out := row.quotation()
	return &out, nil
}

func (q queries) getProposal(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	row, err := q.get(ctx, KindProposal, id)
	if err != nil {
		return nil, err
	}
	out := row.proposal()
	return &out, nil
}

func (q queries) getInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row, err := q.get(ctx, KindInvoice, id)
	if err != nil {
		return nil, err
	}
	out := row.invoice()
	return &out, nil
}

func (q queries) list(ctx context.Context, kind Kind, statuses []Status, from, to *time.Time) ([]documentRow, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE kind = $1
		  AND ($2::text[] IS NULL OR status = ANY($2))
		  AND ($3::timestamptz IS NULL OR issue_date >= $3)
		  AND ($4::timestamptz IS NULL OR issue_date <= $4)
		ORDER BY issue_date DESC, number DESC`

	rows, err := q.db.Query(ctx, query, string(kind), statusStrings(statuses), from, to)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []documentRow
	var ids []uuid.UUID
	for rows.Next() {
		var row documentRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, row)
		ids = append(ids, row.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := q.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (q queries) items(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]LineItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT document_id, description, quantity, unit_price, amount
		FROM document_items
		WHERE document_id = ANY($1)
		ORDER BY document_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]LineItem, len(ids))
	for rows.Next() {
		var docID uuid.UUID
		var it LineItem
		if err := rows.Scan(&docID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out[docID] = append(out[docID], it)
	}
	return out, rows.Err()
}

func (q queries) insert(ctx context.Context, row documentRow) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)
	`,
		row.ID, string(row.Kind), row.Number, string(row.Status), row.Client.ID, row.Client.Name,
		row.Client.Email, row.Client.Phone, row.Client.Address, row.Client.Company,
		row.Subtotal, row.TaxRate, row.TaxAmount, row.DiscountAmount, row.Total,
		row.IssueDate, row.ValidUntil, row.DueDate, row.Notes, row.Terms, row.Title,
		row.ScopeOfWork, row.Timeline, row.Deliverables, row.PricingSummary, row.Version,
		row.PreviousVersionID, row.QuotationID, row.PaidAmount, row.PaidAt,
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			return fmt.Errorf("%w: %s (%s)", ErrPreconditionFailed, constraint, row.Number)
		}
		return fmt.Errorf("insert %s: %w", row.Kind, err)
	}
	return q.writeItems(ctx, row.ID, row.Items)
}

func (q queries) update(ctx context.Context, row documentRow) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE documents SET
			client_id = $3, client_name = $4, client_email = $5, client_phone = $6,
			client_address = $7, client_company = $8, subtotal = $9, tax_rate = $10,
			tax_amount = $11, discount_amount = $12, total = $13, valid_until = $14,
			due_date = $15, notes = $16, terms = $17, title = $18, scope_of_work = $19,
			timeline = $20, deliverables = $21, pricing_summary = $22, updated_at = $23
		WHERE id = $1 AND kind = $2
	`,
		row.ID, string(row.Kind), row.Client.ID, row.Client.Name, row.Client.Email,
		row.Client.Phone, row.Client.Address, row.Client.Company, row.Subtotal, row.TaxRate,
		row.TaxAmount, row.DiscountAmount, row.Total, row.ValidUntil, row.DueDate,
		row.Notes, row.Terms, row.Title, row.ScopeOfWork, row.Timeline, row.Deliverables,
		row.PricingSummary, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", row.Kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", row.Kind, row.ID, ErrNotFound)
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM document_items WHERE document_id = $1`, row.ID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	return q.writeItems(ctx, row.ID, row.Items)
}

func (q queries) writeItems(ctx context.Context, id uuid.UUID, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := q.db.CopyFrom(ctx,
		pgx.Identifier{"document_items"},
		[]string{"document_id", "position", "description", "quantity", "unit_price", "amount"},
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{id, i + 1, it.Description, it.Quantity, it.UnitPrice, it.Amount}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("write items: %w", err)
	}
	return nil
}

func (q queries) setStatus(ctx context.Context, kind Kind, id uuid.UUID, from []Status, to Status, payment *Payment) error {
	var paidAmount decimal.NullDecimal
	var paidAt *time.Time
	if payment != nil {
		paidAmount = decimal.NewNullDecimal(payment.Amount)
		at := payment.PaidAt
		paidAt = &at
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE documents
		SET status = $3,
		    paid_amount = COALESCE($5, paid_amount),
		    paid_at = COALESCE($6, paid_at),
		    updated_at = NOW()
		WHERE id = $1 AND kind = $2 AND status = ANY($4)
	`, id, string(kind), string(to), statusStrings(from), paidAmount, paidAt)
	if err != nil {
		return fmt.Errorf("set %s status: %w", kind, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1 AND kind = $2)`, id, string(kind)).Scan(&exists); err != nil {
		return fmt.Errorf("check %s: %w", kind, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, ErrStatusConflict)
}

// ============================================================================
// ROW MAPPING
// ============================================================================

func rowFromQuotation(q *Quotation) documentRow {
	return documentRow{Header: q.Header, Kind: KindQuotation, Status: q.Status, ValidUntil: q.ValidUntil, PaidAmount: decimal.Zero}
}

func rowFromProposal(p *Proposal) documentRow {
	return documentRow{
		Header:            p.Header,
		Kind:              KindProposal,
		Status:            p.Status,
		ValidUntil:        p.ValidUntil,
		Title:             p.Title,
		ScopeOfWork:       p.ScopeOfWork,
		Timeline:          p.Timeline,
		Deliverables:      p.Deliverables,
		PricingSummary:    p.PricingSummary,
		Version:           p.Version,
		PreviousVersionID: p.PreviousVersionID,
		PaidAmount:        decimal.Zero,
	}
}

func rowFromInvoice(inv *Invoice) documentRow {
	return documentRow{
		Header:      inv.Header,
		Kind:        KindInvoice,
		Status:      inv.Status,
		DueDate:     inv.DueDate,
		QuotationID: inv.QuotationID,
		PaidAmount:  inv.PaidAmount,
		PaidAt:      inv.PaidAt,
	}
}

func (r documentRow) quotation() Quotation {
	return Quotation{Header: r.Header, Status: r.Status, ValidUntil: r.ValidUntil}
}

func (r documentRow) proposal() Proposal {
	return Proposal{
		Header:            r.Header,
		Status:            r.Status,
		Title:             r.Title,
		ScopeOfWork:       r.ScopeOfWork,
		Timeline:          r.Timeline,
		Deliverables:      r.Deliverables,
		PricingSummary:    r.PricingSummary,
		ValidUntil:        r.ValidUntil,
		Version:           r.Version,
		PreviousVersionID: r.PreviousVersionID,
	}
}

func (r documentRow) invoice() Invoice {
	return Invoice{
		Header:      r.Header,
		Status:      r.Status,
		DueDate:     r.DueDate,
		QuotationID: r.QuotationID,
		PaidAmount:  r.PaidAmount,
		PaidAt:      r.PaidAt,
	}
}

func statusFilter(status *Status) []Status {
	if status == nil {
		return nil
	}
	return []Status{*status}
}

func statusStrings(statuses []Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
