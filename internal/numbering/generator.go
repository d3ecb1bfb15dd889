// Package numbering issues human-readable, collision-free business identifiers.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Kind identifies the family of identifiers a number belongs to.
type Kind string

const (
	KindQuotation Kind = "quotation"
	KindProposal  Kind = "proposal"
	KindInvoice   Kind = "invoice"
	KindEmployee  Kind = "employee"
)

var prefixes = map[Kind]string{
	KindQuotation: "QUO",
	KindProposal:  "PRO",
	KindInvoice:   "INV",
	KindEmployee:  "EMP",
}

// sequenceWidth is the zero-padded width of the numeric part.
const sequenceWidth = 6

var (
	// ErrUnknownKind is returned for kinds without a registered prefix.
	ErrUnknownKind = errors.New("numbering: unknown document kind")
	// ErrAllocationDegraded marks identifiers issued by the timestamp fallback.
	ErrAllocationDegraded = errors.New("numbering: sequence allocator unavailable, degraded identifier issued")
)

// Prefix returns the identifier prefix of k.
func (k Kind) Prefix() (string, error) {
	p, ok := prefixes[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	return p, nil
}

// SequenceName is the counter name used in the sequence store.
func (k Kind) SequenceName() string {
	return "seq:" + string(k)
}

// ParseKind validates a user-supplied kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, err := k.Prefix(); err != nil {
		return "", err
	}
	return k, nil
}

// SequenceAllocator atomically increments a named counter and returns the new value.
type SequenceAllocator interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// DegradedRecorder is notified whenever the fallback path is used.
type DegradedRecorder interface {
	RecordDegradedAllocation(kind string)
}

// Number is an issued identifier.
type Number struct {
	Value    string `json:"value"`
	Kind     Kind   `json:"kind"`
	Sequence int64  `json:"sequence,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

func (n Number) String() string { return n.Value }

// Generator formats sequences allocated by the store into identifiers.
type Generator struct {
	allocator SequenceAllocator
	logger    *slog.Logger
	recorder  DegradedRecorder
	now       func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock overrides the time source used for degraded identifiers.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithDegradedRecorder attaches telemetry for fallback allocations.
func WithDegradedRecorder(r DegradedRecorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// NewGenerator builds a Generator on top of allocator.
func NewGenerator(allocator SequenceAllocator, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{allocator: allocator, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next allocates the next identifier for kind. When the allocator fails the
// generator falls back to <PREFIX>-<epoch-millis> and flags the number as degraded.
func (g *Generator) Next(ctx context.Context, kind Kind) (Number, error) {
	prefix, err := kind.Prefix()
	if err != nil {
		return Number{}, err
	}
	if g.allocator != nil {
		seq, allocErr := g.allocator.NextSequence(ctx, kind.SequenceName())
		if allocErr == nil {
			return Number{Value: Format(prefix, seq), Kind: kind, Sequence: seq}, nil
		}
		err = allocErr
	} else {
		err = errors.New("no allocator configured")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Number{}, ctxErr
	}

	value := fmt.Sprintf("%s-%d", prefix, g.now().UnixMilli())
	g.logger.Warn("document number allocation degraded",
		slog.String("kind", string(kind)),
		slog.String("number", value),
		slog.Bool("degraded", true),
		slog.Any("error", errors.Join(ErrAllocationDegraded, err)),
	)
	if g.recorder != nil {
		g.recorder.RecordDegradedAllocation(string(kind))
	}
	return Number{Value: value, Kind: kind, Degraded: true}, nil
}

// Format renders a sequence with its prefix, e.g. Format("QUO", 42) == "QUO-000042".
func Format(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, sequenceWidth, seq)
}
