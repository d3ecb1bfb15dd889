package numbering

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type failingAllocator struct{ err error }

func (f failingAllocator) NextSequence(context.Context, string) (int64, error) { return 0, f.err }

type countingRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (c *countingRecorder) RecordDegradedAllocation(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

func newRedisAllocator(t *testing.T) *RedisAllocator {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAllocator(client, "")
}

func TestRedisAllocatorKeys(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "agency:numbering:seq:quotation"},
		{"agency", "agency:seq:quotation"},
		{"agency:numbering:", "agency:numbering:seq:quotation"},
		{"tenant-7:", "tenant-7:seq:quotation"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })

			_, err := NewRedisAllocator(client, tt.prefix).NextSequence(context.Background(), KindQuotation.SequenceName())
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, mr.Keys())
			got, err := mr.Get(tt.want)
			require.NoError(t, err)
			assert.Equal(t, "1", got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "QUO-000042", Format("QUO", 42))
	assert.Equal(t, "INV-000001", Format("INV", 1))
	assert.Equal(t, "PRO-1234567", Format("PRO", 1234567))
}

func TestGeneratorSequential(t *testing.T) {
	gen := NewGenerator(newRedisAllocator(t), slog.Default())
	ctx := context.Background()

	first, err := gen.Next(ctx, KindQuotation)
	require.NoError(t, err)
	second, err := gen.Next(ctx, KindQuotation)
	require.NoError(t, err)
	invoice, err := gen.Next(ctx, KindInvoice)
	require.NoError(t, err)
	employee, err := gen.Next(ctx, KindEmployee)
	require.NoError(t, err)

	assert.Equal(t, "QUO-000001", first.Value)
	assert.Equal(t, "QUO-000002", second.Value)
	assert.Equal(t, "INV-000001", invoice.Value)
	assert.Equal(t, "EMP-000001", employee.Value)
	assert.False(t, first.Degraded)
}

func TestGeneratorConcurrentUniqueness(t *testing.T) {
	gen := NewGenerator(newRedisAllocator(t), slog.Default())
	const n = 64

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			num, err := gen.Next(ctx, KindInvoice)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			seen[num.Value] = struct{}{}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, seen, n)
}

func TestGeneratorDegradedFallback(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	recorder := &countingRecorder{}
	fixed := time.UnixMilli(1717171717171)

	gen := NewGenerator(failingAllocator{err: errors.New("connection refused")}, logger,
		WithClock(func() time.Time { return fixed }),
		WithDegradedRecorder(recorder),
	)

	num, err := gen.Next(context.Background(), KindProposal)
	require.NoError(t, err)
	assert.Equal(t, "PRO-1717171717171", num.Value)
	assert.True(t, num.Degraded)
	assert.Equal(t, []string{"proposal"}, recorder.kinds)
	assert.Contains(t, logs.String(), `"degraded":true`)
	assert.Contains(t, logs.String(), "connection refused")
}

func TestGeneratorCancelledContextDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := NewGenerator(failingAllocator{err: context.Canceled}, slog.Default())

	_, err := gen.Next(ctx, KindInvoice)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorUnknownKind(t *testing.T) {
	gen := NewGenerator(newRedisAllocator(t), slog.Default())
	_, err := gen.Next(context.Background(), Kind("receipt"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = ParseKind("receipt")
	assert.ErrorIs(t, err, ErrUnknownKind)
	k, err := ParseKind("employee")
	require.NoError(t, err)
	assert.Equal(t, KindEmployee, k)
}

type fakeRow struct {
	value int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.value
	return nil
}

type fakeQuerier struct {
	sql  string
	args []any
	row  fakeRow
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestPGAllocator(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{value: 7}}
	alloc := NewPGAllocator(q)

	v, err := alloc.NextSequence(context.Background(), KindQuotation.SequenceName())
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
	assert.Contains(t, q.sql, "ON CONFLICT (name) DO UPDATE")
	assert.Equal(t, []any{"seq:quotation"}, q.args)

	q.row = fakeRow{err: errors.New("db down")}
	_, err = alloc.NextSequence(context.Background(), "seq:invoice")
	assert.ErrorContains(t, err, "db down")
}
