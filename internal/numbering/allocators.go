package numbering

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// RowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGAllocator keeps counters in the document_sequences table. The upsert takes a
// row lock, so concurrent callers are serialised by PostgreSQL.
type PGAllocator struct {
	db RowQuerier
}

// NewPGAllocator constructs a PostgreSQL backed allocator.
func NewPGAllocator(db RowQuerier) *PGAllocator {
	return &PGAllocator{db: db}
}

const nextSequenceSQL = `INSERT INTO document_sequences (name, value, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (name) DO UPDATE SET value = document_sequences.value + 1, updated_at = NOW()
RETURNING value`

// NextSequence implements SequenceAllocator.
func (a *PGAllocator) NextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	if err := a.db.QueryRow(ctx, nextSequenceSQL, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("numbering: pg next sequence %s: %w", name, err)
	}
	return value, nil
}

// RedisAllocator keeps counters as Redis integers advanced with INCR.
type RedisAllocator struct {
	client    redis.Cmdable
	keyPrefix string
}

// DefaultKeyPrefix namespaces sequence counters in Redis.
const DefaultKeyPrefix = "agency:numbering"

// NewRedisAllocator constructs a Redis backed allocator. Keys are the prefix
// and the sequence name joined by a colon, e.g. agency:numbering:seq:invoice.
func NewRedisAllocator(client redis.Cmdable, keyPrefix string) *RedisAllocator {
	keyPrefix = strings.TrimRight(keyPrefix, ":")
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisAllocator{client: client, keyPrefix: keyPrefix + ":"}
}

// NextSequence implements SequenceAllocator.
func (a *RedisAllocator) NextSequence(ctx context.Context, name string) (int64, error) {
	value, err := a.client.Incr(ctx, a.keyPrefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("numbering: redis incr %s: %w", name, err)
	}
	return value, nil
}
