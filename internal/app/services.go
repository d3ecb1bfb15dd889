package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hexaforge/agency-office/internal/documents"
	"github.com/hexaforge/agency-office/internal/documents/render"
	"github.com/hexaforge/agency-office/internal/numbering"
	"github.com/hexaforge/agency-office/internal/observability"
)

// Services are the domain services shared by the API server and the worker.
type Services struct {
	Numbers   *numbering.Generator
	Documents *documents.Service
	Renderer  *render.Renderer
}

// NewSequenceAllocator returns the allocator selected by SEQUENCE_BACKEND.
func NewSequenceAllocator(cfg *Config, pool *pgxpool.Pool, rdb redis.Cmdable) (numbering.SequenceAllocator, error) {
	switch cfg.SequenceBackend {
	case SequenceRedis:
		if rdb == nil {
			return nil, fmt.Errorf("sequence backend %q requires a redis client", SequenceRedis)
		}
		return numbering.NewRedisAllocator(rdb, cfg.SequenceKeyPrefix), nil
	case SequencePostgres, "":
		return numbering.NewPGAllocator(pool), nil
	}
	return nil, fmt.Errorf("unknown sequence backend %q", cfg.SequenceBackend)
}

// NewServices wires the numbering generator, document service and renderer.
func NewServices(cfg *Config, pool *pgxpool.Pool, rdb redis.Cmdable, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	allocator, err := NewSequenceAllocator(cfg, pool, rdb)
	if err != nil {
		return nil, err
	}
	numbers := numbering.NewGenerator(allocator, logger, numbering.WithDegradedRecorder(metrics))

	store := documents.NewRepository(pool)
	service := documents.NewService(store, numbers, logger, documents.WithPaymentTerms(cfg.InvoicePaymentTerms))

	opts := []render.Option{render.WithCompanyName(cfg.CompanyName)}
	if cfg.PDFFontRegular != "" {
		fonts, err := render.LoadFonts(cfg.PDFFontRegular, cfg.PDFFontBold)
		if err != nil {
			return nil, fmt.Errorf("load pdf fonts: %w", err)
		}
		opts = append(opts, fonts)
	}

	return &Services{
		Numbers:   numbers,
		Documents: service,
		Renderer:  render.NewRenderer(opts...),
	}, nil
}
