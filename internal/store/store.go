package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/pkg/model"
)

var (
	// ErrNoRun means no refresh has completed within the cache TTL.
	ErrNoRun = errors.New("store: no completed run")
	// ErrNotFound means no tender exists for the notice identifier.
	ErrNotFound = errors.New("store: tender not found")
)

const (
	latestRunKey  = "tender:run:latest"
	tenderKeyFmt  = "tender:item:%s"
	defaultTTL    = 24 * time.Hour
	upsertTimeout = 30 * time.Second
)

// Store caches the latest run in Redis and persists tenders to Postgres.
type Store interface {
	SaveRun(ctx context.Context, run *model.RunResult) error
	LatestRun(ctx context.Context) (*model.RunResult, error)
	GetTender(ctx context.Context, noticeID string) (*model.Tender, error)
	UpsertTenders(ctx context.Context, run *model.RunResult) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// RedisConfig selects the cache instance and how long a run stays served.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	TTL      time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store. Postgres is
// optional: with an empty pgURL tenders are only cached.
func NewHybrid(rc RedisConfig, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		DB:       rc.DB,
		Password: rc.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return newHybrid(rdb, pgPool, rc.TTL, logger), nil
}

func newHybrid(rdb *redis.Client, pg *pgxpool.Pool, ttl time.Duration, logger *zap.Logger) *HybridStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, PG: pg, ttl: ttl, logger: logger}
}

// SaveRun caches the run and each of its tenders in one transaction.
func (s *HybridStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	if run == nil {
		return errors.New("store: nil run")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}
	items := make(map[string][]byte, len(run.Tenders))
	for _, t := range run.Tenders {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode tender %s: %w", t.NoticeIdentifier, err)
		}
		items[fmt.Sprintf(tenderKeyFmt, t.NoticeIdentifier)] = b
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, latestRunKey, data, s.ttl)
		for key, b := range items {
			pipe.Set(ctx, key, b, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("store.redis.save_run_failed", zap.String("run_id", run.RunID), zap.Error(err))
		return fmt.Errorf("cache run %s: %w", run.RunID, err)
	}
	s.logger.Debug("store.redis.run_saved",
		zap.String("run_id", run.RunID),
		zap.Int("tenders", len(run.Tenders)),
		zap.Int("bytes", len(data)))
	return nil
}

func (s *HybridStore) LatestRun(ctx context.Context) (*model.RunResult, error) {
	var run model.RunResult
	if err := s.getJSON(ctx, latestRunKey, &run); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRun
		}
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	return &run, nil
}

// GetTender reads the cache first and falls back to Postgres.
func (s *HybridStore) GetTender(ctx context.Context, noticeID string) (*model.Tender, error) {
	var t model.Tender
	err := s.getJSON(ctx, fmt.Sprintf(tenderKeyFmt, noticeID), &t)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load tender %s: %w", noticeID, err)
	}
	if s.PG == nil {
		return nil, ErrNotFound
	}

	var payload []byte
	err = s.PG.QueryRow(ctx, `
		SELECT payload
		FROM procurement.tender
		WHERE notice_id = $1
		LIMIT 1;
	`, noticeID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTender scan failed: %w", err)
	}
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("decode tender %s: %w", noticeID, err)
	}
	return &t, nil
}

// UpsertTenders records the run and upserts every tender in one batch. It is
// a no-op without Postgres.
func (s *HybridStore) UpsertTenders(ctx context.Context, run *model.RunResult) error {
	if s.PG == nil || run == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, upsertTimeout)
	defer cancel()

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO procurement.refresh_run (run_id, generated_at, query, available, total, stats)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (run_id) DO NOTHING;
	`, run.RunID, run.GeneratedAt, run.Query, run.Available, run.Stats.Total, string(stats))

	for _, t := range run.Tenders {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode tender %s: %w", t.NoticeIdentifier, err)
		}
		batch.Queue(`
			INSERT INTO procurement.tender (
				notice_id, buyer_country, urgency, deadline, value_reference,
				total_lots, payload, last_run_id, updated_at
			)
			VALUES ($1, $2, $3, $4::timestamptz, $5, $6, $7::jsonb, $8, NOW())
			ON CONFLICT (notice_id)
			DO UPDATE SET
				buyer_country = EXCLUDED.buyer_country,
				urgency = EXCLUDED.urgency,
				deadline = EXCLUDED.deadline,
				value_reference = EXCLUDED.value_reference,
				total_lots = EXCLUDED.total_lots,
				payload = EXCLUDED.payload,
				last_run_id = EXCLUDED.last_run_id,
				updated_at = EXCLUDED.updated_at;
		`, t.NoticeIdentifier, t.Buyer.Country, t.Dates.UrgencyLevel, t.Dates.DeadlineMain,
			t.Financial.ValueReference, t.Strategic.TotalLots, string(payload), run.RunID)
	}

	br := s.PG.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			s.logger.Error("store.pg.upsert_failed",
				zap.String("run_id", run.RunID),
				zap.Int("statement", i),
				zap.Error(err))
			return fmt.Errorf("upsert run %s: %w", run.RunID, err)
		}
	}
	return nil
}

func (s *HybridStore) getJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
