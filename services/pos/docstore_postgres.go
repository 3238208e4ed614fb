package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pgUniqueViolation = "23505"

// PostgresDocumentStore implementa DocumentStore com uma tabela JSONB por coleção
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentStore cria uma nova instância de PostgresDocumentStore
func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

func (s *PostgresDocumentStore) table(collection string) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	return pq.QuoteIdentifier(collection), nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, collection, id string) (*RawDocument, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	var doc RawDocument
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, rev, body FROM %s WHERE id = $1`, table), id,
	).Scan(&doc.ID, &doc.Rev, &doc.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *PostgresDocumentStore) Insert(ctx context.Context, collection string, doc RawDocument) (string, error) {
	table, err := s.table(collection)
	if err != nil {
		return "", err
	}
	rev := newRevision(doc.Rev)

	if doc.Rev == "" {
		_, err := s.pool.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, rev, body) VALUES ($1, $2, $3::jsonb)`, table),
			doc.ID, rev, string(doc.Body),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return "", fmt.Errorf("%s/%s already exists: %w", collection, doc.ID, ErrConflict)
			}
			return "", fmt.Errorf("failed to create %s/%s: %w", collection, doc.ID, err)
		}
		return rev, nil
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET rev = $1, body = $2::jsonb, updated_at = NOW() WHERE id = $3 AND rev = $4`, table),
		rev, string(doc.Body), doc.ID, doc.Rev,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", fmt.Errorf("%s/%s: %w", collection, doc.ID, ErrConflict)
		}
		return "", fmt.Errorf("failed to update %s/%s: %w", collection, doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return "", s.missOrConflict(ctx, table, collection, doc.ID)
	}
	return rev, nil
}

func (s *PostgresDocumentStore) Destroy(ctx context.Context, collection, id, rev string) error {
	table, err := s.table(collection)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND rev = $2`, table), id, rev,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, table, collection, id)
	}
	return nil
}

// missOrConflict distingue documento inexistente de revisão desatualizada
func (s *PostgresDocumentStore) missOrConflict(ctx context.Context, table, collection, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table), id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	if !exists {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
}

func (s *PostgresDocumentStore) Find(ctx context.Context, collection string, selector Selector, limit int) ([]RawDocument, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}

	filter := []byte("{}")
	if len(selector) > 0 {
		if filter, err = json.Marshal(selector); err != nil {
			return nil, fmt.Errorf("failed to encode selector: %w", err)
		}
	}

	query := fmt.Sprintf(`SELECT id, rev, body FROM %s WHERE body @> $1::jsonb ORDER BY seq`, table)
	args := []any{string(filter)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]RawDocument, 0)
	for rows.Next() {
		var doc RawDocument
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresDocumentStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func initDB(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configura o pool de conexões
	config.MaxConns = cfg.MaxConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Aguarda o banco ficar disponível
	for i := 0; i < cfg.ConnectAttempts; i++ {
		if err := pool.Ping(ctx); err == nil {
			logger.Info("✅ Connected to document database with connection pool", zap.String("host", cfg.Host))
			return pool, nil
		}
		logger.Info("⏳ Waiting for database...", zap.Int("attempt", i+1), zap.Int("max", cfg.ConnectAttempts))
		time.Sleep(1 * time.Second)
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts", cfg.ConnectAttempts)
}

// runMigrations aplica as migrações embutidas usando o driver lib/pq
func runMigrations(cfg PostgresConfig) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}
