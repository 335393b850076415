package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain/roles"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/observability/metrics"
	database "github.com/FACorreiaa/citcs-portal/internal/db"
)

// ListOptions narrows a listing. A zero Limit means no limit.
type ListOptions struct {
	FeaturedOnly bool
	Limit        uint64
}

type Repo interface {
	List(ctx context.Context, entity models.Entity, opts ListOptions) ([]models.Record, error)
	Get(ctx context.Context, entity models.Entity, id string) (*models.Record, error)
	Count(ctx context.Context, entity models.Entity) (int64, error)
	// Insert, Update and Delete require actorID to hold admin or super_admin.
	Insert(ctx context.Context, actorID string, entity models.Entity, in models.RecordInput) (*models.Record, error)
	Update(ctx context.Context, actorID string, entity models.Entity, id string, in models.RecordInput) (*models.Record, error)
	Delete(ctx context.Context, actorID string, entity models.Entity, id string) error
	// AuthorizeWriter fails with ErrForbidden unless actorID may write content.
	AuthorizeWriter(ctx context.Context, actorID string) error
}

var recordColumns = []string{
	"id::text", "title", "summary", "description", "image_url", "is_featured", "attributes", "created_at", "updated_at",
}

var writers = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}

type PostgresContentRepo struct {
	logger *zap.Logger
	pgpool database.Pool
	psql   sq.StatementBuilderType
}

func NewPostgresContentRepo(pgpool database.Pool, logger *zap.Logger) *PostgresContentRepo {
	return &PostgresContentRepo{
		logger: logger,
		pgpool: pgpool,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// table maps an entity to its table. Only known entities are accepted, so
// table names never come from request input.
func table(entity models.Entity) (string, error) {
	if _, ok := models.LookupEntity(entity); !ok {
		return "", fmt.Errorf("unknown entity %q: %w", entity, models.ErrBadRequest)
	}
	return string(entity), nil
}

func (r *PostgresContentRepo) tracer() trace.Tracer {
	return otel.Tracer("citcs-portal/content")
}

func (r *PostgresContentRepo) List(ctx context.Context, entity models.Entity, opts ListOptions) ([]models.Record, error) {
	ctx, span := r.tracer().Start(ctx, "PostgresContentRepo.List", trace.WithAttributes(
		attribute.String("entity", string(entity)),
	))
	defer span.End()

	t, err := table(entity)
	if err != nil {
		return nil, err
	}
	q := r.psql.Select(recordColumns...).From(t).OrderBy("created_at DESC", "id")
	if opts.FeaturedOnly {
		q = q.Where(sq.Eq{"is_featured": true})
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		queryFailed(ctx, "list", t)
		r.logger.Error("Error listing records", zap.String("entity", t), zap.Error(err))
		return nil, fmt.Errorf("database error listing %s: %w", t, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t, err)
	}
	span.SetAttributes(attribute.Int("records", len(out)))
	return out, nil
}

func (r *PostgresContentRepo) Get(ctx context.Context, entity models.Entity, id string) (*models.Record, error) {
	t, err := table(entity)
	if err != nil {
		return nil, err
	}
	query, args, err := r.psql.Select(recordColumns...).From(t).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	rec, err := scanRecord(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", t, id, models.ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (r *PostgresContentRepo) Count(ctx context.Context, entity models.Entity) (int64, error) {
	t, err := table(entity)
	if err != nil {
		return 0, err
	}
	query, args, err := r.psql.Select("count(*)").From(t).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		queryFailed(ctx, "count", t)
		return 0, fmt.Errorf("database error counting %s: %w", t, err)
	}
	return n, nil
}

func (r *PostgresContentRepo) Insert(ctx context.Context, actorID string, entity models.Entity, in models.RecordInput) (rec *models.Record, err error) {
	t, err := table(entity)
	if err != nil {
		return nil, err
	}
	attrs, err := encodeAttributes(in.Attributes)
	if err != nil {
		return nil, err
	}
	query, args, err := r.psql.Insert(t).
		Columns("title", "summary", "description", "image_url", "is_featured", "attributes").
		Values(in.Title, in.Summary, in.Description, in.ImageURL, in.IsFeatured, attrs).
		Suffix("RETURNING " + returning()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	err = r.write(ctx, "Insert", actorID, t, func(tx pgx.Tx) error {
		var scanErr error
		rec, scanErr = scanRecord(tx.QueryRow(ctx, query, args...))
		return scanErr
	})
	return rec, err
}

func (r *PostgresContentRepo) Update(ctx context.Context, actorID string, entity models.Entity, id string, in models.RecordInput) (rec *models.Record, err error) {
	t, err := table(entity)
	if err != nil {
		return nil, err
	}
	attrs, err := encodeAttributes(in.Attributes)
	if err != nil {
		return nil, err
	}
	query, args, err := r.psql.Update(t).
		SetMap(map[string]any{
			"title":       in.Title,
			"summary":     in.Summary,
			"description": in.Description,
			"image_url":   in.ImageURL,
			"is_featured": in.IsFeatured,
			"attributes":  attrs,
			"updated_at":  sq.Expr("now()"),
		}).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + returning()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	err = r.write(ctx, "Update", actorID, t, func(tx pgx.Tx) error {
		var scanErr error
		rec, scanErr = scanRecord(tx.QueryRow(ctx, query, args...))
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", t, id, models.ErrNotFound)
		}
		return scanErr
	})
	return rec, err
}

func (r *PostgresContentRepo) Delete(ctx context.Context, actorID string, entity models.Entity, id string) error {
	t, err := table(entity)
	if err != nil {
		return err
	}
	query, args, err := r.psql.Delete(t).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	return r.write(ctx, "Delete", actorID, t, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s %s: %w", t, id, models.ErrNotFound)
		}
		return nil
	})
}

func (r *PostgresContentRepo) AuthorizeWriter(ctx context.Context, actorID string) error {
	if err := roles.Authorize(ctx, r.pgpool, actorID, writers...); err != nil {
		r.logger.Warn("Rejected content upload", zap.String("actorID", actorID), zap.Error(err))
		return err
	}
	return nil
}

// write runs fn in a transaction after checking the actor may write content.
func (r *PostgresContentRepo) write(ctx context.Context, op, actorID, t string, fn func(pgx.Tx) error) (err error) {
	l := r.logger.With(zap.String("method", op), zap.String("entity", t), zap.String("actorID", actorID))
	ctx, span := r.tracer().Start(ctx, "PostgresContentRepo."+op, trace.WithAttributes(
		attribute.String("entity", t),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if !errors.Is(err, models.ErrForbidden) && !errors.Is(err, models.ErrNotFound) {
				queryFailed(ctx, strings.ToLower(op), t)
			}
		}
	}()

	if err = roles.Authorize(ctx, tx, actorID, writers...); err != nil {
		l.Warn("Rejected content write", zap.Error(err))
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", t, err)
	}
	l.Info("Content written")
	return nil
}

func queryFailed(ctx context.Context, op, t string) {
	metrics.Get().DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("table", t),
	))
}

func returning() string {
	return strings.Join(recordColumns, ", ")
}

func encodeAttributes(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return b, nil
}

func scanRecord(row pgx.Row) (*models.Record, error) {
	var (
		rec     models.Record
		attrs   []byte
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Summary, &rec.Description, &rec.ImageURL,
		&rec.IsFeatured, &attrs, &created, &updated); err != nil {
		return nil, err
	}
	rec.CreatedAt, rec.UpdatedAt = created, updated
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
