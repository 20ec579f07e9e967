package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/solarmarket/creative-rotation/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS creatives (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	image_url        TEXT NOT NULL DEFAULT '',
	target_url       TEXT NOT NULL,
	background_color TEXT NOT NULL DEFAULT '',
	text_color       TEXT NOT NULL DEFAULT '',
	slot_position    TEXT NOT NULL,
	device_target    TEXT NOT NULL,
	category_ids     TEXT[] NOT NULL DEFAULT '{}',
	provider_id      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	starts_at        TIMESTAMPTZ NOT NULL,
	ends_at          TIMESTAMPTZ,
	priority         INT NOT NULL DEFAULT 0,
	display_policy   TEXT NOT NULL,
	impression_count BIGINT NOT NULL DEFAULT 0,
	click_count      BIGINT NOT NULL DEFAULT 0,
	utm_source       TEXT NOT NULL DEFAULT '',
	utm_medium       TEXT NOT NULL DEFAULT '',
	utm_campaign     TEXT NOT NULL DEFAULT '',
	utm_term         TEXT NOT NULL DEFAULT '',
	utm_content      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_creatives_position ON creatives (slot_position);

CREATE TABLE IF NOT EXISTS creative_events (
	creative_id TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (creative_id, event_id)
);
CREATE INDEX IF NOT EXISTS idx_creative_events_created ON creative_events (created_at);
`

type Storage struct {
	db *sqlx.DB
}

func New(ctx context.Context, connectionString string) (*Storage, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("cannot open db, %w", err)
	}

	return &Storage{db}, nil
}

func (s *Storage) Connect(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot connect to db, %w", err)
	}

	return nil
}

func (s *Storage) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("cannot init db schema, %w", err)
	}

	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) CreateCreative(ctx context.Context, c creative.Creative) (string, error) {
	row := storage.RowFromCreative(c)

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO creatives
		(id, title, image_url, target_url, background_color, text_color,
		 slot_position, device_target, category_ids, provider_id, status,
		 starts_at, ends_at, priority, display_policy,
		 utm_source, utm_medium, utm_campaign, utm_term, utm_content, created_at)
		VALUES
		(:id, :title, :image_url, :target_url, :background_color, :text_color,
		 :slot_position, :device_target, :category_ids, :provider_id, :status,
		 :starts_at, :ends_at, :priority, :display_policy,
		 :utm_source, :utm_medium, :utm_campaign, :utm_term, :utm_content, :created_at)`, row)
	if err != nil {
		return "", fmt.Errorf("cannot create creative, %w", err)
	}

	return row.ID, nil
}

func (s *Storage) UpdateCreative(ctx context.Context, c creative.Creative) error {
	row := storage.RowFromCreative(c)

	res, err := s.db.NamedExecContext(ctx, `UPDATE creatives SET
		title=:title, image_url=:image_url, target_url=:target_url,
		background_color=:background_color, text_color=:text_color,
		slot_position=:slot_position, device_target=:device_target,
		category_ids=:category_ids, provider_id=:provider_id, status=:status,
		starts_at=:starts_at, ends_at=:ends_at, priority=:priority,
		display_policy=:display_policy, utm_source=:utm_source,
		utm_medium=:utm_medium, utm_campaign=:utm_campaign,
		utm_term=:utm_term, utm_content=:utm_content
		WHERE id=:id`, row)
	if err != nil {
		return fmt.Errorf("cannot update creative, %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Storage) GetCreative(ctx context.Context, id string) (creative.Creative, error) {
	var row storage.CreativeRow

	err := s.db.GetContext(ctx, &row, `SELECT * FROM creatives WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return creative.Creative{}, storage.ErrNotFound
	}

	if err != nil {
		return creative.Creative{}, fmt.Errorf("cannot get creative, %w", err)
	}

	return row.Creative(), nil
}

func (s *Storage) ListByPosition(ctx context.Context, position creative.Position) ([]creative.Creative, error) {
	var rows []storage.CreativeRow

	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM creatives WHERE slot_position=$1 ORDER BY created_at`, string(position))
	if err != nil {
		return nil, fmt.Errorf("cannot list creatives, %w", err)
	}

	items := make([]creative.Creative, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Creative())
	}

	return items, nil
}

func (s *Storage) SetStatus(ctx context.Context, id string, status creative.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE creatives SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return fmt.Errorf("cannot set creative status, %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Storage) IncrementImpression(ctx context.Context, creativeID string, eventID string) (int64, error) {
	return s.increment(ctx, creativeID, eventID, storage.EventImpression, "impression_count")
}

func (s *Storage) IncrementClick(ctx context.Context, creativeID string, eventID string) (int64, error) {
	return s.increment(ctx, creativeID, eventID, storage.EventClick, "click_count")
}

// increment counts one telemetry event exactly once per (creative, event)
// pair. The dedup insert and the counter update share a transaction, so
// concurrent retries of the same event cannot double-count: whichever
// insert commits first wins, the rest see zero affected rows.
func (s *Storage) increment(ctx context.Context, creativeID, eventID string, kind storage.EventKind, column string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot begin tx, %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO creative_events (creative_id, event_id, kind) VALUES ($1, $2, $3)
		 ON CONFLICT (creative_id, event_id) DO NOTHING`,
		creativeID, eventID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("cannot record event, %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cannot check event insert, %w", err)
	}

	var count int64

	if inserted == 0 {
		// Duplicate idempotency key: absorb silently, report the current count.
		err := s.db.GetContext(ctx, &count,
			fmt.Sprintf(`SELECT %s FROM creatives WHERE id=$1`, column), creativeID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}

		if err != nil {
			return 0, fmt.Errorf("cannot read counter, %w", err)
		}

		return count, nil
	}

	err = tx.GetContext(ctx, &count,
		fmt.Sprintf(`UPDATE creatives SET %s = %s + 1 WHERE id=$1 RETURNING %s`, column, column, column),
		creativeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("cannot increment counter, %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cannot commit increment, %w", err)
	}

	return count, nil
}

// PurgeEvents drops dedup rows older than the retention window.
func (s *Storage) PurgeEvents(ctx context.Context, olderThan time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM creative_events WHERE created_at < $1`, olderThan)
	if err != nil {
		return fmt.Errorf("cannot purge events, %w", err)
	}

	return nil
}
