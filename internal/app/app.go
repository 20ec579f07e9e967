package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/solarmarket/creative-rotation/internal/attribution"
	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/solarmarket/creative-rotation/internal/eligibility"
	"github.com/solarmarket/creative-rotation/internal/frequency"
	"github.com/solarmarket/creative-rotation/internal/rotation"
	"go.uber.org/zap"
)

type App struct {
	logger   Logger
	storage  Storage
	capper   Capper
	producer Producer
	options  Options
}

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	GetInstance() *zap.Logger
}

type Storage interface {
	CreateCreative(ctx context.Context, c creative.Creative) (string, error)
	UpdateCreative(ctx context.Context, c creative.Creative) error
	GetCreative(ctx context.Context, id string) (creative.Creative, error)
	ListByPosition(ctx context.Context, position creative.Position) ([]creative.Creative, error)
	SetStatus(ctx context.Context, id string, status creative.Status) error
	IncrementImpression(ctx context.Context, creativeID string, eventID string) (int64, error)
	IncrementClick(ctx context.Context, creativeID string, eventID string) (int64, error)
	PurgeEvents(ctx context.Context, olderThan time.Time) error
}

type Capper interface {
	Allowed(ctx context.Context, v frequency.Visitor, cr creative.Creative, now time.Time) bool
	MarkShown(ctx context.Context, v frequency.Visitor, cr creative.Creative, now time.Time)
}

type Producer interface {
	Publish(body []byte) error
}

type Options struct {
	// Fallback is served when the creative store is unavailable; a broken
	// store must never surface as an error in a visitor-facing slot.
	Fallback *creative.Creative
	// DedupWindow bounds how long idempotency keys are remembered.
	DedupWindow time.Duration
}

// TelemetryEvent is the message published for every counted impression/click.
type TelemetryEvent struct {
	CreativeID string    `json:"creative_id"`
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

func New(logger Logger, storage Storage, capper Capper, producer Producer, options Options) *App {
	return &App{logger, storage, capper, producer, options}
}

// SelectCreatives resolves one slot request: load candidates for the
// position, run the eligibility predicate chain, drop frequency-capped
// creatives, order by priority and take the requested count. Only the
// creatives actually returned are marked as shown.
func (a *App) SelectCreatives(ctx context.Context, req eligibility.Request, v frequency.Visitor, now time.Time) []creative.Creative {
	items, err := a.storage.ListByPosition(ctx, req.Position)
	if err != nil {
		a.logger.Error("cannot load creatives for slot, serving fallback",
			"position", string(req.Position), "error", err.Error())

		if a.options.Fallback != nil {
			return []creative.Creative{*a.options.Fallback}
		}

		return []creative.Creative{}
	}

	eligible := eligibility.Filter(items, req, now, eligibility.Default()...)

	allowed := make([]creative.Creative, 0, len(eligible))
	for _, item := range eligible {
		if a.capper.Allowed(ctx, v, item, now) {
			allowed = append(allowed, item)
		}
	}

	picked := rotation.Pick(rotation.Order(allowed), req.Limit)

	for _, item := range picked {
		a.capper.MarkShown(ctx, v, item, now)
	}

	return picked
}

// RecordImpression counts one impression, at most once per event id.
func (a *App) RecordImpression(ctx context.Context, creativeID string, eventID string) (int64, error) {
	count, err := a.storage.IncrementImpression(ctx, creativeID, eventID)
	if err != nil {
		return 0, err
	}

	a.publish(creativeID, eventID, "impression")

	return count, nil
}

// RecordClick counts one click under the same idempotency rule and returns
// the attributed redirect URL. The redirect is built regardless of counter
// success: a telemetry failure must never block navigation.
func (a *App) RecordClick(ctx context.Context, creativeID string, eventID string) (string, int64, error) {
	c, err := a.storage.GetCreative(ctx, creativeID)
	if err != nil {
		return "", 0, err
	}

	redirect, err := attribution.RedirectURL(c.TargetURL, c.Attribution)
	if err != nil {
		// Target URLs are validated on write, so this should not happen.
		a.logger.Warn("cannot build redirect url", "creative_id", creativeID, "error", err.Error())
		redirect = c.TargetURL
	}

	count, err := a.storage.IncrementClick(ctx, creativeID, eventID)
	if err != nil {
		a.logger.Error("click count increment failed",
			"creative_id", creativeID, "event_id", eventID, "error", err.Error())

		return redirect, c.ClickCount, nil
	}

	a.publish(creativeID, eventID, "click")

	return redirect, count, nil
}

func (a *App) publish(creativeID, eventID, kind string) {
	if a.producer == nil {
		return
	}

	body, err := json.Marshal(TelemetryEvent{
		CreativeID: creativeID,
		EventID:    eventID,
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		a.logger.Warn("cannot encode telemetry event", "error", err.Error())

		return
	}

	if err := a.producer.Publish(body); err != nil {
		a.logger.Warn("cannot publish telemetry event", "creative_id", creativeID, "error", err.Error())
	}
}

func (a *App) CreateCreative(ctx context.Context, c creative.Creative) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	if c.Status == "" {
		c.Status = creative.StatusDraft
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if err := c.Validate(); err != nil {
		return "", err
	}

	return a.storage.CreateCreative(ctx, c)
}

func (a *App) UpdateCreative(ctx context.Context, c creative.Creative) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return a.storage.UpdateCreative(ctx, c)
}

func (a *App) GetCreative(ctx context.Context, id string) (creative.Creative, error) {
	return a.storage.GetCreative(ctx, id)
}

func (a *App) PauseCreative(ctx context.Context, id string) error {
	return a.storage.SetStatus(ctx, id, creative.StatusPaused)
}

func (a *App) ResumeCreative(ctx context.Context, id string) error {
	return a.storage.SetStatus(ctx, id, creative.StatusActive)
}

// PurgeExpiredEvents drops idempotency keys older than the dedup window.
func (a *App) PurgeExpiredEvents(ctx context.Context) error {
	return a.storage.PurgeEvents(ctx, time.Now().Add(-a.options.DedupWindow))
}

func (a *App) GetLogger() Logger {
	return a.logger
}

func (a *App) GetStorage() Storage {
	return a.storage
}
