package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/solarmarket/creative-rotation/internal/eligibility"
	"github.com/solarmarket/creative-rotation/internal/frequency"
	memorystorage "github.com/solarmarket/creative-rotation/internal/storage/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testLogger struct{}

func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) GetInstance() *zap.Logger     { return zap.NewNop() }

type recordingCapper struct {
	shown []string
}

func (c *recordingCapper) Allowed(context.Context, frequency.Visitor, creative.Creative, time.Time) bool {
	return true
}

func (c *recordingCapper) MarkShown(_ context.Context, _ frequency.Visitor, cr creative.Creative, _ time.Time) {
	c.shown = append(c.shown, cr.ID)
}

type recordingProducer struct {
	published [][]byte
	err       error
}

func (p *recordingProducer) Publish(body []byte) error {
	if p.err != nil {
		return p.err
	}

	p.published = append(p.published, body)

	return nil
}

type brokenStorage struct {
	Storage
}

func (brokenStorage) ListByPosition(context.Context, creative.Position) ([]creative.Creative, error) {
	return nil, errors.New("db is down")
}

type failingIncrements struct {
	Storage
}

func (s failingIncrements) IncrementClick(context.Context, string, string) (int64, error) {
	return 0, errors.New("db is down")
}

func (s failingIncrements) IncrementImpression(context.Context, string, string) (int64, error) {
	return 0, errors.New("db is down")
}

func seedCreative(t *testing.T, a *App, id string, priority int, policy creative.DisplayPolicy) {
	t.Helper()

	_, err := a.CreateCreative(context.Background(), creative.Creative{
		ID:            id,
		Title:         id,
		TargetURL:     "https://example.com/" + id,
		SlotPosition:  creative.PositionHeader,
		DeviceTarget:  creative.DeviceAll,
		Status:        creative.StatusActive,
		DisplayPolicy: policy,
		Priority:      priority,
		StartsAt:      time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
}

func newTestApp(capper Capper, producer Producer) *App {
	return New(testLogger{}, memorystorage.New(), capper, producer, Options{DedupWindow: time.Hour})
}

func TestSelectCreatives(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	visitor := frequency.Visitor{SessionID: "sess-1", VisitorID: "vis-1"}
	req := eligibility.Request{Position: creative.PositionHeader, Device: creative.DeviceDesktop, Limit: 1}

	t.Run("orders by priority and marks only the displayed creative", func(t *testing.T) {
		capper := &recordingCapper{}
		a := newTestApp(capper, nil)

		seedCreative(t, a, "low", 3, creative.PolicyOncePerSession)
		seedCreative(t, a, "top", 1, creative.PolicyOncePerSession)
		seedCreative(t, a, "mid", 2, creative.PolicyOncePerSession)

		got := a.SelectCreatives(ctx, req, visitor, now)

		require.Len(t, got, 1)
		require.Equal(t, "top", got[0].ID)
		require.Equal(t, []string{"top"}, capper.shown, "losing creatives must not consume their cap")
	})

	t.Run("carousel request returns the full ordered set", func(t *testing.T) {
		capper := &recordingCapper{}
		a := newTestApp(capper, nil)

		seedCreative(t, a, "low", 3, creative.PolicyAlways)
		seedCreative(t, a, "top", 1, creative.PolicyAlways)
		seedCreative(t, a, "mid", 2, creative.PolicyAlways)

		carousel := req
		carousel.Limit = 10

		got := a.SelectCreatives(ctx, carousel, visitor, now)

		require.Len(t, got, 3)
		require.Equal(t, "top", got[0].ID)
		require.Equal(t, "mid", got[1].ID)
		require.Equal(t, "low", got[2].ID)
	})

	t.Run("capped creative gives way to the next one", func(t *testing.T) {
		a := New(testLogger{}, memorystorage.New(),
			frequency.New(frequency.NewMemoryStore(time.Hour), testLogger{}), nil, Options{})

		seedCreative(t, a, "first", 1, creative.PolicyOncePerSession)
		seedCreative(t, a, "second", 2, creative.PolicyAlways)

		got := a.SelectCreatives(ctx, req, visitor, now)
		require.Len(t, got, 1)
		require.Equal(t, "first", got[0].ID)

		got = a.SelectCreatives(ctx, req, visitor, now)
		require.Len(t, got, 1)
		require.Equal(t, "second", got[0].ID, "session-capped creative is excluded on the second request")
	})

	t.Run("empty result when nothing is eligible", func(t *testing.T) {
		a := newTestApp(&recordingCapper{}, nil)

		got := a.SelectCreatives(ctx, req, visitor, now)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("storage failure serves the fallback", func(t *testing.T) {
		fallback := &creative.Creative{ID: "fallback", TargetURL: "https://example.com/default"}
		a := New(testLogger{}, brokenStorage{}, &recordingCapper{}, nil, Options{Fallback: fallback})

		got := a.SelectCreatives(ctx, req, visitor, now)
		require.Len(t, got, 1)
		require.Equal(t, "fallback", got[0].ID)
	})

	t.Run("storage failure without fallback serves nothing", func(t *testing.T) {
		a := New(testLogger{}, brokenStorage{}, &recordingCapper{}, nil, Options{})

		got := a.SelectCreatives(ctx, req, visitor, now)
		require.Empty(t, got)
	})
}

func TestRecordImpression(t *testing.T) {
	ctx := context.Background()
	producer := &recordingProducer{}
	a := newTestApp(&recordingCapper{}, producer)
	seedCreative(t, a, "a", 1, creative.PolicyAlways)

	count, err := a.RecordImpression(ctx, "a", "evt-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Len(t, producer.published, 1)

	t.Run("duplicate event id is absorbed", func(t *testing.T) {
		count, err := a.RecordImpression(ctx, "a", "evt-1")
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	})

	t.Run("publish failure does not fail the record", func(t *testing.T) {
		producer.err = errors.New("amqp is down")

		count, err := a.RecordImpression(ctx, "a", "evt-2")
		require.NoError(t, err)
		require.Equal(t, int64(2), count)
	})
}

func TestRecordClick(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the attributed redirect url", func(t *testing.T) {
		a := newTestApp(&recordingCapper{}, nil)

		_, err := a.CreateCreative(ctx, creative.Creative{
			ID:            "a",
			TargetURL:     "https://t.co",
			SlotPosition:  creative.PositionHeader,
			DeviceTarget:  creative.DeviceAll,
			Status:        creative.StatusActive,
			DisplayPolicy: creative.PolicyAlways,
			StartsAt:      time.Now().Add(-time.Hour),
			Attribution:   creative.Attribution{Source: "x"},
		})
		require.NoError(t, err)

		redirect, count, err := a.RecordClick(ctx, "a", "evt-1")
		require.NoError(t, err)
		require.Equal(t, "https://t.co?utm_source=x", redirect)
		require.Equal(t, int64(1), count)
	})

	t.Run("counter failure still returns the redirect", func(t *testing.T) {
		inner := memorystorage.New()
		a := New(testLogger{}, failingIncrements{inner}, &recordingCapper{}, nil, Options{})

		_, err := inner.CreateCreative(ctx, creative.Creative{
			ID:          "a",
			TargetURL:   "https://t.co",
			Attribution: creative.Attribution{Source: "x"},
		})
		require.NoError(t, err)

		redirect, _, err := a.RecordClick(ctx, "a", "evt-1")
		require.NoError(t, err, "telemetry failure must not block navigation")
		require.Equal(t, "https://t.co?utm_source=x", redirect)
	})
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(&recordingCapper{}, nil)

	t.Run("create validates and fills defaults", func(t *testing.T) {
		id, err := a.CreateCreative(ctx, creative.Creative{
			TargetURL:     "https://example.com",
			SlotPosition:  creative.PositionHero,
			DeviceTarget:  creative.DeviceAll,
			DisplayPolicy: creative.PolicyAlways,
			StartsAt:      time.Now(),
		})
		require.NoError(t, err)
		require.NotEmpty(t, id, "id is generated when omitted")

		c, err := a.GetCreative(ctx, id)
		require.NoError(t, err)
		require.Equal(t, creative.StatusDraft, c.Status, "new creatives start as drafts")
	})

	t.Run("create rejects a broken window", func(t *testing.T) {
		starts := time.Now()
		ends := starts.Add(-time.Hour)

		_, err := a.CreateCreative(ctx, creative.Creative{
			TargetURL:     "https://example.com",
			SlotPosition:  creative.PositionHero,
			DeviceTarget:  creative.DeviceAll,
			DisplayPolicy: creative.PolicyAlways,
			StartsAt:      starts,
			EndsAt:        &ends,
		})
		require.ErrorIs(t, err, creative.ErrInvalidWindow)
	})

	t.Run("pause and resume", func(t *testing.T) {
		seedCreative(t, a, "p", 1, creative.PolicyAlways)

		require.NoError(t, a.PauseCreative(ctx, "p"))

		c, err := a.GetCreative(ctx, "p")
		require.NoError(t, err)
		require.Equal(t, creative.StatusPaused, c.Status)

		require.NoError(t, a.ResumeCreative(ctx, "p"))

		c, err = a.GetCreative(ctx, "p")
		require.NoError(t, err)
		require.Equal(t, creative.StatusActive, c.Status)
	})
}
