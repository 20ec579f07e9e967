package storage

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/solarmarket/creative-rotation/internal/creative"
)

var ErrNotFound = errors.New("creative not found")

type EventKind string

const (
	EventImpression EventKind = "impression"
	EventClick      EventKind = "click"
)

type CreativeRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	ImageURL        string         `db:"image_url"`
	TargetURL       string         `db:"target_url"`
	BackgroundColor string         `db:"background_color"`
	TextColor       string         `db:"text_color"`
	SlotPosition    string         `db:"slot_position"`
	DeviceTarget    string         `db:"device_target"`
	CategoryIDs     pq.StringArray `db:"category_ids"`
	ProviderID      string         `db:"provider_id"`
	Status          string         `db:"status"`
	StartsAt        time.Time      `db:"starts_at"`
	EndsAt          *time.Time     `db:"ends_at"`
	Priority        int            `db:"priority"`
	DisplayPolicy   string         `db:"display_policy"`
	ImpressionCount int64          `db:"impression_count"`
	ClickCount      int64          `db:"click_count"`
	UTMSource       string         `db:"utm_source"`
	UTMMedium       string         `db:"utm_medium"`
	UTMCampaign     string         `db:"utm_campaign"`
	UTMTerm         string         `db:"utm_term"`
	UTMContent      string         `db:"utm_content"`
	CreatedAt       time.Time      `db:"created_at"`
}

type EventRow struct {
	CreativeID string    `db:"creative_id"`
	EventID    string    `db:"event_id"`
	Kind       string    `db:"kind"`
	CreatedAt  time.Time `db:"created_at"`
}

func RowFromCreative(c creative.Creative) CreativeRow {
	return CreativeRow{
		ID:              c.ID,
		Title:           c.Title,
		ImageURL:        c.ImageURL,
		TargetURL:       c.TargetURL,
		BackgroundColor: c.BackgroundColor,
		TextColor:       c.TextColor,
		SlotPosition:    string(c.SlotPosition),
		DeviceTarget:    string(c.DeviceTarget),
		CategoryIDs:     pq.StringArray(c.CategoryIDs),
		ProviderID:      c.ProviderID,
		Status:          string(c.Status),
		StartsAt:        c.StartsAt,
		EndsAt:          c.EndsAt,
		Priority:        c.Priority,
		DisplayPolicy:   string(c.DisplayPolicy),
		ImpressionCount: c.ImpressionCount,
		ClickCount:      c.ClickCount,
		UTMSource:       c.Attribution.Source,
		UTMMedium:       c.Attribution.Medium,
		UTMCampaign:     c.Attribution.Campaign,
		UTMTerm:         c.Attribution.Term,
		UTMContent:      c.Attribution.Content,
		CreatedAt:       c.CreatedAt,
	}
}

func (r CreativeRow) Creative() creative.Creative {
	return creative.Creative{
		ID:              r.ID,
		Title:           r.Title,
		ImageURL:        r.ImageURL,
		TargetURL:       r.TargetURL,
		BackgroundColor: r.BackgroundColor,
		TextColor:       r.TextColor,
		SlotPosition:    creative.Position(r.SlotPosition),
		DeviceTarget:    creative.Device(r.DeviceTarget),
		CategoryIDs:     []string(r.CategoryIDs),
		ProviderID:      r.ProviderID,
		Status:          creative.Status(r.Status),
		StartsAt:        r.StartsAt,
		EndsAt:          r.EndsAt,
		Priority:        r.Priority,
		DisplayPolicy:   creative.DisplayPolicy(r.DisplayPolicy),
		ImpressionCount: r.ImpressionCount,
		ClickCount:      r.ClickCount,
		Attribution: creative.Attribution{
			Source:   r.UTMSource,
			Medium:   r.UTMMedium,
			Campaign: r.UTMCampaign,
			Term:     r.UTMTerm,
			Content:  r.UTMContent,
		},
		CreatedAt: r.CreatedAt,
	}
}
