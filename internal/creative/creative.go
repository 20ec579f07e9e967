package creative

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

type Position string

const (
	PositionHeader  Position = "header"
	PositionSidebar Position = "sidebar"
	PositionFooter  Position = "footer"
	PositionPopup   Position = "popup"
	PositionHero    Position = "hero"
)

type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceAll     Device = "all"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

type DisplayPolicy string

const (
	PolicyAlways         DisplayPolicy = "always"
	PolicyOncePerSession DisplayPolicy = "once_per_session"
	PolicyOncePerDay     DisplayPolicy = "once_per_day"
)

// Attribution holds the campaign parameters appended to the target URL on click.
type Attribution struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

type Creative struct {
	ID              string
	Title           string
	ImageURL        string
	TargetURL       string
	BackgroundColor string
	TextColor       string
	SlotPosition    Position
	DeviceTarget    Device
	CategoryIDs     []string
	ProviderID      string
	Status          Status
	StartsAt        time.Time
	EndsAt          *time.Time
	Priority        int
	DisplayPolicy   DisplayPolicy
	ImpressionCount int64
	ClickCount      int64
	Attribution     Attribution
	CreatedAt       time.Time
}

var (
	ErrEmptyTargetURL   = errors.New("target url is empty")
	ErrInvalidTargetURL = errors.New("target url is not an absolute url")
	ErrInvalidWindow    = errors.New("ends_at must be after starts_at")
	ErrInvalidPriority  = errors.New("priority must be non-negative")
)

// Validate rejects broken creatives on the administrator write path,
// so the serving path never has to deal with them.
func (c Creative) Validate() error {
	if c.TargetURL == "" {
		return ErrEmptyTargetURL
	}

	u, err := url.Parse(c.TargetURL)
	if err != nil || !u.IsAbs() {
		return ErrInvalidTargetURL
	}

	if !validPosition(c.SlotPosition) {
		return fmt.Errorf("unknown slot position %q", c.SlotPosition)
	}

	if !validDevice(c.DeviceTarget) {
		return fmt.Errorf("unknown device target %q", c.DeviceTarget)
	}

	if !validStatus(c.Status) {
		return fmt.Errorf("unknown status %q", c.Status)
	}

	if !validPolicy(c.DisplayPolicy) {
		return fmt.Errorf("unknown display policy %q", c.DisplayPolicy)
	}

	if c.StartsAt.IsZero() {
		return errors.New("starts_at is required")
	}

	if c.EndsAt != nil && !c.EndsAt.After(c.StartsAt) {
		return ErrInvalidWindow
	}

	if c.Priority < 0 {
		return ErrInvalidPriority
	}

	return nil
}

func validPosition(p Position) bool {
	switch p {
	case PositionHeader, PositionSidebar, PositionFooter, PositionPopup, PositionHero:
		return true
	}

	return false
}

func validDevice(d Device) bool {
	switch d {
	case DeviceDesktop, DeviceMobile, DeviceTablet, DeviceAll:
		return true
	}

	return false
}

func validStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused:
		return true
	}

	return false
}

func validPolicy(p DisplayPolicy) bool {
	switch p {
	case PolicyAlways, PolicyOncePerSession, PolicyOncePerDay:
		return true
	}

	return false
}
