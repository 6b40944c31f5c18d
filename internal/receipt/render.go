package receipt

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownProfile = errors.New("unknown paper profile")
	ErrNoOrders       = errors.New("no orders to render")
)

// Render produces a printable document for the given orders under cfg.
// It is pure apart from reading the clock for optional date headers; order
// blocks come out in the exact sequence of the input slice.
func Render(orders []OrderSnapshot, cfg LayoutConfig) (*Document, error) {
	return renderAt(orders, cfg, time.Now())
}

func renderAt(orders []OrderSnapshot, cfg LayoutConfig, now time.Time) (*Document, error) {
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}

	switch cfg.PaperProfile {
	case ProfileThermal58, ProfileThermal80:
		return renderThermal(orders, cfg, now), nil
	case ProfileStandard:
		return renderStandard(orders, cfg, now), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, cfg.PaperProfile)
	}
}
