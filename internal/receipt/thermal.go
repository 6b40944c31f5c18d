package receipt

import (
	"fmt"
	"strings"
	"time"
)

// ThermalPageBreak separates receipt slips on thermal paper. The hardware
// adapter translates it into the device's feed/cut sequence.
const ThermalPageBreak = "\f"

const thermalDateFormat = "2006-01-02 15:04"

func renderThermal(orders []OrderSnapshot, cfg LayoutConfig, now time.Time) *Document {
	width := cfg.PaperProfile.Columns()

	blocks := make([]string, 0, len(orders))
	for i, order := range orders {
		var sb strings.Builder
		if i == 0 {
			writeThermalTitle(&sb, cfg, now, width)
		}
		writeThermalOrder(&sb, &order, cfg, width)
		blocks = append(blocks, sb.String())
	}

	return &Document{
		Profile:     cfg.PaperProfile,
		ContentType: "text/plain",
		Blocks:      blocks,
		pageBreak:   ThermalPageBreak,
	}
}

func writeThermalTitle(sb *strings.Builder, cfg LayoutConfig, now time.Time, width int) {
	title := cfg.Title
	if title == "" {
		title = "RECEIPT"
	}
	sb.WriteString(centerLine(title, width))
	sb.WriteByte('\n')
	if cfg.ShowDate {
		sb.WriteString(centerLine(now.Format(thermalDateFormat), width))
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat("=", width))
	sb.WriteByte('\n')
}

func writeThermalOrder(sb *strings.Builder, order *OrderSnapshot, cfg LayoutConfig, width int) {
	sb.WriteString(truncateLine(order.RecipientName, width))
	sb.WriteByte('\n')

	meta := make([]string, 0, 2)
	if order.Grade != "" {
		meta = append(meta, order.Grade)
	}
	if cfg.ShowOrderID && order.OrderID != "" {
		meta = append(meta, "#"+order.OrderID)
	}
	if len(meta) > 0 {
		sb.WriteString(truncateLine(strings.Join(meta, "  "), width))
		sb.WriteByte('\n')
	}

	sb.WriteString(strings.Repeat("-", width))
	sb.WriteByte('\n')

	if len(order.LineItems) == 0 {
		sb.WriteString("(no items)\n")
	}
	for _, item := range order.LineItems {
		left := fmt.Sprintf("%d x %s", item.Quantity, item.Name)
		right := ""
		if cfg.ShowPrice {
			var unit int64
			if item.UnitPriceCents != nil {
				unit = *item.UnitPriceCents
			}
			right = FormatCents(unit * int64(item.Quantity))
		}
		sb.WriteString(columnLine(left, right, width))
		sb.WriteByte('\n')
	}

	sb.WriteString(strings.Repeat("-", width))
	sb.WriteByte('\n')
	sb.WriteString(columnLine("TOTAL", FormatCents(order.ComputedTotalCents()), width))
	sb.WriteByte('\n')

	if cfg.FooterText != "" {
		sb.WriteString(truncateLine(cfg.FooterText, width))
		sb.WriteByte('\n')
	}
}

// columnLine lays out a left and right column on a single monospace line.
// The right column is never truncated; names give way instead of wrapping.
func columnLine(left, right string, width int) string {
	if right == "" {
		return truncateLine(left, width)
	}
	avail := width - len(right) - 1
	if avail < 1 {
		avail = 1
	}
	left = truncateLine(left, avail)
	pad := width - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

func truncateLine(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "~"
}

func centerLine(s string, width int) string {
	s = truncateLine(s, width)
	pad := (width - len([]rune(s))) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
