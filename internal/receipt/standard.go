package receipt

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// StandardPageBreak separates per-order pages in the host-spooler layout.
const StandardPageBreak = `<div style="page-break-after:always"></div>` + "\n"

const standardDateFormat = "January 2, 2006"

func renderStandard(orders []OrderSnapshot, cfg LayoutConfig, now time.Time) *Document {
	blocks := make([]string, 0, len(orders))
	for _, order := range orders {
		blocks = append(blocks, renderStandardOrder(&order, cfg, now))
	}

	return &Document{
		Profile:     cfg.PaperProfile,
		ContentType: "text/html",
		Blocks:      blocks,
		pageBreak:   StandardPageBreak,
	}
}

func renderStandardOrder(order *OrderSnapshot, cfg LayoutConfig, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(`<section class="receipt">` + "\n")

	sb.WriteString(`<header>` + "\n")
	if cfg.ShowLogo && cfg.LogoURL != "" {
		fmt.Fprintf(&sb, `<img class="logo" src=%q alt="logo">`+"\n", cfg.LogoURL)
	}
	if cfg.Title != "" {
		fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(cfg.Title))
	}
	if cfg.ShowDate {
		fmt.Fprintf(&sb, `<p class="date">%s</p>`+"\n", now.Format(standardDateFormat))
	}
	if cfg.ShowOrderID && order.OrderID != "" {
		fmt.Fprintf(&sb, `<p class="order-id">Order %s</p>`+"\n", html.EscapeString(order.OrderID))
	}
	sb.WriteString("</header>\n")

	fmt.Fprintf(&sb, `<p class="recipient">%s</p>`+"\n", html.EscapeString(order.RecipientName))
	if order.Grade != "" {
		fmt.Fprintf(&sb, `<p class="grade">%s</p>`+"\n", html.EscapeString(order.Grade))
	}

	writeStandardItems(&sb, order, cfg)
	writeStandardFooter(&sb, order, cfg)

	sb.WriteString("</section>\n")
	return sb.String()
}

func writeStandardItems(sb *strings.Builder, order *OrderSnapshot, cfg LayoutConfig) {
	if len(order.LineItems) == 0 {
		sb.WriteString(`<p class="no-items">No items to fulfill</p>` + "\n")
		return
	}

	sb.WriteString("<table>\n<thead><tr>")
	if cfg.ShowCheckboxes {
		sb.WriteString("<th></th>")
	}
	if cfg.ShowItemCode {
		sb.WriteString("<th>Code</th>")
	}
	sb.WriteString("<th>Item</th>")
	if cfg.ShowQuantity {
		sb.WriteString("<th>Qty</th>")
	}
	if cfg.ShowPrice {
		sb.WriteString("<th>Price</th>")
	}
	if cfg.ShowStatus {
		sb.WriteString("<th>Status</th>")
	}
	sb.WriteString("</tr></thead>\n<tbody>\n")

	for _, item := range order.LineItems {
		sb.WriteString("<tr>")
		if cfg.ShowCheckboxes {
			sb.WriteString(`<td class="checkbox">&#9744;</td>`)
		}
		if cfg.ShowItemCode {
			fmt.Fprintf(sb, "<td>%s</td>", html.EscapeString(item.Code))
		}
		fmt.Fprintf(sb, "<td>%s</td>", html.EscapeString(item.Name))
		if cfg.ShowQuantity {
			fmt.Fprintf(sb, "<td>%d</td>", item.Quantity)
		}
		if cfg.ShowPrice {
			var unit int64
			if item.UnitPriceCents != nil {
				unit = *item.UnitPriceCents
			}
			fmt.Fprintf(sb, "<td>%s</td>", FormatCents(unit*int64(item.Quantity)))
		}
		if cfg.ShowStatus {
			fmt.Fprintf(sb, "<td>%s</td>", html.EscapeString(item.Status))
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</tbody>\n</table>\n")
}

func writeStandardFooter(sb *strings.Builder, order *OrderSnapshot, cfg LayoutConfig) {
	sb.WriteString("<footer>\n")
	fmt.Fprintf(sb, `<p class="count">%d item(s)</p>`+"\n", len(order.LineItems))
	fmt.Fprintf(sb, `<p class="total">Total %s</p>`+"\n", FormatCents(order.ComputedTotalCents()))
	if cfg.FooterText != "" {
		fmt.Fprintf(sb, `<p class="note">%s</p>`+"\n", html.EscapeString(cfg.FooterText))
	}
	if cfg.ShowSignature {
		sb.WriteString(`<p class="signature">Signature: _______________________</p>` + "\n")
	}
	sb.WriteString("</footer>\n")
}
