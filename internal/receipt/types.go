package receipt

import "fmt"

// PaperProfile selects the physical layout a document is rendered for.
type PaperProfile string

const (
	ProfileThermal58 PaperProfile = "thermal_58mm"
	ProfileThermal80 PaperProfile = "thermal_80mm"
	ProfileStandard  PaperProfile = "standard"
)

// Columns returns the monospace line width for thermal profiles, 0 otherwise.
func (p PaperProfile) Columns() int {
	switch p {
	case ProfileThermal58:
		return 32
	case ProfileThermal80:
		return 48
	default:
		return 0
	}
}

func (p PaperProfile) Valid() bool {
	switch p {
	case ProfileThermal58, ProfileThermal80, ProfileStandard:
		return true
	default:
		return false
	}
}

// LineItem is a single orderable row inside an order snapshot. A nil
// UnitPriceCents means the upstream system supplied no price: the item is
// shown at $0.00 and excluded from the computed total.
type LineItem struct {
	Name           string `json:"name" yaml:"name"`
	Code           string `json:"code,omitempty" yaml:"code,omitempty"`
	Quantity       int    `json:"quantity" yaml:"quantity"`
	UnitPriceCents *int64 `json:"unit_price_cents" yaml:"unit_price_cents"`
	Status         string `json:"status,omitempty" yaml:"status,omitempty"`
}

// OrderSnapshot is the denormalized order data embedded in a fetched job.
type OrderSnapshot struct {
	OrderID       string     `json:"order_id"`
	RecipientName string     `json:"recipient_name"`
	Grade         string     `json:"grade,omitempty"`
	LineItems     []LineItem `json:"line_items"`
	TotalCents    *int64     `json:"total_cents,omitempty"`
}

// ComputedTotalCents recomputes the order total from line items. Upstream
// totals may be stale, so rendering never trusts OrderSnapshot.TotalCents.
func (o *OrderSnapshot) ComputedTotalCents() int64 {
	var total int64
	for _, item := range o.LineItems {
		if item.UnitPriceCents == nil {
			continue
		}
		total += int64(item.Quantity) * *item.UnitPriceCents
	}
	return total
}

// LayoutConfig is the presentation contract for a deployment. Every toggle
// is optional: a disabled or absent section is simply omitted from output.
type LayoutConfig struct {
	PaperProfile PaperProfile `json:"paper_profile" yaml:"paper_profile"`

	Title   string `json:"title,omitempty" yaml:"title"`
	LogoURL string `json:"logo_url,omitempty" yaml:"logo_url"`

	ShowLogo       bool `json:"show_logo" yaml:"show_logo"`
	ShowDate       bool `json:"show_date" yaml:"show_date"`
	ShowOrderID    bool `json:"show_order_id" yaml:"show_order_id"`
	ShowCheckboxes bool `json:"show_checkboxes" yaml:"show_checkboxes"`
	ShowItemCode   bool `json:"show_item_code" yaml:"show_item_code"`
	ShowQuantity   bool `json:"show_quantity" yaml:"show_quantity"`
	ShowPrice      bool `json:"show_price" yaml:"show_price"`
	ShowStatus     bool `json:"show_status" yaml:"show_status"`
	ShowSignature  bool `json:"show_signature" yaml:"show_signature"`

	FooterText string `json:"footer_text,omitempty" yaml:"footer_text"`
}

// Document is a rendered, printable receipt batch. Blocks holds one rendered
// section per order, in order_refs sequence; Content joins them with the
// profile's page-break marker, with no trailing break after the last block.
type Document struct {
	Profile     PaperProfile
	ContentType string
	Blocks      []string
	pageBreak   string
}

func (d *Document) Content() string {
	out := ""
	for i, block := range d.Blocks {
		if i > 0 {
			out += d.pageBreak
		}
		out += block
	}
	return out
}

func (d *Document) BlockCount() int {
	return len(d.Blocks)
}

// FormatCents renders a cent amount with exactly two decimal places.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
