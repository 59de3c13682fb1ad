package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseOrder struct {
	ID           string              `json:"id" yaml:"id"`
	Number       string              `json:"number" yaml:"number"`
	Vendor       string              `json:"vendor" yaml:"vendor"`
	BusinessUnit string              `json:"business_unit" yaml:"business_unit"`
	Department   string              `json:"department" yaml:"department"`
	RequestorID  uint                `json:"requestor_id" yaml:"requestor_id"`
	RequestedBy  string              `json:"requested_by" yaml:"requested_by"`
	OrderDate    time.Time           `json:"order_date" yaml:"order_date"`
	DeliveryDate time.Time           `json:"delivery_date" yaml:"delivery_date"`
	Status       DocumentStatus      `json:"status" yaml:"status"`
	Stage        StageID             `json:"stage" yaml:"stage"`
	Currency     string              `json:"currency" yaml:"currency"`
	Notes        string              `json:"notes" yaml:"notes"`
	Lines        []PurchaseOrderLine `json:"lines" yaml:"lines"`
}

type PurchaseOrderLine struct {
	ID          string          `json:"id" yaml:"id"`
	ItemCode    string          `json:"item_code" yaml:"item_code"`
	Description string          `json:"description" yaml:"description"`
	Unit        string          `json:"unit" yaml:"unit"`
	OrderedQty  decimal.Decimal `json:"ordered_qty" yaml:"ordered_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty" yaml:"received_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price" yaml:"unit_price"`
}

// Outstanding is the quantity still expected on the line.
func (l PurchaseOrderLine) Outstanding() decimal.Decimal {
	out := l.OrderedQty.Sub(l.ReceivedQty)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

func (l PurchaseOrderLine) Total() decimal.Decimal {
	return l.OrderedQty.Mul(l.UnitPrice)
}

// Total is the ordered value of all lines.
func (po PurchaseOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range po.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// FullyReceived reports whether nothing is outstanding on any line.
func (po PurchaseOrder) FullyReceived() bool {
	for _, l := range po.Lines {
		if l.Outstanding().IsPositive() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers cannot mutate catalog state.
func (po PurchaseOrder) Clone() PurchaseOrder {
	out := po
	out.Lines = append([]PurchaseOrderLine(nil), po.Lines...)
	return out
}
