package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GRNStatus is the state of a good receive note.
type GRNStatus string

const (
	GRNStatusDraft     GRNStatus = "draft"
	GRNStatusCommitted GRNStatus = "committed"
	GRNStatusVoid      GRNStatus = "void"
)

// GRN records goods received against a purchase order.
type GRN struct {
	ID              string    `json:"id" yaml:"id"`
	Number          string    `json:"number" yaml:"number"`
	PurchaseOrderID string    `json:"purchase_order_id" yaml:"purchase_order_id"`
	Vendor          string    `json:"vendor" yaml:"vendor"`
	BusinessUnit    string    `json:"business_unit" yaml:"business_unit"`
	ReceivedDate    time.Time `json:"received_date" yaml:"received_date"`
	ReceivedBy      string    `json:"received_by" yaml:"received_by"`
	InvoiceNumber   string    `json:"invoice_number" yaml:"invoice_number"`
	Status          GRNStatus `json:"status" yaml:"status"`
	Notes           string    `json:"notes" yaml:"notes"`
	Lines           []GRNLine `json:"lines" yaml:"lines"`
}

type GRNLine struct {
	ID          string          `json:"id" yaml:"id"`
	POLineID    string          `json:"po_line_id" yaml:"po_line_id"`
	ItemCode    string          `json:"item_code" yaml:"item_code"`
	Description string          `json:"description" yaml:"description"`
	Unit        string          `json:"unit" yaml:"unit"`
	OrderedQty  decimal.Decimal `json:"ordered_qty" yaml:"ordered_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty" yaml:"received_qty"`
	DamagedQty  decimal.Decimal `json:"damaged_qty" yaml:"damaged_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price" yaml:"unit_price"`
}

// AcceptedQty is the received quantity minus damaged goods.
func (l GRNLine) AcceptedQty() decimal.Decimal {
	return l.ReceivedQty.Sub(l.DamagedQty)
}

func (l GRNLine) Total() decimal.Decimal {
	return l.AcceptedQty().Mul(l.UnitPrice)
}

// Total is the value of accepted goods on the note.
func (g GRN) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range g.Lines {
		total = total.Add(l.Total())
	}
	return total
}

func (g GRN) Clone() GRN {
	out := g
	out.Lines = append([]GRNLine(nil), g.Lines...)
	return out
}
