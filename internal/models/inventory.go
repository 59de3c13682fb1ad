package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	Code         string          `json:"code" yaml:"code"`
	Name         string          `json:"name" yaml:"name"`
	Category     string          `json:"category" yaml:"category"`
	Unit         string          `json:"unit" yaml:"unit"`
	BusinessUnit string          `json:"business_unit" yaml:"business_unit"`
	Location     string          `json:"location" yaml:"location"`
	OnHand       decimal.Decimal `json:"on_hand" yaml:"on_hand"`
	ReorderPoint decimal.Decimal `json:"reorder_point" yaml:"reorder_point"`
	UnitCost     decimal.Decimal `json:"unit_cost" yaml:"unit_cost"`
}

// LowStock reports whether on-hand quantity is at or below the reorder point.
func (i InventoryItem) LowStock() bool {
	return i.OnHand.LessThanOrEqual(i.ReorderPoint)
}

// StockValue is on-hand quantity at unit cost.
func (i InventoryItem) StockValue() decimal.Decimal {
	return i.OnHand.Mul(i.UnitCost)
}

// CountStatus is shared by physical count sessions and spot checks.
type CountStatus string

const (
	CountStatusPending       CountStatus = "pending"
	CountStatusInProgress    CountStatus = "in_progress"
	CountStatusPendingReview CountStatus = "pending_review"
	CountStatusCompleted     CountStatus = "completed"
)

// CountItem is one line of a physical count or spot check.
type CountItem struct {
	ItemCode   string           `json:"item_code" yaml:"item_code"`
	Name       string           `json:"name" yaml:"name"`
	Category   string           `json:"category" yaml:"category"`
	Unit       string           `json:"unit" yaml:"unit"`
	SystemQty  decimal.Decimal  `json:"system_qty" yaml:"system_qty"`
	CountedQty *decimal.Decimal `json:"counted_qty" yaml:"counted_qty"`
	UnitCost   decimal.Decimal  `json:"unit_cost" yaml:"unit_cost"`
	Note       string           `json:"note" yaml:"note"`
	CountedAt  *time.Time       `json:"counted_at" yaml:"counted_at"`
}

func (i CountItem) Counted() bool {
	return i.CountedQty != nil
}

// Variance is counted minus system quantity; zero while uncounted.
func (i CountItem) Variance() decimal.Decimal {
	if i.CountedQty == nil {
		return decimal.Zero
	}
	return i.CountedQty.Sub(i.SystemQty)
}

func (i CountItem) VarianceValue() decimal.Decimal {
	return i.Variance().Mul(i.UnitCost)
}

type PhysicalCountSession struct {
	ID           string      `json:"id" yaml:"id"`
	BusinessUnit string      `json:"business_unit" yaml:"business_unit"`
	Location     string      `json:"location" yaml:"location"`
	Department   string      `json:"department" yaml:"department"`
	Status       CountStatus `json:"status" yaml:"status"`
	ScheduledFor time.Time   `json:"scheduled_for" yaml:"scheduled_for"`
	StartedAt    *time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at" yaml:"completed_at"`
	CountedBy    string      `json:"counted_by" yaml:"counted_by"`
	Items        []CountItem `json:"items" yaml:"items"`
}

func (s PhysicalCountSession) Clone() PhysicalCountSession {
	out := s
	out.Items = cloneCountItems(s.Items)
	return out
}

type SpotCheckMethod string

const (
	SpotCheckRandom    SpotCheckMethod = "random"
	SpotCheckHighValue SpotCheckMethod = "high_value"
	SpotCheckManual    SpotCheckMethod = "manual"
)

type SpotCheck struct {
	ID           string          `json:"id" yaml:"id"`
	BusinessUnit string          `json:"business_unit" yaml:"business_unit"`
	Location     string          `json:"location" yaml:"location"`
	Method       SpotCheckMethod `json:"method" yaml:"method"`
	Status       CountStatus     `json:"status" yaml:"status"`
	CreatedBy    string          `json:"created_by" yaml:"created_by"`
	CreatedAt    time.Time       `json:"created_at" yaml:"created_at"`
	SubmittedAt  *time.Time      `json:"submitted_at" yaml:"submitted_at"`
	ReviewedBy   string          `json:"reviewed_by" yaml:"reviewed_by"`
	ReviewedAt   *time.Time      `json:"reviewed_at" yaml:"reviewed_at"`
	Items        []CountItem     `json:"items" yaml:"items"`
}

func (s SpotCheck) Clone() SpotCheck {
	out := s
	out.Items = cloneCountItems(s.Items)
	return out
}

func cloneCountItems(items []CountItem) []CountItem {
	out := make([]CountItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.CountedQty != nil {
			q := *it.CountedQty
			out[i].CountedQty = &q
		}
		if it.CountedAt != nil {
			t := *it.CountedAt
			out[i].CountedAt = &t
		}
	}
	return out
}
