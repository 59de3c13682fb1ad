package models

import "time"

type NotificationType string

const (
	NotificationPurchaseOrder NotificationType = "purchase_order"
	NotificationGoodsReceipt  NotificationType = "goods_receipt"
	NotificationPhysicalCount NotificationType = "physical_count"
	NotificationSpotCheck     NotificationType = "spot_check"
	NotificationApproval      NotificationType = "approval"
	NotificationSystem        NotificationType = "system"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is stored as part of a JSON array per user; it has no table.
type Notification struct {
	ID        string               `json:"id" yaml:"id"`
	Type      NotificationType     `json:"type" yaml:"type"`
	Title     string               `json:"title" yaml:"title"`
	Message   string               `json:"message" yaml:"message"`
	Timestamp time.Time            `json:"timestamp" yaml:"timestamp"`
	IsRead    bool                 `json:"isRead" yaml:"is_read"`
	Priority  NotificationPriority `json:"priority" yaml:"priority"`
	Metadata  map[string]string    `json:"metadata,omitempty" yaml:"metadata"`
}

func (n Notification) Clone() Notification {
	out := n
	if n.Metadata != nil {
		out.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
