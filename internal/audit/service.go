package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"gorm.io/gorm"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

type LogOptions struct {
	BusinessUnit string
	UserID       uint
	UserName     string
	EntityType   string
	EntityID     string
	Action       models.AuditAction
	Description  string
	Before       any
	After        any
}

type Filter struct {
	EntityType   string
	EntityID     string
	BusinessUnit string
	Limit        int
}

// Recorder writes and lists audit entries, newest first.
type Recorder interface {
	WriteLog(ctx context.Context, opts LogOptions) error
	List(ctx context.Context, f Filter) ([]models.AuditLog, error)
}

func newEntry(opts LogOptions) models.AuditLog {
	// jsonb columns need valid JSON, so absent snapshots are stored as "null".
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	return models.AuditLog{
		BusinessUnit: opts.BusinessUnit,
		UserID:       opts.UserID,
		UserName:     opts.UserName,
		EntityType:   opts.EntityType,
		EntityID:     opts.EntityID,
		Action:       opts.Action,
		Description:  opts.Description,
		BeforeData:   beforeStr,
		AfterData:    afterStr,
	}
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultLimit
	case f.Limit > maxLimit:
		return maxLimit
	default:
		return f.Limit
	}
}

type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := newEntry(opts)
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func (r *GormRecorder) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.BusinessUnit != "" {
		q = q.Where("business_unit = ?", f.BusinessUnit)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(f.limit()).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// MemoryRecorder keeps entries in process memory.
type MemoryRecorder struct {
	mu     sync.RWMutex
	nextID uint
	logs   []models.AuditLog
	now    func() time.Time
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{nextID: 1, now: time.Now}
}

func (r *MemoryRecorder) WriteLog(_ context.Context, opts LogOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := newEntry(opts)
	entry.ID = r.nextID
	entry.CreatedAt = r.now()
	r.nextID++
	r.logs = append(r.logs, entry)
	return nil
}

func (r *MemoryRecorder) List(_ context.Context, f Filter) ([]models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.AuditLog
	for _, l := range r.logs {
		if f.EntityType != "" && l.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && l.EntityID != f.EntityID {
			continue
		}
		if f.BusinessUnit != "" && l.BusinessUnit != f.BusinessUnit {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
