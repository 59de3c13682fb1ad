package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

// MemoryUsers is an in-process UserRepository.
type MemoryUsers struct {
	mu     sync.RWMutex
	nextID uint
	users  map[uint]models.User
	now    func() time.Time
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{nextID: 1, users: make(map[uint]models.User), now: time.Now}
}

var _ UserRepository = (*MemoryUsers)(nil)

func (r *MemoryUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUsers) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryUsers) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	all, _ := r.List(ctx)
	out := all[:0]
	for _, u := range all {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MemoryUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	users, _ := r.ListByRole(ctx, role)
	return int64(len(users)), nil
}

func (r *MemoryUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = r.now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *cloneUser(*user)
	return nil
}

func (r *MemoryUsers) UpdatePassword(_ context.Context, id uint, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func cloneUser(u models.User) *models.User {
	out := u
	out.BusinessUnits = append([]models.BusinessUnit(nil), u.BusinessUnits...)
	return &out
}

// MemoryBusinessUnits is an in-process BusinessUnitRepository.
type MemoryBusinessUnits struct {
	mu     sync.RWMutex
	nextID uint
	units  map[uint]models.BusinessUnit
}

func NewMemoryBusinessUnits(seed ...models.BusinessUnit) *MemoryBusinessUnits {
	r := &MemoryBusinessUnits{nextID: 1, units: make(map[uint]models.BusinessUnit)}
	for i := range seed {
		bu := seed[i]
		_ = r.Create(context.Background(), &bu)
	}
	return r
}

var _ BusinessUnitRepository = (*MemoryBusinessUnits)(nil)

func (r *MemoryBusinessUnits) List(_ context.Context) ([]models.BusinessUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.BusinessUnit, 0, len(r.units))
	for _, bu := range r.units {
		out = append(out, bu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryBusinessUnits) FindByID(_ context.Context, id uint) (*models.BusinessUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bu, ok := r.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &bu, nil
}

func (r *MemoryBusinessUnits) FindByCode(_ context.Context, code string) (*models.BusinessUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, bu := range r.units {
		if bu.Code == code {
			out := bu
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryBusinessUnits) Create(_ context.Context, bu *models.BusinessUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.units {
		if existing.Code == bu.Code {
			return ErrDuplicate
		}
	}
	bu.ID = r.nextID
	r.nextID++
	now := time.Now()
	bu.CreatedAt, bu.UpdatedAt = now, now
	r.units[bu.ID] = *bu
	return nil
}

func (r *MemoryBusinessUnits) Update(_ context.Context, bu *models.BusinessUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.units[bu.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.units {
		if id != bu.ID && other.Code == bu.Code {
			return ErrDuplicate
		}
	}
	bu.CreatedAt = existing.CreatedAt
	bu.UpdatedAt = time.Now()
	r.units[bu.ID] = *bu
	return nil
}

func (r *MemoryBusinessUnits) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[id]; !ok {
		return ErrNotFound
	}
	delete(r.units, id)
	return nil
}
