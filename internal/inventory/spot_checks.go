package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/audit"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/mockdata"
	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultSampleSize = 5

type SpotCheckRequest struct {
	BusinessUnit string                 `json:"business_unit"`
	Location     string                 `json:"location"`
	Method       models.SpotCheckMethod `json:"method"`
	Size         int                    `json:"size"`
	ItemCodes    []string               `json:"item_codes"`
}

type SpotCheckFilter struct {
	BusinessUnit string
	Status       models.CountStatus
}

type SpotCheckView struct {
	models.SpotCheck
	Progress Progress `json:"progress"`
}

func spotCheckView(sc models.SpotCheck) SpotCheckView {
	return SpotCheckView{SpotCheck: sc, Progress: ItemsProgress(sc.Items)}
}

// ListSpotChecks returns spot checks newest first.
func (s *Service) ListSpotChecks(ctx context.Context, actor models.Actor, f SpotCheckFilter) ([]SpotCheckView, error) {
	unit, ok := scope(actor, f.BusinessUnit)
	if !ok {
		return nil, ErrForbidden
	}
	checks, err := s.repo.ListSpotChecks(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]SpotCheckView, 0, len(checks))
	for _, sc := range checks {
		if !actor.CanAccess(sc.BusinessUnit) || (unit != "" && sc.BusinessUnit != unit) {
			continue
		}
		if f.Status != "" && sc.Status != f.Status {
			continue
		}
		out = append(out, spotCheckView(sc))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) GetSpotCheck(ctx context.Context, actor models.Actor, id string) (SpotCheckView, error) {
	sc, err := s.loadSpotCheck(ctx, actor, id)
	if err != nil {
		return SpotCheckView{}, err
	}
	return spotCheckView(sc), nil
}

func (s *Service) loadSpotCheck(ctx context.Context, actor models.Actor, id string) (models.SpotCheck, error) {
	sc, err := s.repo.GetSpotCheck(ctx, id)
	if err != nil {
		return models.SpotCheck{}, err
	}
	if !actor.CanAccess(sc.BusinessUnit) {
		return models.SpotCheck{}, fmt.Errorf("spot check %s: %w", id, ErrNotFound)
	}
	return sc, nil
}

// CreateSpotCheck samples items of a unit. Random picks Size items at random,
// high value picks the Size items with the largest stock value, manual uses
// the listed item codes.
func (s *Service) CreateSpotCheck(ctx context.Context, actor models.Actor, req SpotCheckRequest) (SpotCheckView, error) {
	if !canCount(actor.Role) {
		return SpotCheckView{}, ErrForbidden
	}
	unit, ok := scope(actor, strings.TrimSpace(req.BusinessUnit))
	if !ok {
		return SpotCheckView{}, ErrForbidden
	}
	if unit == "" {
		return SpotCheckView{}, fmt.Errorf("%w: business unit is required", ErrValidation)
	}
	if req.Size < 0 {
		return SpotCheckView{}, fmt.Errorf("%w: size cannot be negative", ErrValidation)
	}
	size := req.Size
	if size == 0 {
		size = defaultSampleSize
	}

	candidates, err := s.repo.ListItems(ctx, mockdata.ItemFilter{BusinessUnit: unit, Location: strings.TrimSpace(req.Location)})
	if err != nil {
		return SpotCheckView{}, err
	}
	if len(candidates) == 0 {
		return SpotCheckView{}, fmt.Errorf("%w: no items in %s %s", ErrValidation, unit, req.Location)
	}

	var picked []models.InventoryItem
	switch req.Method {
	case models.SpotCheckRandom:
		s.mu.Lock()
		s.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		s.mu.Unlock()
		picked = candidates[:min(size, len(candidates))]
	case models.SpotCheckHighValue:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].StockValue().GreaterThan(candidates[j].StockValue())
		})
		picked = candidates[:min(size, len(candidates))]
	case models.SpotCheckManual:
		if picked, err = pickByCode(candidates, req.ItemCodes); err != nil {
			return SpotCheckView{}, err
		}
	default:
		return SpotCheckView{}, fmt.Errorf("%w: method must be random, high_value or manual", ErrValidation)
	}

	now := s.now()
	sc := models.SpotCheck{
		ID:           "sc-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		BusinessUnit: unit,
		Location:     strings.TrimSpace(req.Location),
		Method:       req.Method,
		Status:       models.CountStatusPending,
		CreatedBy:    actor.Name,
		CreatedAt:    now,
		Items:        make([]models.CountItem, 0, len(picked)),
	}
	for _, it := range picked {
		sc.Items = append(sc.Items, models.CountItem{
			ItemCode:  it.Code,
			Name:      it.Name,
			Category:  it.Category,
			Unit:      it.Unit,
			SystemQty: it.OnHand,
			UnitCost:  it.UnitCost,
		})
	}
	if err := s.repo.SaveSpotCheck(ctx, sc); err != nil {
		return SpotCheckView{}, err
	}

	s.writeAudit(ctx, audit.LogOptions{
		BusinessUnit: unit,
		UserID:       actor.UserID,
		UserName:     actor.Name,
		EntityType:   entitySpotCheck,
		EntityID:     sc.ID,
		Action:       models.AuditActionCreate,
		Description:  fmt.Sprintf("Created %s spot check of %d items", sc.Method, len(sc.Items)),
	})
	s.logger.Info("spot check created", zap.String("id", sc.ID), zap.String("method", string(sc.Method)), zap.Int("items", len(sc.Items)))
	return spotCheckView(sc), nil
}

func pickByCode(candidates []models.InventoryItem, codes []string) ([]models.InventoryItem, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: item_codes are required for a manual spot check", ErrValidation)
	}
	byCode := make(map[string]models.InventoryItem, len(candidates))
	for _, it := range candidates {
		byCode[it.Code] = it
	}
	seen := make(map[string]bool, len(codes))
	out := make([]models.InventoryItem, 0, len(codes))
	for _, code := range codes {
		it, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("%w: item %s is not stocked here", ErrValidation, code)
		}
		if !seen[code] {
			seen[code] = true
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Service) RecordSpotCount(ctx context.Context, actor models.Actor, id, itemCode string, qty decimal.Decimal, note string) (SpotCheckView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canCount(actor.Role) {
		return SpotCheckView{}, ErrForbidden
	}
	sc, err := s.loadSpotCheck(ctx, actor, id)
	if err != nil {
		return SpotCheckView{}, err
	}
	switch sc.Status {
	case models.CountStatusPending:
		sc.Status = models.CountStatusInProgress
	case models.CountStatusInProgress:
	default:
		return SpotCheckView{}, ErrInvalidState
	}
	if err := recordItem(sc.Items, itemCode, qty, note, s.now()); err != nil {
		return SpotCheckView{}, fmt.Errorf("item %s: %w", itemCode, err)
	}
	if err := s.repo.SaveSpotCheck(ctx, sc); err != nil {
		return SpotCheckView{}, err
	}
	return spotCheckView(sc), nil
}

// SubmitSpotCheck hands a fully counted check over for review.
func (s *Service) SubmitSpotCheck(ctx context.Context, actor models.Actor, id string) (SpotCheckView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canCount(actor.Role) {
		return SpotCheckView{}, ErrForbidden
	}
	sc, err := s.loadSpotCheck(ctx, actor, id)
	if err != nil {
		return SpotCheckView{}, err
	}
	if sc.Status != models.CountStatusInProgress || !allCounted(sc.Items) {
		return SpotCheckView{}, ErrInvalidState
	}
	now := s.now()
	sc.Status = models.CountStatusPendingReview
	sc.SubmittedAt = &now
	if err := s.repo.SaveSpotCheck(ctx, sc); err != nil {
		return SpotCheckView{}, err
	}
	return spotCheckView(sc), nil
}

func (s *Service) ReviewSpotCheck(ctx context.Context, actor models.Actor, id string) (SpotCheckView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canReview(actor.Role) {
		return SpotCheckView{}, ErrForbidden
	}
	sc, err := s.loadSpotCheck(ctx, actor, id)
	if err != nil {
		return SpotCheckView{}, err
	}
	if sc.Status != models.CountStatusPendingReview {
		return SpotCheckView{}, ErrInvalidState
	}
	now := s.now()
	sc.Status = models.CountStatusCompleted
	sc.ReviewedBy = actor.Name
	sc.ReviewedAt = &now
	if err := s.repo.SaveSpotCheck(ctx, sc); err != nil {
		return SpotCheckView{}, err
	}

	view := spotCheckView(sc)
	s.writeAudit(ctx, audit.LogOptions{
		BusinessUnit: sc.BusinessUnit,
		UserID:       actor.UserID,
		UserName:     actor.Name,
		EntityType:   entitySpotCheck,
		EntityID:     sc.ID,
		Action:       models.AuditActionComplete,
		Description:  fmt.Sprintf("Reviewed spot check %s, variance %s", sc.ID, view.Progress.VarianceValue.StringFixed(2)),
		After:        view.Progress,
	})
	return view, nil
}
