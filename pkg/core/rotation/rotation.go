// Package rotation maintains the fairness queue of rider names: a single
// persisted ordered list where the front holds the highest priority for
// the next pick. Riders move to the back when assigned and return to the
// front when an assignment is taken away.
package rotation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/pkg/core/model"
	"github.com/saferides/escort-dispatch/pkg/metrics"
	"github.com/saferides/escort-dispatch/pkg/tablestore"
	"github.com/saferides/escort-dispatch/pkg/utils/keylock"
)

// PropertyKey is where the newline-joined order lives in the property store.
const PropertyKey = "dispatch.rotation.order"

// RiderLister supplies the roster used to seed an absent order.
type RiderLister interface {
	Riders(ctx context.Context) ([]model.Rider, error)
}

// Manager owns the rotation order. All mutations run under an exclusive
// in-process lock on the property key; two managers in separate processes
// still race (the store offers no compare-and-swap), which callers accept.
type Manager struct {
	props  tablestore.PropertyStore
	riders RiderLister
	logger *zap.Logger
	locks  *keylock.Locker
}

// NewManager creates a rotation manager over the given property store.
func NewManager(props tablestore.PropertyStore, riders RiderLister, logger *zap.Logger) *Manager {
	return &Manager{
		props:  props,
		riders: riders,
		logger: logger,
		locks:  keylock.New(),
	}
}

// GetOrder returns the persisted order, seeding it from active full-time
// riders (sorted by name, case-insensitive) when none exists yet.
func (m *Manager) GetOrder(ctx context.Context) ([]string, error) {
	unlock := m.locks.Lock(PropertyKey)
	defer unlock()
	return m.getOrderLocked(ctx)
}

func (m *Manager) getOrderLocked(ctx context.Context) ([]string, error) {
	raw, found, err := m.props.GetProperty(ctx, PropertyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read rotation order: %w", err)
	}
	if found {
		return splitOrder(raw), nil
	}

	m.logger.Info("No rotation order persisted, seeding from roster")
	riders, err := m.riders.Riders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch riders for rotation seed: %w", err)
	}

	seed := make([]string, 0, len(riders))
	for _, r := range riders {
		if r.Status == model.RiderActive && !r.PartTime {
			seed = append(seed, r.Name)
		}
	}
	sort.Slice(seed, func(i, j int) bool {
		return strings.ToLower(seed[i]) < strings.ToLower(seed[j])
	})

	if err := m.persist(ctx, seed); err != nil {
		return nil, err
	}
	m.logger.Info("Seeded rotation order", zap.Int("riders", len(seed)))
	return seed, nil
}

// Advance moves each assigned name to the back of the order, in call
// order, so just-assigned riders carry the lowest next-pick priority.
// Names not already present are appended.
func (m *Manager) Advance(ctx context.Context, assignedNames []string) ([]string, error) {
	unlock := m.locks.Lock(PropertyKey)
	defer unlock()

	order, err := m.getOrderLocked(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range assignedNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		order = removeName(order, name)
		order = append(order, name)
	}

	if err := m.persist(ctx, order); err != nil {
		return nil, err
	}
	metrics.RotationUpdates.WithLabelValues("advance").Inc()
	m.logger.Debug("Rotation advanced",
		zap.Strings("assigned", assignedNames),
		zap.Int("order_len", len(order)))
	return order, nil
}

// Retreat reinserts each unassigned name at the front, preserving the
// relative order of the input list (first input name ends up frontmost).
func (m *Manager) Retreat(ctx context.Context, unassignedNames []string) ([]string, error) {
	unlock := m.locks.Lock(PropertyKey)
	defer unlock()

	order, err := m.getOrderLocked(ctx)
	if err != nil {
		return nil, err
	}

	for i := len(unassignedNames) - 1; i >= 0; i-- {
		name := strings.TrimSpace(unassignedNames[i])
		if name == "" {
			continue
		}
		order = removeName(order, name)
		order = append([]string{name}, order...)
	}

	if err := m.persist(ctx, order); err != nil {
		return nil, err
	}
	metrics.RotationUpdates.WithLabelValues("retreat").Inc()
	m.logger.Debug("Rotation retreated",
		zap.Strings("unassigned", unassignedNames),
		zap.Int("order_len", len(order)))
	return order, nil
}

func (m *Manager) persist(ctx context.Context, order []string) error {
	if err := m.props.SetProperty(ctx, PropertyKey, strings.Join(order, "\n")); err != nil {
		return fmt.Errorf("failed to persist rotation order: %w", err)
	}
	return nil
}

// removeName drops every occurrence of name from order, matching
// case-insensitively on the trimmed form.
func removeName(order []string, name string) []string {
	want := model.NormalizeName(name)
	out := order[:0]
	for _, n := range order {
		if model.NormalizeName(n) != want {
			out = append(out, n)
		}
	}
	return out
}

func splitOrder(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
