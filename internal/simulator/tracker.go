package simulator

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/repositories"
)

// OrderState is an in-flight order and its committed plan.
type OrderState struct {
	Order *models.Order
	Legs  []models.Leg
	// Current indexes the leg the order is on or waiting for.
	Current int
	// Network is the sub-network the current plan was computed on.
	Network  *models.Network
	Stranded bool
}

// Tracker is the registry of in-flight orders and link occupancy. Every
// occupancy change is mirrored to the graph store.
type Tracker struct {
	store     repositories.GraphStore
	orders    map[string]*OrderState
	occupancy map[string][]string // link id -> tracking numbers
	holding   map[string]string   // tracking number -> link id
}

func NewTracker(store repositories.GraphStore) *Tracker {
	return &Tracker{
		store:     store,
		orders:    make(map[string]*OrderState),
		occupancy: make(map[string][]string),
		holding:   make(map[string]string),
	}
}

// Register adds an order to the registry. Registering an order twice is an
// error: tracking numbers are unique.
func (t *Tracker) Register(order *models.Order) (*OrderState, error) {
	if _, ok := t.orders[order.TrackingNo]; ok {
		return nil, fmt.Errorf("order %s already registered", order.TrackingNo)
	}
	state := &OrderState{Order: order}
	t.orders[order.TrackingNo] = state
	return state, nil
}

// Commit replaces the order's plan.
func (t *Tracker) Commit(trackingNo string, legs []models.Leg, network *models.Network) (*OrderState, error) {
	state, ok := t.orders[trackingNo]
	if !ok {
		return nil, fmt.Errorf("order %s not tracked", trackingNo)
	}
	state.Legs = legs
	state.Current = 0
	state.Network = network
	return state, nil
}

func (t *Tracker) Lookup(trackingNo string) (*OrderState, bool) {
	state, ok := t.orders[trackingNo]
	return state, ok
}

// Retire removes a delivered order and releases whatever it still holds.
func (t *Tracker) Retire(ctx context.Context, trackingNo string) error {
	if linkID, ok := t.holding[trackingNo]; ok {
		if err := t.release(ctx, trackingNo, linkID, nil); err != nil {
			return err
		}
	}
	delete(t.orders, trackingNo)
	return nil
}

// Increment reserves link for the order. An order holds at most one link, so
// any previous reservation is released first.
func (t *Tracker) Increment(ctx context.Context, trackingNo string, link *models.Link) error {
	if current, ok := t.holding[trackingNo]; ok {
		if current == link.ID {
			return nil
		}
		if err := t.release(ctx, trackingNo, current, nil); err != nil {
			return err
		}
	}
	t.occupancy[link.ID] = append(t.occupancy[link.ID], trackingNo)
	t.holding[trackingNo] = link.ID
	link.OrderCount = slices.Clone(t.occupancy[link.ID])
	if err := t.store.Reserve(ctx, trackingNo, link.ID); err != nil {
		return fmt.Errorf("reserve %s on %s: %w", trackingNo, link.ID, err)
	}
	return nil
}

// Decrement releases the order's reservation on link. It is a no-op when the
// order does not hold it.
func (t *Tracker) Decrement(ctx context.Context, trackingNo string, link *models.Link) error {
	if !slices.Contains(t.occupancy[link.ID], trackingNo) {
		link.OrderCount = slices.Clone(t.occupancy[link.ID])
		return nil
	}
	return t.release(ctx, trackingNo, link.ID, link)
}

// Expire clears every reservation on link.
func (t *Tracker) Expire(ctx context.Context, link *models.Link) error {
	for _, trackingNo := range t.occupancy[link.ID] {
		if t.holding[trackingNo] == link.ID {
			delete(t.holding, trackingNo)
		}
	}
	delete(t.occupancy, link.ID)
	link.OrderCount = nil
	if err := t.store.Expire(ctx, link.ID); err != nil {
		return fmt.Errorf("expire %s: %w", link.ID, err)
	}
	return nil
}

func (t *Tracker) release(ctx context.Context, trackingNo, linkID string, link *models.Link) error {
	remaining := slices.DeleteFunc(t.occupancy[linkID], func(tn string) bool { return tn == trackingNo })
	if len(remaining) == 0 {
		delete(t.occupancy, linkID)
	} else {
		t.occupancy[linkID] = remaining
	}
	if t.holding[trackingNo] == linkID {
		delete(t.holding, trackingNo)
	}
	if link != nil {
		link.OrderCount = slices.Clone(remaining)
	}
	if err := t.store.Release(ctx, trackingNo, linkID); err != nil {
		return fmt.Errorf("release %s from %s: %w", trackingNo, linkID, err)
	}
	return nil
}

// OrderCount returns the tracking numbers holding a reservation on a link.
func (t *Tracker) OrderCount(linkID string) []string {
	return slices.Clone(t.occupancy[linkID])
}

// Holding returns the link an order currently holds.
func (t *Tracker) Holding(trackingNo string) (string, bool) {
	id, ok := t.holding[trackingNo]
	return id, ok
}

// Reservations returns a copy of the occupancy table.
func (t *Tracker) Reservations() map[string][]string {
	out := make(map[string][]string, len(t.occupancy))
	for id, tns := range t.occupancy {
		out[id] = slices.Clone(tns)
	}
	return out
}

func (t *Tracker) Len() int { return len(t.orders) }

// Active returns the tracked orders sorted by tracking number.
func (t *Tracker) Active() []*OrderState {
	out := make([]*OrderState, 0, len(t.orders))
	for _, state := range t.orders {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Order.TrackingNo < out[j].Order.TrackingNo
	})
	return out
}
