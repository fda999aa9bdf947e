package simulator

import (
	"context"
	"fmt"
	"log"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/routing"
)

const missedDeparture = "Missed departure"

// replan runs when an order arrives at the end of a leg in dynamic mode. At a
// hub the order is replanned from the arrived node. Elsewhere it stays on the
// next committed leg and the rest of the trip is replanned from where that
// leg ends.
func (s *Simulator) replan(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	state, ok := s.Tracker.Lookup(ec.TrackingNo)
	if !ok {
		return ec, fmt.Errorf("order %s not tracked", ec.TrackingNo)
	}
	order := state.Order
	leg := ec.Leg
	if err := s.Tracker.Decrement(ctx, order.TrackingNo, leg.Link); err != nil {
		return ec, err
	}

	arrived := leg.To.Name
	if arrived == order.DestinationZone {
		state.Current = ec.LegIndex + 1
		s.scheduleDeliver(state, ec.Arrival)
		return ec, nil
	}

	origin, at := arrived, ec.Arrival
	var continuing *models.Leg
	hub := leg.To.Label == models.LabelHub
	if node, ok := s.nodeOf(state, arrived); ok {
		hub = node.IsHub()
	}
	if !hub {
		next := ec.LegIndex + 1
		switch {
		case next >= len(state.Legs):
			origin = order.DestinationZone
		case !state.Legs[next].Link.StartDate.After(ec.Arrival):
			log.Printf("Order %s missed %s at %s", order.TrackingNo, state.Legs[next], arrived)
			ec.Conditions += "; " + missedDeparture
		default:
			l := state.Legs[next]
			continuing = &l
			origin = l.To.Name
			// the continuing leg leaves on schedule; its own delay is drawn
			// when it arrives
			at = l.Link.EndDate
		}
	}

	if origin == order.DestinationZone {
		if continuing == nil {
			log.Printf("Order %s at %s has no committed leg left", order.TrackingNo, arrived)
			state.Stranded = true
			s.orderFinished()
			return ec, nil
		}
		return ec, s.continueOn(ctx, state, []models.Leg{*continuing}, state.Network)
	}

	legs, _, network, err := s.plan(ctx, order, origin, at)
	if err != nil {
		if !routing.IsPlanningFailure(err) {
			return ec, err
		}
		if continuing != nil {
			log.Printf("Order %s: replanning from %s failed, keeping committed plan: %v", order.TrackingNo, origin, err)
			remaining := append([]models.Leg(nil), state.Legs[ec.LegIndex+1:]...)
			return ec, s.continueOn(ctx, state, remaining, state.Network)
		}
		log.Printf("Order %s: replanning from %s failed: %v", order.TrackingNo, origin, err)
		s.fail(order, ec.Conditions+"; "+err.Error(), at)
		state.Stranded = true
		ec.Halt = true
		return ec, nil
	}
	if continuing != nil {
		legs = append([]models.Leg{*continuing}, legs...)
	}
	cost, err := routing.TotalCost(legs, ec.Arrival, s.Policy)
	if err != nil {
		return ec, err
	}

	s.record(models.SimulationResult{
		TrackingNo: order.TrackingNo,
		Conditions: ec.Conditions,
		Path:       routing.Describe(legs),
		TotalCost:  cost,
		Status:     models.ResultStatusPlanned,
		PlannedAt:  at,
	})
	s.Stats.Replanned++
	s.Metrics.Plans.WithLabelValues("replanned").Inc()
	return ec, s.continueOn(ctx, state, legs, network)
}

// continueOn commits legs, reserves the first one and schedules its events.
func (s *Simulator) continueOn(ctx context.Context, state *OrderState, legs []models.Leg, network *models.Network) error {
	if _, err := s.Tracker.Commit(state.Order.TrackingNo, legs, network); err != nil {
		return err
	}
	if err := s.Tracker.Increment(ctx, state.Order.TrackingNo, legs[0].Link); err != nil {
		return err
	}
	s.scheduleLeg(state, 0)
	return nil
}

// nodeOf looks a node up in the order's working network.
func (s *Simulator) nodeOf(state *OrderState, name string) (*models.Node, bool) {
	if state.Network == nil {
		return nil, false
	}
	return state.Network.Node(name)
}
