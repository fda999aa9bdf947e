package simulator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/routing"
)

// action adapts a simulator method to models.Action.
type action struct {
	name string
	run  func(ctx context.Context, ec models.EventContext) (models.EventContext, error)
}

func (a action) Name() string { return a.name }

func (a action) Run(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	return a.run(ctx, ec)
}

// pipeline returns the actions an event category runs in the simulator's mode.
func (s *Simulator) pipeline(eventType string) []models.Action {
	switch eventType {
	case models.EventCreate:
		return []models.Action{
			action{"planPath", s.planPath},
			action{"reserveFirstLeg", s.reserveFirstLeg},
		}
	case models.EventLeave:
		return []models.Action{action{"releaseLeg", s.releaseLeg}}
	case models.EventExpire:
		return []models.Action{action{"expireLink", s.expireLink}}
	case models.EventArrive:
		if s.dynamic() {
			return []models.Action{
				action{"applyDelay", s.applyDelay},
				action{"replan", s.replan},
			}
		}
		return []models.Action{
			action{"releaseLeg", s.releaseLeg},
			action{"reserveNextLeg", s.reserveNextLeg},
		}
	case models.EventDeliver:
		return []models.Action{action{"retireOrder", s.retireOrder}}
	}
	return nil
}

// planPath registers a new order and commits its initial plan. An order
// without a path stays in the tracker with no events and strands.
func (s *Simulator) planPath(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	order := ec.Order
	state, err := s.Tracker.Register(order)
	if err != nil {
		return ec, err
	}

	legs, cost, network, err := s.plan(ctx, order, order.OriginZone, order.CreatedOn)
	if err != nil {
		if !routing.IsPlanningFailure(err) {
			return ec, err
		}
		log.Printf("Order %s: planning from %s to %s failed: %v", order.TrackingNo, order.OriginZone, order.DestinationZone, err)
		s.fail(order, err.Error(), order.CreatedOn)
		state.Stranded = true
		ec.Halt = true
		return ec, nil
	}

	s.record(models.SimulationResult{
		TrackingNo: order.TrackingNo,
		Path:       describePath(order, legs),
		TotalCost:  cost,
		Status:     models.ResultStatusPlanned,
		PlannedAt:  order.CreatedOn,
	})
	s.Stats.Planned++
	s.Metrics.Plans.WithLabelValues("planned").Inc()

	if _, err := s.Tracker.Commit(order.TrackingNo, legs, network); err != nil {
		return ec, err
	}

	switch {
	case len(legs) == 0:
		s.scheduleDeliver(state, order.CreatedOn)
	case s.dynamic():
		s.scheduleLeg(state, 0)
	default:
		// deliver goes in first so the last arrive at the same instant runs
		// before it
		s.scheduleDeliver(state, legs[len(legs)-1].Link.EndDate)
		for i := range legs {
			s.scheduleLeg(state, i)
		}
	}
	return ec, nil
}

func (s *Simulator) reserveFirstLeg(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	state, ok := s.Tracker.Lookup(ec.TrackingNo)
	if !ok || len(state.Legs) == 0 {
		return ec, nil
	}
	return ec, s.Tracker.Increment(ctx, ec.TrackingNo, state.Legs[0].Link)
}

func (s *Simulator) releaseLeg(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	if ec.Leg == nil {
		return ec, fmt.Errorf("no leg in context")
	}
	return ec, s.Tracker.Decrement(ctx, ec.TrackingNo, ec.Leg.Link)
}

func (s *Simulator) expireLink(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	if ec.Leg == nil {
		return ec, fmt.Errorf("no leg in context")
	}
	return ec, s.Tracker.Expire(ctx, ec.Leg.Link)
}

// reserveNextLeg reserves the leg after the one just completed.
func (s *Simulator) reserveNextLeg(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	state, ok := s.Tracker.Lookup(ec.TrackingNo)
	if !ok {
		return ec, fmt.Errorf("order %s not tracked", ec.TrackingNo)
	}
	next := ec.LegIndex + 1
	state.Current = next
	if next >= len(state.Legs) {
		return ec, nil
	}
	return ec, s.Tracker.Increment(ctx, ec.TrackingNo, state.Legs[next].Link)
}

// applyDelay draws an arrival delay and stores the actual arrival time.
func (s *Simulator) applyDelay(_ context.Context, ec models.EventContext) (models.EventContext, error) {
	if ec.Leg == nil {
		return ec, fmt.Errorf("no leg in context")
	}
	ec.Delay = s.Delays.Draw()
	ec.Arrival = ec.Leg.Link.EndDate.Add(ec.Delay)
	ec.Conditions = DelayConditions(ec.Delay)
	s.Metrics.ArrivalDelay.Observe(ec.Delay.Hours())
	return ec, nil
}

func (s *Simulator) retireOrder(ctx context.Context, ec models.EventContext) (models.EventContext, error) {
	if _, ok := s.Tracker.Lookup(ec.TrackingNo); !ok {
		return ec, fmt.Errorf("order %s not tracked", ec.TrackingNo)
	}
	if err := s.Tracker.Retire(ctx, ec.TrackingNo); err != nil {
		return ec, err
	}
	s.Stats.Delivered++
	s.orderFinished()
	return ec, nil
}

// fail records a terminal result for a planning failure.
func (s *Simulator) fail(order *models.Order, conditions string, at time.Time) {
	s.record(models.SimulationResult{
		TrackingNo: order.TrackingNo,
		Conditions: conditions,
		Status:     models.ResultStatusFailed,
		PlannedAt:  at,
	})
	s.Stats.Failed++
	s.Metrics.Plans.WithLabelValues("failed").Inc()
	s.orderFinished()
}

func describePath(order *models.Order, legs []models.Leg) string {
	if len(legs) == 0 {
		return order.OriginZone
	}
	return routing.Describe(legs)
}
