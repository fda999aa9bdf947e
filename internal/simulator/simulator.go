package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/repositories"
	"github.com/chrisdamba/routesim/internal/routing"
	"github.com/lucsky/cuid"
	"github.com/schollz/progressbar/v3"
)

const resultTopic = "simulation_results"

type Simulator struct {
	Config      models.Options
	Store       repositories.GraphStore
	Policy      routing.CostPolicy
	Tracker     *Tracker
	EventQueue  *models.EventQueue
	Delays      DelaySource
	Output      OutputDestination
	Metrics     *Metrics
	Results     []models.SimulationResult
	Stats       models.ResultMetrics
	CurrentTime time.Time
	Rng         *rand.Rand
	// Observer, when set, is called after every consumed event.
	Observer func(event *models.Event)

	progress *progressbar.ProgressBar
}

func NewSimulator(config models.Options, store repositories.GraphStore, seed int64) (*Simulator, error) {
	policy, err := routing.ParseCostPolicy(config.CostFactor)
	if err != nil {
		return nil, err
	}
	if config.MaxHops <= 0 {
		config.MaxHops = models.DefaultMaxHops
	}
	if config.ExpiryGrace <= 0 {
		config.ExpiryGrace = models.DefaultExpiryGrace
	}
	if config.Mode == "" {
		config.Mode = models.ModeStatic
	}
	rng := rand.New(rand.NewSource(seed))
	sim := &Simulator{
		Config:     config,
		Store:      store,
		Policy:     policy,
		Tracker:    NewTracker(store),
		EventQueue: models.NewEventQueue(),
		Delays:     NewWeightedDelay(rng, ArrivalDelays),
		Metrics:    NewMetrics(),
		Rng:        rng,
	}
	return sim, nil
}

func (s *Simulator) dynamic() bool { return s.Config.Mode == models.ModeDynamic }

// EnableProgress shows a progress bar on stderr advanced once per finished
// order.
func (s *Simulator) EnableProgress(total int) {
	s.progress = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("simulating orders"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// Seed schedules one create event per order.
func (s *Simulator) Seed(orders []*models.Order) {
	for _, order := range orders {
		s.EventQueue.Enqueue(&models.Event{
			Time:        order.CreatedOn,
			Type:        models.EventCreate,
			Description: fmt.Sprintf("create %s (%s -> %s)", order.TrackingNo, order.OriginZone, order.DestinationZone),
			Actions:     s.pipeline(models.EventCreate),
			Context:     models.EventContext{TrackingNo: order.TrackingNo, Order: order},
		})
	}
}

// RunOrders seeds the timeline with orders and drains it.
func (s *Simulator) RunOrders(ctx context.Context, orders []*models.Order) error {
	s.Seed(orders)
	return s.Run(ctx)
}

// Run consumes events in time order until the timeline is empty.
func (s *Simulator) Run(ctx context.Context) error {
	if s.EventQueue.IsEmpty() {
		return fmt.Errorf("run: %w", models.ErrEmptyTimeline)
	}
	first := s.EventQueue.Peek()
	log.Printf("Simulation starts at %s with %d queued events (%s cost, %s mode)",
		first.Time.Format(time.RFC3339), s.EventQueue.Len(), s.Policy.Name(), s.Config.Mode)

	var eventsCount int
	for !s.EventQueue.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("simulation interrupted at %s: %w", s.CurrentTime.Format(time.RFC3339), err)
		}
		event, err := s.EventQueue.Dequeue()
		if err != nil {
			return err
		}
		if event.Time.Before(s.CurrentTime) {
			return fmt.Errorf("event %q at %s is before current time %s",
				event.Description, event.Time.Format(time.RFC3339), s.CurrentTime.Format(time.RFC3339))
		}
		s.CurrentTime = event.Time

		if err := s.consume(ctx, event); err != nil {
			return fmt.Errorf("event %q at %s for %s: %w",
				event.Description, event.Time.Format(time.RFC3339), event.Context.TrackingNo, err)
		}
		eventsCount++
		s.Metrics.EventsProcessed.WithLabelValues(event.Type).Inc()
		s.Metrics.ActiveOrders.Set(float64(s.Tracker.Len()))
		if s.Observer != nil {
			s.Observer(event)
		}
		s.showProgress(eventsCount)
	}

	for _, state := range s.Tracker.Active() {
		log.Printf("Order %s stranded after %d committed legs", state.Order.TrackingNo, len(state.Legs))
	}
	s.Stats.Stranded = s.Tracker.Len()
	if s.progress != nil {
		_ = s.progress.Finish()
	}
	log.Printf("Simulation completed at %s: %d events, %d planned, %d replanned, %d failed, %d delivered, %d stranded",
		s.CurrentTime.Format(time.RFC3339), eventsCount,
		s.Stats.Planned, s.Stats.Replanned, s.Stats.Failed, s.Stats.Delivered, s.Stats.Stranded)
	return nil
}

// consume runs an event's actions in order, threading the context through.
func (s *Simulator) consume(ctx context.Context, event *models.Event) error {
	ec := event.Context
	for _, action := range event.Actions {
		var err error
		ec, err = action.Run(ctx, ec)
		if err != nil {
			return fmt.Errorf("%s: %w", action.Name(), err)
		}
		if ec.Halt {
			break
		}
	}
	return nil
}

func (s *Simulator) showProgress(eventsCount int) {
	if eventsCount%1000 == 0 {
		log.Printf("Current time: %s, Events processed: %d", s.CurrentTime.Format(time.RFC3339), eventsCount)
	}
}

func (s *Simulator) orderFinished() {
	if s.progress != nil {
		_ = s.progress.Add(1)
	}
}

// plan fetches a sub-network from the graph store and runs the path finder
// from origin at the given time. A nil network means the store found no
// path.
func (s *Simulator) plan(ctx context.Context, order *models.Order, origin string, at time.Time) ([]models.Leg, float64, *models.Network, error) {
	network, err := s.Store.Filter(ctx, repositories.FilterQuery{
		Origin:      origin,
		Destination: order.DestinationZone,
		PaymentType: order.PaymentType,
		MerchantID:  order.AgentApp,
		MaxHops:     s.Config.MaxHops,
		At:          at,
	})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("filter graph: %w", err)
	}
	if network == nil {
		return nil, 0, nil, fmt.Errorf("%w: no sub-network from %s to %s", routing.ErrNoPathFound, origin, order.DestinationZone)
	}
	legs, cost, err := routing.FindPath(network, origin, order.DestinationZone, at, s.Policy)
	if err != nil {
		return nil, 0, nil, err
	}
	return legs, cost, network, nil
}

// scheduleLeg enqueues the leave, expire and arrive events of one leg.
func (s *Simulator) scheduleLeg(state *OrderState, index int) {
	leg := state.Legs[index]
	order := state.Order
	ec := models.EventContext{TrackingNo: order.TrackingNo, Order: order, LegIndex: index, Leg: &leg}
	s.EventQueue.Enqueue(&models.Event{
		Time:        leg.Link.StartDate,
		Type:        models.EventLeave,
		Description: fmt.Sprintf("%s leaves %s", order.TrackingNo, leg),
		Actions:     s.pipeline(models.EventLeave),
		Context:     ec,
	})
	s.EventQueue.Enqueue(&models.Event{
		Time:        leg.Link.StartDate.Add(s.Config.ExpiryGrace),
		Type:        models.EventExpire,
		Description: fmt.Sprintf("expire reservations on %s", leg.Link.ID),
		Actions:     s.pipeline(models.EventExpire),
		Context:     ec,
	})
	s.EventQueue.Enqueue(&models.Event{
		Time:        leg.Link.EndDate,
		Type:        models.EventArrive,
		Description: fmt.Sprintf("%s arrives %s", order.TrackingNo, leg),
		Actions:     s.pipeline(models.EventArrive),
		Context:     ec,
	})
}

func (s *Simulator) scheduleDeliver(state *OrderState, at time.Time) {
	order := state.Order
	s.EventQueue.Enqueue(&models.Event{
		Time:        at,
		Type:        models.EventDeliver,
		Description: fmt.Sprintf("deliver %s at %s", order.TrackingNo, order.DestinationZone),
		Actions:     s.pipeline(models.EventDeliver),
		Context:     models.EventContext{TrackingNo: order.TrackingNo, Order: order},
	})
}

// record appends a result and writes it to the output destination.
func (s *Simulator) record(result models.SimulationResult) {
	result.ID = cuid.New()
	result.CostFactor = s.Policy.Name()
	s.Results = append(s.Results, result)

	if s.Output == nil {
		return
	}
	msg, err := serializeResult(result)
	if err != nil {
		log.Printf("Error serializing result for %s: %v", result.TrackingNo, err)
		return
	}
	if err := s.Output.WriteMessage(msg.Topic, msg.Message); err != nil {
		log.Printf("Failed to write message: %v", err)
	}
}

func serializeResult(result models.SimulationResult) (EventMessage, error) {
	data, err := json.Marshal(NewResultEvent(result))
	if err != nil {
		return EventMessage{}, err
	}
	return EventMessage{Topic: resultTopic, Message: data}, nil
}

// Close flushes and closes the output destination and the graph store.
func (s *Simulator) Close() error {
	var firstErr error
	if s.Output != nil {
		if err := s.Output.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
