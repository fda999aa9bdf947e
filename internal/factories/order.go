package factories

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/jaswdr/faker"
)

var paymentTypes = []string{"COD", "PREPAID"}

// OrderFactory generates synthetic orders between the zones of a network.
type OrderFactory struct {
	rng       *rand.Rand
	merchants []string
}

func NewOrderFactory(seed int64) *OrderFactory {
	rng := rand.New(rand.NewSource(seed))
	fake := faker.NewWithSeed(rand.NewSource(seed))
	merchants := make([]string, 5)
	for i := range merchants {
		merchants[i] = strings.ToLower(strings.ReplaceAll(fake.Company().Name(), " ", "-"))
	}
	return &OrderFactory{rng: rng, merchants: merchants}
}

// zones returns the coverage areas of the network, or every node when it
// has none.
func zones(network *models.Network) []string {
	var out, all []string
	for _, node := range network.Nodes() {
		all = append(all, node.Name)
		if node.Label == models.LabelCoverageArea {
			out = append(out, node.Name)
		}
	}
	if len(out) < 2 {
		return all
	}
	return out
}

// CreateOrders returns n orders created uniformly in [start, end).
func (f *OrderFactory) CreateOrders(network *models.Network, n int, start, end time.Time) ([]*models.Order, error) {
	candidates := zones(network)
	if len(candidates) < 2 {
		return nil, fmt.Errorf("need at least two zones to generate orders, have %d", len(candidates))
	}
	if !end.After(start) {
		return nil, fmt.Errorf("order window %s..%s is empty", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	window := end.Sub(start)

	orders := make([]*models.Order, 0, n)
	for i := 0; i < n; i++ {
		origin := candidates[f.rng.Intn(len(candidates))]
		destination := origin
		for destination == origin {
			destination = candidates[f.rng.Intn(len(candidates))]
		}
		createdOn := start.Add(time.Duration(f.rng.Int63n(int64(window)))).Truncate(time.Minute)
		orders = append(orders, &models.Order{
			TrackingNo:      fmt.Sprintf("RS%08X%04d", f.rng.Uint32(), i),
			OriginZone:      origin,
			DestinationZone: destination,
			CreatedOn:       createdOn,
			PaymentType:     paymentTypes[f.rng.Intn(len(paymentTypes))],
			AgentApp:        f.merchants[f.rng.Intn(len(f.merchants))],
		})
	}
	return orders, nil
}
