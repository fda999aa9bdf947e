package repositories

import (
	"maps"

	"github.com/chrisdamba/routesim/internal/models"
)

// Eligible reports whether a link satisfies the query's payment, merchant and
// time constraints.
func (q FilterQuery) Eligible(l *models.Link) bool {
	if !l.Accepts(q.PaymentType, q.MerchantID) {
		return false
	}
	return q.At.IsZero() || l.EndDate.After(q.At)
}

// ReachableSubnetwork returns a copy of the union of all simple paths from
// q.Origin to q.Destination of at most q.MaxHops eligible links, or nil when
// there is none.
func ReachableSubnetwork(network *models.Network, q FilterQuery) *models.Network {
	if _, ok := network.Node(q.Origin); !ok {
		return nil
	}
	if _, ok := network.Node(q.Destination); !ok {
		return nil
	}
	maxHops := q.MaxHops
	if maxHops <= 0 {
		maxHops = models.DefaultMaxHops
	}
	if q.Origin == q.Destination {
		node, _ := network.Node(q.Origin)
		out := models.NewNetwork()
		c := *node
		c.Attributes = maps.Clone(node.Attributes)
		out.AddNode(&c)
		return out
	}

	// node pairs with at least one eligible link
	eligible := make(map[string]map[string][]*models.Link)
	for _, from := range nodeNames(network) {
		for _, to := range network.Neighbors(from) {
			for _, l := range network.LinksBetween(from, to) {
				if !q.Eligible(l) {
					continue
				}
				if eligible[from] == nil {
					eligible[from] = make(map[string][]*models.Link)
				}
				eligible[from][to] = append(eligible[from][to], l)
			}
		}
	}

	keep := make(map[string]bool)
	onPath := map[string]bool{q.Origin: true}
	path := []string{q.Origin}

	var walk func(node string)
	walk = func(node string) {
		if node == q.Destination {
			for i := 0; i+1 < len(path); i++ {
				for _, l := range eligible[path[i]][path[i+1]] {
					keep[l.ID] = true
				}
			}
			return
		}
		if len(path) > maxHops {
			return
		}
		for _, next := range network.Neighbors(node) {
			if onPath[next] || len(eligible[node][next]) == 0 {
				continue
			}
			onPath[next] = true
			path = append(path, next)
			walk(next)
			path = path[:len(path)-1]
			delete(onPath, next)
		}
	}
	walk(q.Origin)

	if len(keep) == 0 {
		return nil
	}
	return network.Subset(keep)
}

func nodeNames(network *models.Network) []string {
	nodes := network.Nodes()
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}
