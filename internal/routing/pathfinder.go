// Package routing finds time-dependent paths through a scheduled network.
package routing

import (
	"fmt"
	"slices"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
)

// pathTableEntry is the per-node search state of one FindPath call.
type pathTableEntry struct {
	costToStart float64
	heuristic   float64
	fValue      float64
	prevNode    string
	link        *models.Link
	arrival     time.Time
	label       string
}

// FindPath searches network for a path from origin to destination for an
// order ready at start. At each hop the earliest departure after the order
// reaches the node is taken. The frontier expands the open node with the
// highest f-value, so the result is not guaranteed to be the cheapest path.
func FindPath(network *models.Network, origin, destination string, start time.Time, policy CostPolicy) ([]models.Leg, float64, error) {
	originNode, ok := network.Node(origin)
	if !ok {
		return nil, 0, fmt.Errorf("%w: origin %q not in network", ErrNoPathFound, origin)
	}
	if _, ok := network.Node(destination); !ok {
		return nil, 0, fmt.Errorf("%w: destination %q not in network", ErrNoPathFound, destination)
	}
	if origin == destination {
		return []models.Leg{}, 0, nil
	}

	table := map[string]*pathTableEntry{
		origin: {arrival: start, label: originNode.Label},
	}
	tableOrder := []string{origin}
	opened := []string{origin}
	closed := make(map[string]bool)

	current := origin
	arrival := start
	for current != destination {
		for _, nbr := range network.Neighbors(current) {
			if slices.Contains(opened, nbr) || closed[nbr] {
				continue
			}
			link, err := earliestDeparture(network.LinksBetween(current, nbr), arrival)
			if err != nil {
				return nil, 0, fmt.Errorf("%s -> %s after %s: %w", current, nbr, arrival.Format(time.RFC3339), err)
			}
			cost, err := policy.Cost(link, arrival)
			if err != nil {
				return nil, 0, fmt.Errorf("link %s: %w", link.ID, err)
			}
			costToStart := table[current].costToStart + cost
			f := costToStart + heuristic()

			entry, seen := table[nbr]
			if !seen || f < entry.fValue {
				nbrNode, _ := network.Node(nbr)
				table[nbr] = &pathTableEntry{
					costToStart: costToStart,
					heuristic:   heuristic(),
					fValue:      f,
					prevNode:    current,
					link:        link,
					arrival:     link.EndDate,
					label:       nbrNode.Label,
				}
				if !seen {
					tableOrder = append(tableOrder, nbr)
				}
			}
			opened = append(opened, nbr)
		}

		opened = slices.DeleteFunc(opened, func(n string) bool { return n == current })
		closed[current] = true
		if len(opened) == 0 {
			return nil, 0, fmt.Errorf("%w: %s unreachable from %s", ErrNoPathFound, destination, origin)
		}

		current = highestOpen(table, tableOrder, opened)
		arrival = table[current].arrival
	}

	var legs []models.Leg
	for node := destination; node != origin; {
		entry := table[node]
		prev := table[entry.prevNode]
		legs = append(legs, models.Leg{
			From: models.NodeRef{Name: entry.prevNode, Label: prev.label},
			To:   models.NodeRef{Name: node, Label: entry.label},
			Link: entry.link,
		})
		node = entry.prevNode
	}
	slices.Reverse(legs)

	return legs, table[destination].costToStart, nil
}

// earliestDeparture picks the link with the earliest start strictly after t.
func earliestDeparture(links []*models.Link, t time.Time) (*models.Link, error) {
	var best *models.Link
	for _, l := range links {
		if !l.StartDate.After(t) {
			continue
		}
		if best == nil || l.StartDate.Before(best.StartDate) {
			best = l
		}
	}
	if best == nil {
		return nil, ErrNoAvailableDeparture
	}
	return best, nil
}

// highestOpen returns the open node with the maximum f-value. Ties go to the
// node that entered the table first.
func highestOpen(table map[string]*pathTableEntry, tableOrder, opened []string) string {
	var best string
	for _, node := range tableOrder {
		if !slices.Contains(opened, node) {
			continue
		}
		if best == "" || table[node].fValue > table[best].fValue {
			best = node
		}
	}
	return best
}

func heuristic() float64 { return 0 }

// TotalCost sums a path under policy starting from start, mirroring how
// FindPath accumulates leg costs.
func TotalCost(legs []models.Leg, start time.Time, policy CostPolicy) (float64, error) {
	var total float64
	ref := start
	for _, leg := range legs {
		c, err := policy.Cost(leg.Link, ref)
		if err != nil {
			return 0, err
		}
		total += c
		ref = leg.Link.EndDate
	}
	return total, nil
}

// Describe renders a path as "A(LABEL) -[carrier]-> B(LABEL) ...".
func Describe(legs []models.Leg) string {
	if len(legs) == 0 {
		return ""
	}
	out := fmt.Sprintf("%s(%s)", legs[0].From.Name, legs[0].From.Label)
	for _, leg := range legs {
		carrier := leg.Link.OperatedBy
		if carrier == "" {
			carrier = leg.Link.ID
		}
		out += fmt.Sprintf(" -[%s]-> %s(%s)", carrier, leg.To.Name, leg.To.Label)
	}
	return out
}
