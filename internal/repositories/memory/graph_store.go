package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/repositories"
)

// GraphStore keeps the network in process. Filter hands out deep copies.
type GraphStore struct {
	network *models.Network
}

func NewGraphStore() *GraphStore {
	return &GraphStore{network: models.NewNetwork()}
}

func (s *GraphStore) Build(ctx context.Context, nodes []*models.Node, links []*models.Link, clearExisting bool) error {
	if clearExisting {
		s.network = models.NewNetwork()
	}
	for _, node := range nodes {
		s.network.AddNode(node)
	}
	for _, link := range links {
		if existing, ok := s.network.Link(link.ID); ok {
			if existing.From != link.From || existing.To != link.To {
				return fmt.Errorf("building graph: link %q moved from %s->%s to %s->%s",
					link.ID, existing.From, existing.To, link.From, link.To)
			}
			// merge: keep occupancy, take the new attributes
			occupancy := existing.OrderCount
			*existing = *link
			existing.OrderCount = occupancy
			continue
		}
		if err := s.network.AddLink(link); err != nil {
			return fmt.Errorf("building graph: %w", err)
		}
	}
	return nil
}

func (s *GraphStore) Filter(ctx context.Context, q repositories.FilterQuery) (*models.Network, error) {
	return repositories.ReachableSubnetwork(s.network, q), nil
}

func (s *GraphStore) Reserve(ctx context.Context, trackingNo, linkID string) error {
	link, err := s.link(linkID)
	if err != nil {
		return err
	}
	link.OrderCount = append(link.OrderCount, trackingNo)
	return nil
}

func (s *GraphStore) Release(ctx context.Context, trackingNo, linkID string) error {
	link, err := s.link(linkID)
	if err != nil {
		return err
	}
	link.OrderCount = slices.DeleteFunc(link.OrderCount, func(t string) bool { return t == trackingNo })
	return nil
}

func (s *GraphStore) Expire(ctx context.Context, linkID string) error {
	link, err := s.link(linkID)
	if err != nil {
		return err
	}
	link.OrderCount = nil
	return nil
}

func (s *GraphStore) Close() error { return nil }

// Network exposes the stored network for inspection.
func (s *GraphStore) Network() *models.Network { return s.network }

func (s *GraphStore) link(id string) (*models.Link, error) {
	link, ok := s.network.Link(id)
	if !ok {
		return nil, fmt.Errorf("link %q not found", id)
	}
	return link, nil
}
