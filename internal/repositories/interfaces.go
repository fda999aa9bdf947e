package repositories

import (
	"context"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
)

// FilterQuery selects the sub-network an order may travel through.
type FilterQuery struct {
	Origin      string
	Destination string
	PaymentType string
	MerchantID  string
	MaxHops     int
	// At drops links that have already arrived by this time. Zero keeps all.
	At time.Time
}

// GraphStore persists the network and answers sub-network queries.
type GraphStore interface {
	Build(ctx context.Context, nodes []*models.Node, links []*models.Link, clearExisting bool) error
	// Filter returns a private copy of the sub-network, or nil when the
	// destination cannot be reached under the query's constraints.
	Filter(ctx context.Context, q FilterQuery) (*models.Network, error)
	Reserve(ctx context.Context, trackingNo, linkID string) error
	Release(ctx context.Context, trackingNo, linkID string) error
	Expire(ctx context.Context, linkID string) error
	Close() error
}

// ResultRepository stores simulation results.
type ResultRepository interface {
	BulkCreate(ctx context.Context, results []*models.SimulationResult) error
	Create(ctx context.Context, result *models.SimulationResult) error
	GetByTrackingNo(ctx context.Context, trackingNo string) ([]*models.SimulationResult, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
