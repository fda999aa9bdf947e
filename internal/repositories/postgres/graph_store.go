package postgres

import (
	"context"
	"fmt"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GraphStore struct {
	pool *pgxpool.Pool
}

func NewGraphStore(pool *pgxpool.Pool) *GraphStore {
	return &GraphStore{pool: pool}
}

func (r *GraphStore) Build(ctx context.Context, nodes []*models.Node, links []*models.Link, clearExisting bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if clearExisting {
		if _, err := tx.Exec(ctx, `TRUNCATE network_links, network_nodes`); err != nil {
			return fmt.Errorf("clear graph: %w", err)
		}
	}

	for _, node := range nodes {
		attributes := node.Attributes
		if attributes == nil {
			attributes = map[string]string{}
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO network_nodes (name, label, attributes)
            VALUES ($1, $2, $3)
            ON CONFLICT (name) DO UPDATE SET label = EXCLUDED.label, attributes = EXCLUDED.attributes
        `, node.Name, node.Label, attributes)
		if err != nil {
			return fmt.Errorf("insert node %s: %w", node.Name, err)
		}
	}

	for _, link := range links {
		restricted := link.RestrictedMerchants
		if restricted == nil {
			restricted = []string{}
		}
		linkType := link.Type
		if linkType == "" {
			linkType = models.DefaultLinkType
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO network_links (
                id, from_node, to_node, link_type, cost, start_date, end_date,
                payment_type, restricted_merchants, operated_by
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
            ON CONFLICT (id) DO UPDATE SET
                link_type = EXCLUDED.link_type,
                cost = EXCLUDED.cost,
                start_date = EXCLUDED.start_date,
                end_date = EXCLUDED.end_date,
                payment_type = EXCLUDED.payment_type,
                restricted_merchants = EXCLUDED.restricted_merchants,
                operated_by = EXCLUDED.operated_by
        `,
			link.ID,
			link.From,
			link.To,
			linkType,
			link.Cost,
			link.StartDate,
			link.EndDate,
			link.PaymentType,
			restricted,
			link.OperatedBy,
		)
		if err != nil {
			return fmt.Errorf("insert link %s: %w", link.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Filter loads the links the order is allowed to use and keeps those lying on
// a bounded simple path between origin and destination.
func (r *GraphStore) Filter(ctx context.Context, q repositories.FilterQuery) (*models.Network, error) {
	network := models.NewNetwork()

	rows, err := r.pool.Query(ctx, `SELECT name, label, attributes FROM network_nodes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		node := &models.Node{}
		if err := rows.Scan(&node.Name, &node.Label, &node.Attributes); err != nil {
			return nil, err
		}
		network.AddNode(node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var at any
	if !q.At.IsZero() {
		at = q.At
	}
	linkRows, err := r.pool.Query(ctx, `
        SELECT
            id, from_node, to_node, link_type, cost, start_date, end_date,
            payment_type, restricted_merchants, operated_by, order_count
        FROM network_links
        WHERE payment_type IN ($1, $2)
          AND NOT ($3 = ANY(restricted_merchants))
          AND ($4::timestamptz IS NULL OR end_date > $4::timestamptz)
        ORDER BY seq
    `, models.PaymentTypeBoth, q.PaymentType, q.MerchantID, at)
	if err != nil {
		return nil, err
	}
	defer linkRows.Close()
	for linkRows.Next() {
		link := &models.Link{}
		err := linkRows.Scan(
			&link.ID,
			&link.From,
			&link.To,
			&link.Type,
			&link.Cost,
			&link.StartDate,
			&link.EndDate,
			&link.PaymentType,
			&link.RestrictedMerchants,
			&link.OperatedBy,
			&link.OrderCount,
		)
		if err != nil {
			return nil, err
		}
		if err := network.AddLink(link); err != nil {
			return nil, err
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, err
	}

	return repositories.ReachableSubnetwork(network, q), nil
}

func (r *GraphStore) Reserve(ctx context.Context, trackingNo, linkID string) error {
	return r.updateOrderCount(ctx, linkID,
		`UPDATE network_links SET order_count = array_append(order_count, $2) WHERE id = $1`, trackingNo)
}

func (r *GraphStore) Release(ctx context.Context, trackingNo, linkID string) error {
	return r.updateOrderCount(ctx, linkID,
		`UPDATE network_links SET order_count = array_remove(order_count, $2) WHERE id = $1`, trackingNo)
}

func (r *GraphStore) Expire(ctx context.Context, linkID string) error {
	return r.updateOrderCount(ctx, linkID,
		`UPDATE network_links SET order_count = '{}' WHERE id = $1`)
}

func (r *GraphStore) Close() error {
	r.pool.Close()
	return nil
}

func (r *GraphStore) updateOrderCount(ctx context.Context, linkID, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, append([]any{linkID}, args...)...)
	if err != nil {
		return fmt.Errorf("update order_count on %s: %w", linkID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link %q not found", linkID)
	}
	return nil
}
