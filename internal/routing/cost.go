package routing

import (
	"fmt"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
)

// CostPolicy maps a link and the time an order is ready to take it onto a
// scalar cost.
type CostPolicy interface {
	Name() string
	Cost(link *models.Link, reference time.Time) (float64, error)
}

type financialCost struct{}

func (financialCost) Name() string { return models.CostFactorFinancial }

func (financialCost) Cost(link *models.Link, _ time.Time) (float64, error) {
	return link.Cost, nil
}

type durationCost struct{}

func (durationCost) Name() string { return models.CostFactorDuration }

// Cost returns the hours from reference until the link arrives, including any
// wait for the departure.
func (durationCost) Cost(link *models.Link, reference time.Time) (float64, error) {
	return HoursBetween(reference, link.EndDate)
}

var (
	Financial CostPolicy = financialCost{}
	Duration  CostPolicy = durationCost{}
)

// ParseCostPolicy accepts financial/cost and duration/time.
func ParseCostPolicy(name string) (CostPolicy, error) {
	factor, err := models.NormalizeCostFactor(name)
	if err != nil {
		return nil, err
	}
	if factor == models.CostFactorFinancial {
		return Financial, nil
	}
	return Duration, nil
}

// HoursBetween returns whole days * 24 plus the remaining whole seconds / 3600.
func HoursBetween(from, to time.Time) (float64, error) {
	if to.Before(from) {
		return 0, fmt.Errorf("%w: %s precedes %s", ErrInvalidInterval,
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	diff := to.Sub(from)
	days := diff / (24 * time.Hour)
	seconds := (diff - days*24*time.Hour) / time.Second
	return float64(days)*24 + float64(seconds)/3600, nil
}
