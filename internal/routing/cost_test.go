package routing

import (
	"errors"
	"testing"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
)

func TestHoursBetween(t *testing.T) {
	tests := []struct {
		name string
		diff time.Duration
		want float64
	}{
		{"zero", 0, 0},
		{"half hour", 30 * time.Minute, 0.5},
		{"three hours", 3 * time.Hour, 3},
		{"over a day", 26*time.Hour + 15*time.Minute, 26.25},
		{"sub-second dropped", 2*time.Hour + 500*time.Millisecond, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := HoursBetween(t0, t0.Add(tc.diff))
			if err != nil {
				t.Fatalf("HoursBetween: %v", err)
			}
			if got != tc.want {
				t.Fatalf("HoursBetween = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDurationCostRejectsNegativeInterval(t *testing.T) {
	link := &models.Link{ID: "x", Cost: 4, EndDate: t0.Add(-time.Minute)}
	if _, err := Duration.Cost(link, t0); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}

func TestCostNonNegative(t *testing.T) {
	link := &models.Link{ID: "x", Cost: 4, StartDate: t0.Add(time.Hour), EndDate: t0.Add(5 * time.Hour)}
	for _, policy := range []CostPolicy{Financial, Duration} {
		c, err := policy.Cost(link, t0)
		if err != nil {
			t.Fatalf("%s: %v", policy.Name(), err)
		}
		if c < 0 {
			t.Fatalf("%s cost = %v, want >= 0", policy.Name(), c)
		}
	}
	if c, _ := Duration.Cost(link, t0); c != 5 {
		t.Fatalf("duration cost = %v, want 5", c)
	}
}

func TestParseCostPolicy(t *testing.T) {
	tests := map[string]string{
		"financial": models.CostFactorFinancial,
		"cost":      models.CostFactorFinancial,
		"duration":  models.CostFactorDuration,
		"time":      models.CostFactorDuration,
		"":          models.CostFactorDuration,
	}
	for in, want := range tests {
		p, err := ParseCostPolicy(in)
		if err != nil {
			t.Fatalf("ParseCostPolicy(%q): %v", in, err)
		}
		if p.Name() != want {
			t.Fatalf("ParseCostPolicy(%q) = %s, want %s", in, p.Name(), want)
		}
	}
	if _, err := ParseCostPolicy("distance"); err == nil {
		t.Fatalf("ParseCostPolicy(distance) succeeded, want error")
	}
}
