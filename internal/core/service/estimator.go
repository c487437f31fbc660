package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/campuscafe/ordering/internal/core/domain"
	"github.com/campuscafe/ordering/internal/port"
)

const (
	// batchFloor bounds the batch-efficiency discount: a large batch is
	// never estimated below 60% of naive linear prep time.
	batchFloor = 0.6

	// laborFloor avoids runaway inflation when reported labor drops far
	// below capacity.
	laborFloor = 0.5

	// queuePressureCap bounds the backlog penalty at +10 minutes.
	queuePressureCap = 10.0

	peakHoursFactor = 1.10
)

// LoadEstimator counts how many line items similar to a candidate order are
// already sitting in the open backlog. It is advisory only: a storage failure
// degrades to zero instead of failing the caller.
type LoadEstimator struct {
	repo port.OrderRepository
}

func NewLoadEstimator(repo port.OrderRepository) *LoadEstimator {
	return &LoadEstimator{repo: repo}
}

// CountSimilarQueued scans every open order and counts each (queued line,
// candidate line) pair whose names match exactly. Quantities do not multiply
// into the count; the count is of matching line entries, not units.
func (e *LoadEstimator) CountSimilarQueued(ctx context.Context, items []domain.OrderLineItem) int {
	open, err := e.repo.FindOpenOrders(ctx)
	if err != nil {
		slog.WarnContext(ctx, "backlog scan failed, assuming empty queue", "error", err)
		return 0
	}

	count := 0
	for _, order := range open {
		for _, queued := range order.Items {
			for _, candidate := range items {
				if queued.Name == candidate.Name {
					count++
				}
			}
		}
	}
	return count
}

// EstimatorConfig carries the knobs that are fixed per deployment.
type EstimatorConfig struct {
	// ApplyCap enables the dynamic bound on the final estimate
	// (10 minute floor, 20 + up-to-15 complexity ceiling). Disabled by
	// default to match the uncapped production behavior.
	ApplyCap bool
}

// PrepTimeCalculator turns an order's line items, kitchen labor and queue
// pressure into a single estimated-minutes value. Deterministic: same inputs,
// same output.
type PrepTimeCalculator struct {
	catalog port.MenuCatalog
	cfg     EstimatorConfig
}

func NewPrepTimeCalculator(catalog port.MenuCatalog, cfg EstimatorConfig) *PrepTimeCalculator {
	return &PrepTimeCalculator{catalog: catalog, cfg: cfg}
}

type EstimateInput struct {
	AvailableLabor  float64 // fraction of full staffing, floored at 0.5
	SimilarQueued   int
	PeakHours       bool
	SpecialRequests bool
}

// Estimate computes the preparation ETA in whole minutes. Items without a
// catalog entry contribute nothing; quantities above one earn a diminishing
// batch discount floored at 60% of linear time.
func (c *PrepTimeCalculator) Estimate(ctx context.Context, items []domain.OrderLineItem, in EstimateInput) (int, error) {
	totalTime := 0.0

	for _, item := range items {
		entry, err := c.catalog.FindByName(ctx, item.Name)
		if err != nil {
			return 0, fmt.Errorf("catalog lookup %q: %w", item.Name, err)
		}
		if entry == nil {
			continue
		}

		itemTime := entry.PrepMinutes * float64(item.Quantity)
		if item.Quantity > 1 {
			itemTime *= math.Max(batchFloor, 1-0.2*math.Log10(float64(item.Quantity)))
		}
		if in.SpecialRequests {
			itemTime++ // flat minute per line, not per unit
		}
		totalTime += itemTime
	}

	totalTime /= math.Max(laborFloor, in.AvailableLabor)
	totalTime += math.Min(float64(in.SimilarQueued)*2, queuePressureCap)
	if in.PeakHours {
		totalTime *= peakHoursFactor
	}

	if c.cfg.ApplyCap {
		maxTime := 20 + math.Min(float64(len(items))*5, 15)
		totalTime = math.Max(10, totalTime)
		totalTime = math.Min(maxTime, totalTime)
	}

	return int(math.Round(totalTime)), nil
}
