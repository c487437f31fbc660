package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/core/domain"
)

// mockCatalog is a fixed in-memory menu keyed by name.
type mockCatalog struct {
	entries map[string]domain.MenuEntry
}

func newMockCatalog() *mockCatalog {
	entries := map[string]domain.MenuEntry{}
	for _, e := range []domain.MenuEntry{
		{Name: "Plain Fries", UnitPrice: decimal.NewFromInt(130), PrepMinutes: 5, Available: true},
		{Name: "Zinger Burger", UnitPrice: decimal.NewFromInt(250), PrepMinutes: 7, Available: true},
		{Name: "Spaghetti", UnitPrice: decimal.NewFromInt(300), PrepMinutes: 10, Available: true},
		{Name: "Biryani", UnitPrice: decimal.NewFromInt(300), PrepMinutes: 5, Available: true},
		{Name: "Bar B Q Platter", UnitPrice: decimal.NewFromInt(800), PrepMinutes: 20, Available: true},
	} {
		entries[e.Name] = e
	}
	return &mockCatalog{entries: entries}
}

func (m *mockCatalog) FindByName(ctx context.Context, name string) (*domain.MenuEntry, error) {
	entry, ok := m.entries[name]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func lineItems(pairs ...any) []domain.OrderLineItem {
	items := make([]domain.OrderLineItem, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		items = append(items, domain.OrderLineItem{
			Name:      pairs[i].(string),
			Quantity:  pairs[i+1].(int),
			UnitPrice: decimal.NewFromInt(1),
		})
	}
	return items
}

func estimate(t *testing.T, calc *PrepTimeCalculator, items []domain.OrderLineItem, in EstimateInput) int {
	t.Helper()
	got, err := calc.Estimate(context.Background(), items, in)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	return got
}

func TestEstimate_SingleItem(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})

	// 7 / 0.8 = 8.75 -> 9
	got := estimate(t, calc, lineItems("Zinger Burger", 1), EstimateInput{AvailableLabor: 0.8})
	if got != 9 {
		t.Errorf("expected 9 minutes, got %d", got)
	}
}

func TestEstimate_BatchDiscount(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})

	// 7*3 * (1 - 0.2*log10(3)) = 18.996; / 0.8 = 23.745 -> 24
	got := estimate(t, calc, lineItems("Zinger Burger", 3), EstimateInput{AvailableLabor: 0.8})
	if got != 24 {
		t.Errorf("expected 24 minutes, got %d", got)
	}
}

func TestEstimate_BatchDiscountFloor(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})

	// log10(1000) = 3 would push the factor to 0.4; it must floor at 0.6.
	// 7*1000 * 0.6 / 0.8 = 5250
	got := estimate(t, calc, lineItems("Zinger Burger", 1000), EstimateInput{AvailableLabor: 0.8})
	if got != 5250 {
		t.Errorf("expected floored batch estimate 5250, got %d", got)
	}
}

func TestEstimate_QueuePressure(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})
	items := lineItems("Zinger Burger", 1)

	// Base 8.75, +2 per similar queued line, capped at +10.
	cases := []struct {
		similar int
		want    int
	}{
		{0, 9},  // 8.75
		{2, 13}, // 12.75
		{5, 19}, // 18.75, cap reached
		{7, 19}, // still capped
	}
	for _, tc := range cases {
		got := estimate(t, calc, items, EstimateInput{AvailableLabor: 0.8, SimilarQueued: tc.similar})
		if got != tc.want {
			t.Errorf("similarQueued=%d: expected %d, got %d", tc.similar, tc.want, got)
		}
	}
}

func TestEstimate_LaborFloor(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})
	items := lineItems("Zinger Burger", 1)

	atFloor := estimate(t, calc, items, EstimateInput{AvailableLabor: 0.5})
	belowFloor := estimate(t, calc, items, EstimateInput{AvailableLabor: 0.1})
	if atFloor != belowFloor {
		t.Errorf("labor below 0.5 must floor to 0.5: got %d vs %d", belowFloor, atFloor)
	}
	if atFloor != 14 { // 7 / 0.5
		t.Errorf("expected 14 minutes at floored labor, got %d", atFloor)
	}
}

func TestEstimate_SpecialRequestsPerLine(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})
	items := lineItems("Zinger Burger", 2)

	// 14 * (1 - 0.2*log10(2)) = 13.157; / 0.8 = 16.45 -> 16
	plain := estimate(t, calc, items, EstimateInput{AvailableLabor: 0.8})
	// +1 flat per line (not per unit): 14.157 / 0.8 = 17.70 -> 18
	special := estimate(t, calc, items, EstimateInput{AvailableLabor: 0.8, SpecialRequests: true})

	if plain != 16 {
		t.Errorf("expected 16 without special requests, got %d", plain)
	}
	if special != 18 {
		t.Errorf("expected 18 with special requests, got %d", special)
	}
}

func TestEstimate_PeakHours(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})
	items := lineItems("Zinger Burger", 1)

	// 8.75 * 1.10 = 9.625 -> 10
	got := estimate(t, calc, items, EstimateInput{AvailableLabor: 0.8, PeakHours: true})
	if got != 10 {
		t.Errorf("expected 10 minutes at peak, got %d", got)
	}
}

func TestEstimate_UnknownItemSkipped(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})

	got := estimate(t, calc, lineItems("Zinger Burger", 1, "Unicorn Steak", 4), EstimateInput{AvailableLabor: 0.8})
	if got != 9 {
		t.Errorf("unknown item must contribute nothing: expected 9, got %d", got)
	}
}

func TestEstimate_EmptyOrder(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})

	got := estimate(t, calc, nil, EstimateInput{AvailableLabor: 0.8})
	if got != 0 {
		t.Errorf("expected 0 for empty order, got %d", got)
	}

	// The queue-pressure term applies even with no items.
	got = estimate(t, calc, nil, EstimateInput{AvailableLabor: 0.8, SimilarQueued: 3})
	if got != 6 {
		t.Errorf("expected 6 for empty order with backlog, got %d", got)
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{})
	items := lineItems("Zinger Burger", 3, "Biryani", 2, "Spaghetti", 1)
	in := EstimateInput{AvailableLabor: 0.8, SimilarQueued: 4, PeakHours: true, SpecialRequests: true}

	first := estimate(t, calc, items, in)
	for i := 0; i < 20; i++ {
		if got := estimate(t, calc, items, in); got != first {
			t.Fatalf("estimate not deterministic: %d vs %d", got, first)
		}
	}
}

func TestEstimate_DynamicCap(t *testing.T) {
	calc := NewPrepTimeCalculator(newMockCatalog(), EstimatorConfig{ApplyCap: true})

	// Ceiling: 20 + min(1*5, 15) = 25 for a single-line order.
	got := estimate(t, calc, lineItems("Zinger Burger", 1000), EstimateInput{AvailableLabor: 0.8})
	if got != 25 {
		t.Errorf("expected capped estimate 25, got %d", got)
	}

	// Floor: small orders are raised to 10 minutes.
	got = estimate(t, calc, lineItems("Plain Fries", 1), EstimateInput{AvailableLabor: 1})
	if got != 10 {
		t.Errorf("expected floored estimate 10, got %d", got)
	}
}

func TestEstimate_CatalogFailure(t *testing.T) {
	calc := NewPrepTimeCalculator(&failingCatalog{}, EstimatorConfig{})

	_, err := calc.Estimate(context.Background(), lineItems("Zinger Burger", 1), EstimateInput{AvailableLabor: 0.8})
	if err == nil {
		t.Fatal("expected catalog failure to propagate")
	}
}

type failingCatalog struct{}

func (f *failingCatalog) FindByName(ctx context.Context, name string) (*domain.MenuEntry, error) {
	return nil, errors.New("catalog down")
}

func TestCountSimilarQueued(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusPending, "Biryani")
	seedOrder(repo, "o2", domain.OrderStatusPending, "Biryani")
	seedOrder(repo, "o3", domain.OrderStatusProcessing, "Spaghetti")

	loads := NewLoadEstimator(repo)
	got := loads.CountSimilarQueued(context.Background(), lineItems("Biryani", 1))
	if got != 2 {
		t.Errorf("expected 2 similar queued lines, got %d", got)
	}
}

func TestCountSimilarQueued_ExcludesTerminalOrders(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusCompleted, "Biryani")
	seedOrder(repo, "o2", domain.OrderStatusCancelled, "Biryani")
	seedOrder(repo, "o3", domain.OrderStatusOutForDelivery, "Biryani")

	loads := NewLoadEstimator(repo)
	got := loads.CountSimilarQueued(context.Background(), lineItems("Biryani", 1))
	if got != 1 {
		t.Errorf("terminal orders must not count: expected 1, got %d", got)
	}
}

func TestCountSimilarQueued_RepeatedLinesCountEach(t *testing.T) {
	repo := newMockOrderRepo()
	// One open order with the same item on two separate lines.
	seedOrder(repo, "o1", domain.OrderStatusPending, "Biryani", "Biryani")

	loads := NewLoadEstimator(repo)
	got := loads.CountSimilarQueued(context.Background(), lineItems("Biryani", 1))
	if got != 2 {
		t.Errorf("expected per-line counting to give 2, got %d", got)
	}

	// Quantities do not multiply into the count.
	repo = newMockOrderRepo()
	repo.put(domain.Order{
		ID:     "o2",
		Status: domain.OrderStatusPending,
		Items:  []domain.OrderLineItem{{Name: "Biryani", Quantity: 5, UnitPrice: decimal.NewFromInt(300)}},
	})
	loads = NewLoadEstimator(repo)
	if got := loads.CountSimilarQueued(context.Background(), lineItems("Biryani", 1)); got != 1 {
		t.Errorf("quantity must not multiply the count: expected 1, got %d", got)
	}
}

func TestCountSimilarQueued_StorageFailureDegradesToZero(t *testing.T) {
	repo := newMockOrderRepo()
	repo.failOpenScan = true
	seedOrder(repo, "o1", domain.OrderStatusPending, "Biryani")

	loads := NewLoadEstimator(repo)
	if got := loads.CountSimilarQueued(context.Background(), lineItems("Biryani", 1)); got != 0 {
		t.Errorf("expected 0 on storage failure, got %d", got)
	}
}
