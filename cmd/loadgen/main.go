package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/adapter/storage"
	"github.com/campuscafe/ordering/internal/core/domain"
	"github.com/campuscafe/ordering/internal/core/service"
	"github.com/campuscafe/ordering/internal/port"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/cafe?parseTime=true"
	totalRequests = 50
	racedOrders   = 20
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	repo := storage.NewMySQLAdapter(db)
	catalog := storage.NewMySQLMenuCatalog(db)
	if err := catalog.SeedMenu(ctx, storage.DefaultMenu()); err != nil {
		log.Fatalf("failed to seed menu: %v", err)
	}

	loads := service.NewLoadEstimator(repo)
	calc := service.NewPrepTimeCalculator(catalog, service.EstimatorConfig{})
	orders := service.NewOrderService(repo, loads, calc, nil, nil, service.Config{})

	// Phase 1: concurrent creations against a shared backlog.
	var createOK, createFail atomic.Int32
	var mu sync.Mutex
	var createdIDs []string

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			items := []domain.OrderLineItem{
				{Name: "Biryani", Quantity: 1, UnitPrice: decimal.NewFromInt(300)},
			}
			created, err := orders.CreateOrder(ctx, service.CreateOrderInput{
				UserID:        fmt.Sprintf("user-%d", userID),
				Items:         items,
				DeclaredTotal: domain.LineTotal(items),
				PaymentMethod: domain.PaymentMethodCOD,
				Customer: domain.CustomerDetails{
					Name:    fmt.Sprintf("Load Tester %d", userID),
					Phone:   "0300-0000000",
					Address: "Test Lane 1",
				},
			})
			if err != nil {
				createFail.Add(1)
				return
			}
			createOK.Add(1)
			mu.Lock()
			createdIDs = append(createdIDs, created.Order.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Phase 2: race two conflicting transitions per order.
	var winners, losers, unexpected atomic.Int32
	for i := 0; i < racedOrders && i < len(createdIDs); i++ {
		id := createdIDs[i]
		var raceWG sync.WaitGroup
		for _, target := range []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCancelled} {
			raceWG.Add(1)
			go func(target domain.OrderStatus) {
				defer raceWG.Done()
				_, err := orders.Transition(ctx, id, target)
				switch {
				case err == nil:
					winners.Add(1)
				case errors.Is(err, port.ErrConflict):
					losers.Add(1)
				default:
					var invalid *domain.InvalidTransitionError
					if errors.As(err, &invalid) {
						losers.Add(1)
					} else {
						unexpected.Add(1)
					}
				}
			}(target)
		}
		raceWG.Wait()
	}

	fmt.Println("========== LOAD GENERATOR RESULTS ==========")
	fmt.Printf("Creations:          %d ok / %d failed in %v\n", createOK.Load(), createFail.Load(), elapsed)
	fmt.Printf("Raced transitions:  %d winners / %d losers / %d unexpected\n",
		winners.Load(), losers.Load(), unexpected.Load())
	fmt.Println("============================================")

	if createFail.Load() != 0 {
		fmt.Println("FAIL: some creations failed")
	}
	raced := int32(min(racedOrders, len(createdIDs)))
	if winners.Load() == raced && losers.Load() == raced && unexpected.Load() == 0 {
		fmt.Println("PASS: every raced order had exactly one winner")
	} else {
		fmt.Printf("FAIL: expected %d winners and %d losers\n", raced, raced)
	}
}
