package tests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/campuscafe/ordering/internal/adapter/storage"
	"github.com/campuscafe/ordering/internal/core/domain"
	"github.com/campuscafe/ordering/internal/core/service"
	"github.com/campuscafe/ordering/internal/port"
)

type testEnv struct {
	db      *sql.DB
	redis   *redis.Client
	repo    *storage.MySQLAdapter
	relay   *storage.RedisAdapter
	orders  *service.OrderService
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/cafe?parseTime=true"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ctx := context.Background()
	if err := storage.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	repo := storage.NewMySQLAdapter(db)
	catalog := storage.NewMySQLMenuCatalog(db)
	if err := catalog.SeedMenu(ctx, storage.DefaultMenu()); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	relay := storage.NewRedisAdapter(rdb)

	loads := service.NewLoadEstimator(repo)
	calc := service.NewPrepTimeCalculator(catalog, service.EstimatorConfig{})
	orders := service.NewOrderService(repo, loads, calc, nil, relay, service.Config{})

	// Isolate from previous runs: the load estimator scans every open order.
	db.Exec(`DELETE FROM order_items WHERE order_id IN (SELECT id FROM orders WHERE user_id LIKE 'it-user-%')`)
	db.Exec(`DELETE FROM orders WHERE user_id LIKE 'it-user-%'`)
	db.Exec(`UPDATE orders SET status = 'completed' WHERE status NOT IN ('completed', 'cancelled')`)

	return &testEnv{
		db:     db,
		redis:  rdb,
		repo:   repo,
		relay:  relay,
		orders: orders,
		cleanup: func() {
			db.Exec(`DELETE FROM order_items WHERE order_id IN (SELECT id FROM orders WHERE user_id LIKE 'it-user-%')`)
			db.Exec(`DELETE FROM orders WHERE user_id LIKE 'it-user-%'`)
			rdb.Close()
			db.Close()
		},
	}
}

func codOrder(user string, name string, qty int, price int64) service.CreateOrderInput {
	items := []domain.OrderLineItem{
		{Name: name, Quantity: qty, UnitPrice: decimal.NewFromInt(price)},
	}
	return service.CreateOrderInput{
		UserID:        user,
		Items:         items,
		DeclaredTotal: domain.LineTotal(items),
		PaymentMethod: domain.PaymentMethodCOD,
		Customer: domain.CustomerDetails{
			Name:    "Integration Tester",
			Phone:   "0300-7777777",
			Address: "Main Campus Gate",
		},
	}
}

func TestCreateOrder_EndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	created, err := env.orders.CreateOrder(ctx, codOrder("it-user-1", "Zinger Burger", 1, 250))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if created.Order.EstimatedTime != 9 { // 7 / 0.8 rounded
		t.Errorf("expected 9 minute estimate, got %d", created.Order.EstimatedTime)
	}

	found, err := env.repo.FindOrder(ctx, created.Order.ID)
	if err != nil {
		t.Fatalf("FindOrder failed: %v", err)
	}
	if found.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", found.Status)
	}
	if found.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected payment pending, got %s", found.PaymentStatus)
	}
}

func TestQueuePressure_EndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := env.orders.CreateOrder(ctx, codOrder(fmt.Sprintf("it-user-q%d", i), "Biryani", 1, 300)); err != nil {
			t.Fatalf("seed order failed: %v", err)
		}
	}

	created, err := env.orders.CreateOrder(ctx, codOrder("it-user-3", "Biryani", 1, 300))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// 5 / 0.8 + min(2*2, 10) = 10.25 -> 10
	if created.Order.EstimatedTime != 10 {
		t.Errorf("expected 10 minute estimate with two queued Biryani, got %d", created.Order.EstimatedTime)
	}
}

func TestTransitionRace_EndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	created, err := env.orders.CreateOrder(ctx, codOrder("it-user-race", "Biryani", 1, 300))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	id := created.Order.ID

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for _, target := range []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCancelled} {
		wg.Add(1)
		go func(target domain.OrderStatus) {
			defer wg.Done()
			_, err := env.orders.Transition(ctx, id, target)
			if err == nil {
				successCount.Add(1)
				return
			}
			var invalid *domain.InvalidTransitionError
			if !errors.Is(err, port.ErrConflict) && !errors.As(err, &invalid) {
				t.Errorf("unexpected race error: %v", err)
			}
		}(target)
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", successCount.Load())
	}

	found, _ := env.repo.FindOrder(ctx, id)
	if found.Status != domain.OrderStatusProcessing && found.Status != domain.OrderStatusCancelled {
		t.Errorf("order in unexpected state %s", found.Status)
	}
}

func TestStatusChange_PublishedToRelay(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	created, err := env.orders.CreateOrder(ctx, codOrder("it-user-relay", "Biryani", 1, 300))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	id := created.Order.ID

	sub := env.redis.Subscribe(ctx, "orders:"+id)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := env.orders.Transition(ctx, id, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload == "" {
			t.Error("empty relay payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status notification on order channel")
	}
}
