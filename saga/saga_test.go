package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
	"github.com/fxsml/choreo/store"
	"github.com/fxsml/choreo/store/redisstore"
)

type recorder struct {
	mu   sync.Mutex
	envs []*event.Envelope
}

func (r *recorder) Handle(_ context.Context, env *event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recorder) kinds(orderID string) []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Kind
	for _, env := range r.envs {
		if env.CorrelationID() == orderID {
			out = append(out, env.Kind())
		}
	}
	return out
}

func (r *recorder) find(orderID string, kind event.Kind) *event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, env := range r.envs {
		if env.CorrelationID() == orderID && env.Kind() == kind {
			return env
		}
	}
	return nil
}

type faults struct {
	mu   sync.Mutex
	errs map[string][]error
}

func (f *faults) handle(_ context.Context, subscriber string, _ *event.Envelope, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string][]error)
	}
	f.errs[subscriber] = append(f.errs[subscriber], err)
}

func (f *faults) count(subscriber string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs[subscriber])
}

func (f *faults) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, errs := range f.errs {
		n += len(errs)
	}
	return n
}

func newSystem(t *testing.T, cfg Config) (*System, *recorder, *faults) {
	t.Helper()
	f := &faults{}
	if cfg.Bus.ErrorHandler == nil {
		cfg.Bus.ErrorHandler = f.handle
	}
	sys, err := New(cfg)
	if err != nil {
		t.Fatalf("new system: %v", err)
	}
	t.Cleanup(sys.Shutdown)

	rec := &recorder{}
	if err := sys.Subscribe("recorder", rec); err != nil {
		t.Fatalf("subscribe recorder: %v", err)
	}
	return sys, rec, f
}

func settle(t *testing.T, sys *System) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sys.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func expectStatus(t *testing.T, sys *System, orderID string, want store.Status) {
	t.Helper()
	got, ok := sys.Status(orderID)
	if !ok {
		t.Fatalf("expected status for %s, got none", orderID)
	}
	if got != want {
		t.Errorf("%s: expected status %s, got %s", orderID, want, got)
	}
}

func expectReserved(t *testing.T, sys *System, productID string, want int) {
	t.Helper()
	got, err := sys.Reserved(context.Background(), productID)
	if err != nil {
		t.Fatalf("reserved: %v", err)
	}
	if got != want {
		t.Errorf("expected %d reserved for %s, got %d", want, productID, got)
	}
}

func TestSystem_HappyPath(t *testing.T) {
	sys, rec, f := newSystem(t, Config{Decider: Approve})

	if err := sys.CreateOrder(context.Background(), "o1"); err != nil {
		t.Fatalf("create order: %v", err)
	}
	settle(t, sys)

	expectStatus(t, sys, "o1", store.StatusPaymentSucceeded)
	expectReserved(t, sys, DefaultProductID, 1)

	paid := rec.find("o1", event.KindPaymentSucceeded)
	if paid == nil {
		t.Fatal("expected PaymentSucceeded")
	}
	if amount := paid.Event().(event.PaymentSucceeded).Amount; amount != SampleAmount {
		t.Errorf("expected amount %d, got %d", SampleAmount, amount)
	}
	if f.total() != 0 {
		t.Errorf("expected no handler faults, got %d", f.total())
	}
	if sys.inventory.Outstanding() != 0 {
		t.Errorf("expected settled ledger, got %d outstanding", sys.inventory.Outstanding())
	}
}

func TestSystem_InventoryFailure(t *testing.T) {
	sys, rec, _ := newSystem(t, Config{Decider: Approve})

	if _, err := sys.PlaceOrder(context.Background(), Order{ID: "o2", Items: []string{"sku-1"}, Quantity: 6, Amount: 100}); err != nil {
		t.Fatalf("place order: %v", err)
	}
	settle(t, sys)

	expectStatus(t, sys, "o2", store.StatusCancelled)
	expectReserved(t, sys, DefaultProductID, 0)

	failed := rec.find("o2", event.KindInventoryFailed)
	if failed == nil {
		t.Fatal("expected InventoryFailed")
	}
	if reason := failed.Event().(event.InventoryFailed).Reason; reason != event.ReasonNotEnoughStock {
		t.Errorf("expected reason %q, got %q", event.ReasonNotEnoughStock, reason)
	}
	for _, k := range rec.kinds("o2") {
		if k == event.KindPaymentSucceeded || k == event.KindPaymentFailed {
			t.Errorf("unexpected payment event %s", k)
		}
	}
}

func TestSystem_PaymentFailureCompensates(t *testing.T) {
	sys, rec, _ := newSystem(t, Config{Decider: Decline})

	if _, err := sys.PlaceOrder(context.Background(), Order{ID: "o3", Quantity: 3, Amount: 4200}); err != nil {
		t.Fatalf("place order: %v", err)
	}
	settle(t, sys)

	expectStatus(t, sys, "o3", store.StatusCancelled)
	expectReserved(t, sys, DefaultProductID, 0)

	if rec.find("o3", event.KindInventoryReserved) == nil {
		t.Error("expected InventoryReserved before compensation")
	}
	declined := rec.find("o3", event.KindPaymentFailed)
	if declined == nil {
		t.Fatal("expected PaymentFailed")
	}
	if reason := declined.Event().(event.PaymentFailed).Reason; reason != event.ReasonCardDeclined {
		t.Errorf("expected reason %q, got %q", event.ReasonCardDeclined, reason)
	}
	released := rec.find("o3", event.KindInventoryFailed)
	if released == nil {
		t.Fatal("expected compensating InventoryFailed")
	}
	if reason := released.Event().(event.InventoryFailed).Reason; reason != event.ReasonPaymentFailed {
		t.Errorf("expected reason %q, got %q", event.ReasonPaymentFailed, reason)
	}
}

func TestSystem_CompensationRestoresPriorQuantity(t *testing.T) {
	sys, _, _ := newSystem(t, Config{
		Decider: DeciderFunc(func(_ context.Context, ev event.InventoryReserved) bool {
			return ev.OrderID == "keep"
		}),
	})

	_ = sys.CreateOrder(context.Background(), "keep")
	settle(t, sys)
	expectReserved(t, sys, DefaultProductID, 1)

	_, _ = sys.PlaceOrder(context.Background(), Order{ID: "drop", Quantity: 2})
	settle(t, sys)

	expectReserved(t, sys, DefaultProductID, 1)
	expectStatus(t, sys, "keep", store.StatusPaymentSucceeded)
	expectStatus(t, sys, "drop", store.StatusCancelled)
}

func TestSystem_SpuriousCompensationIsHarmless(t *testing.T) {
	sys, _, f := newSystem(t, Config{})

	env := event.New("ghost", event.PaymentFailed{OrderID: "ghost", Reason: event.ReasonCardDeclined})
	if err := sys.Bus().Publish(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	settle(t, sys)

	expectReserved(t, sys, DefaultProductID, 0)
	expectStatus(t, sys, "ghost", store.StatusCancelled)
	if f.total() != 0 {
		t.Errorf("expected no handler faults, got %d", f.total())
	}
}

func TestSystem_FanOutIsolation(t *testing.T) {
	sys, _, f := newSystem(t, Config{Decider: Approve})

	err := sys.Subscribe("flaky", bus.HandlerFunc(func(_ context.Context, env *event.Envelope) error {
		if env.Kind() == event.KindOrderCreated {
			return errors.New("flaky observer")
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	_ = sys.Subscribe("panicky", bus.HandlerFunc(func(_ context.Context, env *event.Envelope) error {
		if env.Kind() == event.KindInventoryReserved {
			panic("observer panic")
		}
		return nil
	}))

	_ = sys.CreateOrder(context.Background(), "o4")
	settle(t, sys)

	expectStatus(t, sys, "o4", store.StatusPaymentSucceeded)
	if f.count("flaky") != 1 {
		t.Errorf("expected 1 fault from flaky, got %d", f.count("flaky"))
	}
	if f.count("panicky") != 1 {
		t.Errorf("expected 1 fault from panicky, got %d", f.count("panicky"))
	}
}

func TestSystem_NoCrossTalk(t *testing.T) {
	sys, _, _ := newSystem(t, Config{
		Capacity: 5,
		Decider: DeciderFunc(func(_ context.Context, ev event.InventoryReserved) bool {
			var n int
			_, _ = fmt.Sscanf(ev.OrderID, "o%d", &n)
			return n%2 == 0
		}),
	})

	const orders = 40
	var wg sync.WaitGroup
	for i := range orders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sys.CreateOrder(context.Background(), fmt.Sprintf("o%d", i)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	settle(t, sys)

	for i := range orders {
		want := store.StatusCancelled
		if i%2 == 0 {
			want = store.StatusPaymentSucceeded
		}
		expectStatus(t, sys, fmt.Sprintf("o%d", i), want)
	}
	expectReserved(t, sys, DefaultProductID, orders/2)
}

func TestSystem_UnknownEventIgnored(t *testing.T) {
	sys, _, f := newSystem(t, Config{Decider: Approve})

	env, err := event.NewRaw("ShipmentDispatched", "o5", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Bus().Publish(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	settle(t, sys)

	if _, ok := sys.Status("o5"); ok {
		t.Error("expected no status for unknown event")
	}
	if len(sys.Statuses()) != 0 {
		t.Errorf("expected empty status store, got %v", sys.Statuses())
	}
	expectReserved(t, sys, DefaultProductID, 0)
	if f.total() != 0 {
		t.Errorf("expected no handler faults, got %d", f.total())
	}
}

func TestSystem_PlaceOrderGeneratesID(t *testing.T) {
	sys, _, _ := newSystem(t, Config{Decider: Approve})

	id, err := sys.PlaceOrder(context.Background(), Order{Items: []string{"sku-9"}, Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected generated order id")
	}
	settle(t, sys)
	expectStatus(t, sys, id, store.StatusPaymentSucceeded)
}

func TestSystem_PlaceOrderInvalid(t *testing.T) {
	sys, _, _ := newSystem(t, Config{})

	if _, err := sys.PlaceOrder(context.Background(), Order{ID: "bad", Amount: -1}); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestSystem_Shutdown(t *testing.T) {
	sys, _, _ := newSystem(t, Config{})
	sys.Shutdown()

	if err := sys.CreateOrder(context.Background(), "late"); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSystem_HandlerTimeout(t *testing.T) {
	sys, _, f := newSystem(t, Config{Decider: Approve, HandlerTimeout: 10 * time.Millisecond})

	_ = sys.Subscribe("slow", bus.HandlerFunc(func(ctx context.Context, _ *event.Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	_ = sys.CreateOrder(context.Background(), "o6")
	settle(t, sys)

	expectStatus(t, sys, "o6", store.StatusPaymentSucceeded)
	if f.count("slow") == 0 {
		t.Error("expected slow observer to time out")
	}
}

func TestSystem_RedisReservations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sys, _, _ := newSystem(t, Config{
		Decider:      Approve,
		Reservations: redisstore.New(client, redisstore.Config{}),
	})

	_ = sys.CreateOrder(context.Background(), "o7")
	settle(t, sys)

	expectStatus(t, sys, "o7", store.StatusPaymentSucceeded)
	if got, _ := mr.Get(redisstore.DefaultKeyPrefix + DefaultProductID); got != "1" {
		t.Errorf("expected 1 in redis, got %q", got)
	}
}

func TestSystem_StoreFaultLeavesSagaShort(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	sys, _, f := newSystem(t, Config{
		Decider:      Approve,
		Reservations: redisstore.New(client, redisstore.Config{}),
	})

	_ = sys.CreateOrder(context.Background(), "o8")
	settle(t, sys)

	expectStatus(t, sys, "o8", store.StatusCreated)
	if f.count(SubscriberInventory) != 1 {
		t.Errorf("expected 1 inventory fault, got %d", f.count(SubscriberInventory))
	}
}

func TestDeciders(t *testing.T) {
	ctx := context.Background()
	ev := event.InventoryReserved{OrderID: "o1", ProductID: DefaultProductID, Quantity: 1}

	if !Approve.Approve(ctx, ev) {
		t.Error("expected Approve to approve")
	}
	if Decline.Approve(ctx, ev) {
		t.Error("expected Decline to decline")
	}
	for range 100 {
		if !Probability(1).Approve(ctx, ev) {
			t.Fatal("expected Probability(1) to always approve")
		}
		if Probability(0).Approve(ctx, ev) {
			t.Fatal("expected Probability(0) to never approve")
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		ev   event.Event
		want store.Status
	}{
		{event.OrderCreated{OrderID: "o"}, store.StatusCreated},
		{event.InventoryReserved{OrderID: "o"}, store.StatusInventoryReserved},
		{event.PaymentSucceeded{OrderID: "o"}, store.StatusPaymentSucceeded},
		{event.InventoryFailed{OrderID: "o"}, store.StatusCancelled},
		{event.PaymentFailed{OrderID: "o"}, store.StatusCancelled},
	}
	for _, tt := range tests {
		got, ok := StatusOf(tt.ev)
		if !ok || got != tt.want {
			t.Errorf("%s: expected %s, got %s (%v)", tt.ev.Kind(), tt.want, got, ok)
		}
	}
	if _, ok := StatusOf(nil); ok {
		t.Error("expected nil event to map to no status")
	}
}

func TestStatusProjector_KeysByCorrelationID(t *testing.T) {
	statuses := store.NewOrderStatuses()
	p := NewStatusProjector(statuses, nil)
	ctx := context.Background()

	_ = p.Handle(ctx, event.New("corr-1", event.PaymentFailed{OrderID: "payload-1", Reason: event.ReasonCardDeclined}))
	_ = p.Handle(ctx, event.New("", event.PaymentSucceeded{OrderID: "payload-2", Amount: SampleAmount}))

	if got, ok := statuses.Get("corr-1"); !ok || got != store.StatusCancelled {
		t.Errorf("expected corr-1 to be %s, got (%s, %v)", store.StatusCancelled, got, ok)
	}
	if _, ok := statuses.Get("payload-1"); ok {
		t.Error("expected no status under the payload order id")
	}
	if got, ok := statuses.Get("payload-2"); !ok || got != store.StatusPaymentSucceeded {
		t.Errorf("expected fallback to payload-2, got (%s, %v)", got, ok)
	}
}

func TestSystem_OrderProduct(t *testing.T) {
	sys, rec, _ := newSystem(t, Config{
		Decider: DeciderFunc(func(_ context.Context, ev event.InventoryReserved) bool {
			return ev.OrderID == "paid"
		}),
	})
	ctx := context.Background()

	_, _ = sys.PlaceOrder(ctx, Order{ID: "paid", ProductID: "product-7", Quantity: 2, Amount: 100})
	_, _ = sys.PlaceOrder(ctx, Order{ID: "declined", ProductID: "product-8", Quantity: 3, Amount: 100})
	settle(t, sys)

	expectStatus(t, sys, "paid", store.StatusPaymentSucceeded)
	expectStatus(t, sys, "declined", store.StatusCancelled)
	expectReserved(t, sys, "product-7", 2)
	expectReserved(t, sys, "product-8", 0)
	expectReserved(t, sys, DefaultProductID, 0)

	reserved := rec.find("declined", event.KindInventoryReserved)
	if reserved == nil {
		t.Fatal("expected InventoryReserved for declined order")
	}
	if got := reserved.Event().(event.InventoryReserved).ProductID; got != "product-8" {
		t.Errorf("expected product-8, got %q", got)
	}
}
