package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/fashionnest/internal/domain/cart"
	"github.com/xenking/fashionnest/internal/domain/coupon"
	"github.com/xenking/fashionnest/internal/domain/order"
	"github.com/xenking/fashionnest/internal/domain/product"
	"github.com/xenking/fashionnest/internal/payment"
	"github.com/xenking/fashionnest/internal/storage/memory"
)

// --- Test fixture ---

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	carts    *memory.CartRepository
	products *memory.ProductRepository
	coupons  *memory.CouponRepository
	orders   *memory.OrderRepository
	notifier *recordingNotifier
}

type recordingNotifier struct {
	err  error
	sent chan string
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, o *order.Order) error {
	n.sent <- o.ID
	return n.err
}

func newFixture(t *testing.T, gateway payment.Gateway) *fixture {
	t.Helper()

	f := &fixture{
		carts:    memory.NewCartRepository(),
		products: memory.NewProductRepository(),
		coupons:  memory.NewCouponRepository(),
		orders:   memory.NewOrderRepository(),
		notifier: &recordingNotifier{sent: make(chan string, 16)},
	}
	if gateway == nil {
		gateway = payment.NewSandboxGateway(payment.SandboxConfig{})
	}
	f.svc = NewService(Config{}, f.carts, f.products, f.coupons, f.orders,
		gateway, f.notifier, zap.NewNop())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) seedProduct(t *testing.T, id string, price string, stock int) {
	t.Helper()
	err := f.products.Create(context.Background(), &product.Product{
		ID:     id,
		Slug:   id,
		Name:   "Product " + id,
		Price:  decimal.RequireFromString(price),
		Images: []string{"/images/" + id + ".jpg"},
		Sizes:  []product.Size{{Name: "M", Stock: stock}},
		Colors: []product.Color{{Name: "Black", Code: "#000000"}},
	})
	require.NoError(t, err)
}

func (f *fixture) seedCoupon(t *testing.T, c coupon.Coupon) {
	t.Helper()
	if c.StartDate.IsZero() {
		c.StartDate = testNow.AddDate(0, -1, 0)
	}
	if c.EndDate.IsZero() {
		c.EndDate = testNow.AddDate(0, 1, 0)
	}
	c.Active = true
	require.NoError(t, f.coupons.Create(context.Background(), &c))
}

func (f *fixture) fillCart(t *testing.T, userID string, lines ...cart.Line) *cart.Cart {
	t.Helper()
	c, err := f.carts.FindOrCreate(context.Background(), userID)
	require.NoError(t, err)
	for _, l := range lines {
		require.NoError(t, c.AddItem(l.ProductID, l.Quantity, l.Size, l.Color, l.UnitPrice))
	}
	require.NoError(t, f.carts.Save(context.Background(), c))
	return c
}

func (f *fixture) applyCoupon(t *testing.T, userID, code string, discount string) {
	t.Helper()
	c, err := f.carts.FindOrCreate(context.Background(), userID)
	require.NoError(t, err)
	c.ApplyCoupon(code, decimal.RequireFromString(discount))
	require.NoError(t, f.carts.Save(context.Background(), c))
}

func (f *fixture) sizeStock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.SizeStock("M")
}

func (f *fixture) usageCount(t *testing.T, code string) int {
	t.Helper()
	c, err := f.coupons.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return c.UsageCount
}

func line(productID string, qty int, price string) cart.Line {
	return cart.Line{
		ProductID: productID,
		Quantity:  qty,
		Size:      "M",
		Color:     "Black",
		UnitPrice: decimal.RequireFromString(price),
	}
}

func placeReq(userID string) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID: userID,
		ShippingAddress: order.Address{
			Street:  "1 Main St",
			City:    "Springfield",
			State:   "IL",
			ZipCode: "62701",
			Country: "US",
		},
		PaymentMethod: order.PaymentCreditCard,
		ShippingCost:  decimal.RequireFromString("5.99"),
	}
}

// --- Tests ---

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 10)
	f.seedProduct(t, "p2", "50.00", 10)
	f.seedCoupon(t, coupon.Coupon{
		Code:          "TENOFF",
		DiscountType:  coupon.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10),
	})
	f.fillCart(t, "u1", line("p1", 2, "40.00"), line("p2", 1, "50.00"))
	f.applyCoupon(t, "u1", "TENOFF", "10.00")

	o, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.NoError(t, err)

	assert.True(t, o.Subtotal.Equal(decimal.RequireFromString("130.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Tax.Equal(decimal.RequireFromString("13.00")), "tax %s", o.Tax)
	assert.True(t, o.Discount.Equal(decimal.RequireFromString("10.00")), "discount %s", o.Discount)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("138.99")), "total %s", o.Total)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "captured", o.PaymentResult.Status)
	assert.NotEmpty(t, o.PaymentResult.TransactionID)

	// Item snapshots carry name and image copied at purchase time.
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Product p1", o.Items[0].Name)
	assert.Equal(t, "/images/p1.jpg", o.Items[0].Image)

	// Stock was decremented and the coupon redeemed exactly once.
	assert.Equal(t, 8, f.sizeStock(t, "p1"))
	assert.Equal(t, 9, f.sizeStock(t, "p2"))
	assert.Equal(t, 1, f.usageCount(t, "TENOFF"))

	// The order is persisted and the cart cleared.
	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(o.Total))

	c, err := f.carts.FindOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.CouponCode)

	// Confirmation is dispatched asynchronously.
	select {
	case id := <-f.notifier.sent:
		assert.Equal(t, o.ID, id)
	case <-time.After(time.Second):
		t.Fatal("confirmation was not sent")
	}
}

func TestPlaceOrder_InvalidPaymentMethod(t *testing.T) {
	f := newFixture(t, nil)

	req := placeReq("u1")
	req.PaymentMethod = order.PaymentMethod("barter")

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_InsufficientStockPrecheck(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 1)
	f.fillCart(t, "u1", line("p1", 3, "40.00"))

	_, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))

	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)

	// Nothing was mutated: stock unchanged, cart intact, no order created.
	assert.Equal(t, 1, f.sizeStock(t, "p1"))
	c, err := f.carts.FindOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	listed, err := f.orders.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPlaceOrder_Declined(t *testing.T) {
	gateway := payment.NewSandboxGateway(payment.SandboxConfig{DeclineRefs: []string{"u1"}})
	f := newFixture(t, gateway)
	f.seedProduct(t, "p1", "40.00", 5)
	f.seedCoupon(t, coupon.Coupon{
		Code:          "TENOFF",
		DiscountType:  coupon.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10),
	})
	f.fillCart(t, "u1", line("p1", 1, "40.00"))
	f.applyCoupon(t, "u1", "TENOFF", "10.00")

	_, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.ErrorIs(t, err, payment.ErrDeclined)

	// A declined charge leaves everything untouched.
	assert.Equal(t, 5, f.sizeStock(t, "p1"))
	assert.Equal(t, 0, f.usageCount(t, "TENOFF"))
	c, err := f.carts.FindOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	listed, err := f.orders.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPlaceOrder_GatewayTimeout(t *testing.T) {
	gateway := payment.NewSandboxGateway(payment.SandboxConfig{Latency: 200 * time.Millisecond})
	f := newFixture(t, gateway)
	f.svc.cfg.PaymentTimeout = 10 * time.Millisecond
	f.seedProduct(t, "p1", "40.00", 5)
	f.fillCart(t, "u1", line("p1", 1, "40.00"))

	_, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.ErrorIs(t, err, payment.ErrGatewayTimeout)

	// Ambiguous outcomes fail closed: no order, no stock movement.
	assert.Equal(t, 5, f.sizeStock(t, "p1"))
	listed, err := f.orders.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPlaceOrder_ExpiredCouponRejectedBeforeCharge(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 5)
	f.seedCoupon(t, coupon.Coupon{
		Code:          "BYGONE",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartDate:     testNow.AddDate(0, -2, 0),
		EndDate:       testNow.AddDate(0, -1, 0),
	})
	f.fillCart(t, "u1", line("p1", 1, "40.00"))
	f.applyCoupon(t, "u1", "BYGONE", "4.00")

	_, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.ErrorIs(t, err, coupon.ErrInvalid)

	assert.Equal(t, 5, f.sizeStock(t, "p1"))
}

func TestPlaceOrder_StaleDiscountRecomputed(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 10)
	f.seedCoupon(t, coupon.Coupon{
		Code:          "TENPCT",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	})
	// The stored discount was computed against an older, larger cart.
	f.fillCart(t, "u1", line("p1", 1, "40.00"))
	f.applyCoupon(t, "u1", "TENPCT", "20.00")

	o, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.NoError(t, err)

	// 10% of the live 40.00 subtotal, not the stale 20.00.
	assert.True(t, o.Discount.Equal(decimal.RequireFromString("4.00")), "discount %s", o.Discount)
}

func TestPlaceOrder_NotifierFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.err = errors.New("smtp unreachable")
	f.seedProduct(t, "p1", "40.00", 5)
	f.fillCart(t, "u1", line("p1", 1, "40.00"))

	o, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.NoError(t, err)

	select {
	case <-f.notifier.sent:
	case <-time.After(time.Second):
		t.Fatal("confirmation was not attempted")
	}

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, stored.Status)
}

func TestPlaceOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	const buyers = 5

	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", buyers-1)

	users := make([]string, buyers)
	for i := range users {
		users[i] = string(rune('a' + i))
		f.fillCart(t, users[i], line("p1", 1, "40.00"))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, uid := range users {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), placeReq(uid))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(uid)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			var stockErr *StockError
			require.ErrorAs(t, err, &stockErr)
			conflicted++
		}
	}

	assert.Equal(t, buyers-1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 0, f.sizeStock(t, "p1"), "stock never goes negative")
}

func TestPlaceOrder_ConcurrentCouponRedemption(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 10)
	limit := 1
	f.seedCoupon(t, coupon.Coupon{
		Code:          "ONESHOT",
		DiscountType:  coupon.DiscountFixed,
		DiscountValue: decimal.NewFromInt(5),
		UsageLimit:    &limit,
	})

	users := []string{"u1", "u2"}
	for _, uid := range users {
		f.fillCart(t, uid, line("p1", 1, "40.00"))
		f.applyCoupon(t, uid, "ONESHOT", "5.00")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, uid := range users {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), placeReq(uid))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(uid)
	}
	wg.Wait()

	succeeded, exhausted, invalid := 0, 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, coupon.ErrExhausted):
			exhausted++
		case errors.Is(err, coupon.ErrInvalid):
			// The loser can also be rejected at revalidation when the winner's
			// increment lands before its read.
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, exhausted+invalid)
	assert.Equal(t, 1, f.usageCount(t, "ONESHOT"), "usage never exceeds the limit")

	// The losing checkout compensated its stock decrement.
	assert.Equal(t, 9, f.sizeStock(t, "p1"))
}

func TestAdvanceStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 5)
	f.fillCart(t, "u1", line("p1", 1, "40.00"))

	o, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.NoError(t, err)

	o, err = f.svc.AdvanceStatus(context.Background(), o.ID, order.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, o.Status)

	o, err = f.svc.AdvanceStatus(context.Background(), o.ID, order.StatusShipped)
	require.NoError(t, err)
	o, err = f.svc.AdvanceStatus(context.Background(), o.ID, order.StatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)

	// Terminal orders reject further transitions, including cancellation.
	_, err = f.svc.Cancel(context.Background(), o.ID)
	var itErr *order.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)

	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, stored.Status)
}

func TestAdvanceStatus_SkippingStepRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 5)
	f.fillCart(t, "u1", line("p1", 1, "40.00"))

	o, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.NoError(t, err)

	_, err = f.svc.AdvanceStatus(context.Background(), o.ID, order.StatusShipped)
	var itErr *order.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.seedProduct(t, "p1", "40.00", 5)
	f.fillCart(t, "u1", line("p1", 1, "40.00"))

	o, err := f.svc.PlaceOrder(context.Background(), placeReq("u1"))
	require.NoError(t, err)

	o, err = f.svc.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Nil(t, o.DeliveredAt)
}

func TestAdvanceStatus_OrderNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.AdvanceStatus(context.Background(), "missing", order.StatusProcessing)
	require.ErrorIs(t, err, order.ErrNotFound)
}
