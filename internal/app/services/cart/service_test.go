package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	cartDomain "github.com/R3E-Network/opxpress/internal/app/domain/cart"
	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/app/domain/user"
	"github.com/R3E-Network/opxpress/internal/app/storage/memory"
	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/logging"
)

func setup(t *testing.T) (*Service, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	u, err := store.CreateUser(ctx, user.User{Email: "a@b.co", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err = store.UpsertProducts(ctx, []product.Product{
		{ID: "p1", Name: "Shirt", Category: product.CategoryMen, Price: "$1,299.50"},
		{ID: "p2", Name: "Scarf", Category: product.CategoryAccessories, Price: "₹ 250"},
	})
	if err != nil {
		t.Fatalf("seed products: %v", err)
	}
	return New(store, store, logging.Discard()), u.ID
}

func TestAddIncrementsUpToLimit(t *testing.T) {
	ctx := context.Background()
	svc, userID := setup(t)

	for i := 1; i <= cartDomain.MaxItemQuantity; i++ {
		item, err := svc.Add(ctx, userID, "p1")
		if err != nil {
			t.Fatalf("add #%d: %v", i, err)
		}
		if item.Quantity != i {
			t.Fatalf("expected quantity %d, got %d", i, item.Quantity)
		}
	}

	_, err := svc.Add(ctx, userID, "p1")
	svcErr := errors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != 400 || svcErr.Message != "Quantity cannot exceed 5" {
		t.Fatalf("expected quantity limit error, got %v", err)
	}

	summary, _ := svc.Items(ctx, userID)
	if len(summary.Items) != 1 || summary.Items[0].Quantity != cartDomain.MaxItemQuantity {
		t.Fatalf("quantity must stay at the limit, got %+v", summary.Items)
	}
}

func TestConcurrentAddsStopAtLimit(t *testing.T) {
	ctx := context.Background()
	svc, userID := setup(t)

	var added, limited atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, userID, "p2")
			switch {
			case err == nil:
				added.Add(1)
			case errors.Is(err, errors.CodeValidation):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if added.Load() != cartDomain.MaxItemQuantity || limited.Load() != 12-cartDomain.MaxItemQuantity {
		t.Fatalf("expected %d adds to succeed, got %d (limited %d)", cartDomain.MaxItemQuantity, added.Load(), limited.Load())
	}
	summary, _ := svc.Items(ctx, userID)
	if len(summary.Items) != 1 || summary.Items[0].Quantity != cartDomain.MaxItemQuantity {
		t.Fatalf("expected one row at the limit, got %+v", summary.Items)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	svc, userID := setup(t)
	if _, err := svc.Add(context.Background(), userID, "ghost"); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Add(context.Background(), userID, " "); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestItemsGrandTotal(t *testing.T) {
	ctx := context.Background()
	svc, userID := setup(t)

	_, _ = svc.Add(ctx, userID, "p1")
	_, _ = svc.Add(ctx, userID, "p1")
	_, _ = svc.Add(ctx, userID, "p2")

	summary, err := svc.Items(ctx, userID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if summary.GrandTotal != 2*1299.50+250 {
		t.Fatalf("unexpected grand total %v", summary.GrandTotal)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, userID := setup(t)

	if _, _, err := svc.Update(ctx, userID, "p1", cartDomain.IncreaseQuantity); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for missing row, got %v", err)
	}
	if _, _, err := svc.Update(ctx, userID, "p1", "DOUBLE"); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for bad operation, got %v", err)
	}

	_, _ = svc.Add(ctx, userID, "p1")
	item, removed, err := svc.Update(ctx, userID, "p1", cartDomain.IncreaseQuantity)
	if err != nil || removed || item.Quantity != 2 {
		t.Fatalf("increase: %v %v %+v", err, removed, item)
	}
	item, removed, err = svc.Update(ctx, userID, "p1", cartDomain.DecreaseQuantity)
	if err != nil || removed || item.Quantity != 1 {
		t.Fatalf("decrease: %v %v %+v", err, removed, item)
	}
	_, removed, err = svc.Update(ctx, userID, "p1", cartDomain.DecreaseQuantity)
	if err != nil || !removed {
		t.Fatalf("expected row removal, got %v %v", err, removed)
	}
	summary, _ := svc.Items(ctx, userID)
	if len(summary.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", summary.Items)
	}

	for i := 0; i < cartDomain.MaxItemQuantity; i++ {
		_, _ = svc.Add(ctx, userID, "p2")
	}
	if _, _, err := svc.Update(ctx, userID, "p2", cartDomain.IncreaseQuantity); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected limit error on increase, got %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc, userID := setup(t)

	err := svc.Remove(ctx, userID, "p1")
	svcErr := errors.GetServiceError(err)
	if svcErr == nil || svcErr.Message != "Product not found in cart" {
		t.Fatalf("expected cart 404, got %v", err)
	}

	_, _ = svc.Add(ctx, userID, "p1")
	_, _ = svc.Add(ctx, userID, "p2")
	if err := svc.Remove(ctx, userID, "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	n, err := svc.Clear(ctx, userID)
	if err != nil || n != 1 {
		t.Fatalf("clear: %v %d", err, n)
	}
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"$1,299.00": 1299,
		"₹ 250":     250,
		"19.99":     19.99,
		"-5":        -5,
		"free":      0,
		"":          0,
	}
	for in, want := range cases {
		if got := ParsePrice(in); got != want {
			t.Fatalf("ParsePrice(%q) = %v, want %v", in, got, want)
		}
	}
}
