package orders

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/R3E-Network/opxpress/internal/app/domain/order"
	"github.com/R3E-Network/opxpress/internal/app/metrics"
	"github.com/R3E-Network/opxpress/internal/app/storage"
	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/logging"
	"github.com/R3E-Network/opxpress/internal/validation"
)

// Service turns carts into orders.
type Service struct {
	store storage.OrderStore
	log   *logging.Logger
}

// New constructs an orders service.
func New(store storage.OrderStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("orders")
	}
	return &Service{store: store, log: log}
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]order.Order, error) {
	orders, err := s.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Failed to fetch orders", err)
	}
	return orders, nil
}

// Checkout validates the shipping details and converts the whole cart into
// orders. The cart is empty afterwards.
func (s *Service) Checkout(ctx context.Context, userID string, info order.Info) ([]order.Order, error) {
	info = trimInfo(info)
	if err := validation.Struct(info); err != nil {
		return nil, err
	}

	placed, err := s.store.PlaceOrder(ctx, userID, info)
	if stderrors.Is(err, storage.ErrEmptyCart) {
		return nil, errors.Validation("Cart is empty")
	}
	if err != nil {
		return nil, errors.Internal("Failed to place order", err)
	}

	metrics.RecordCheckout(len(placed))
	s.log.WithContext(ctx).
		WithField("order_info_id", placed[0].OrderInfoID).
		WithField("lines", len(placed)).
		Info("order placed")
	return placed, nil
}

func trimInfo(info order.Info) order.Info {
	info.ID = ""
	info.Fullname = strings.TrimSpace(info.Fullname)
	info.Phone = strings.TrimSpace(info.Phone)
	info.Address = strings.TrimSpace(info.Address)
	info.Pincode = strings.TrimSpace(info.Pincode)
	info.City = strings.TrimSpace(info.City)
	return info
}
