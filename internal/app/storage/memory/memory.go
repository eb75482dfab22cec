package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/opxpress/internal/app/domain/cart"
	"github.com/R3E-Network/opxpress/internal/app/domain/order"
	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/app/domain/user"
	"github.com/R3E-Network/opxpress/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	users        map[string]user.User
	usersByEmail map[string]string
	products     map[string]product.Product
	productOrder []string
	carts        map[string][]cart.Item
	orderInfos   map[string]order.Info
	orders       map[string][]order.Order
	now          func() time.Time
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.CartStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
		products:     make(map[string]product.Product),
		carts:        make(map[string][]cart.Item),
		orderInfos:   make(map[string]order.Info),
		orders:       make(map[string][]order.Order),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[u.Email]; exists {
		return user.User{}, storage.ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// ProductStore implementation -------------------------------------------------

func (s *Store) ListProducts(_ context.Context, filter storage.ProductFilter) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]product.Product, 0)
	for _, id := range s.productOrder {
		p := s.products[id]
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		result = append(result, p)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) SearchProducts(_ context.Context, query string, limit, offset int) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	result := make([]product.Product, 0)
	skipped := 0
	for _, id := range s.productOrder {
		p := s.products[id]
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Brand), needle) &&
			!strings.Contains(strings.ToLower(p.Category), needle) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, p)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) UpsertProducts(_ context.Context, products []product.Product) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if existing, ok := s.products[p.ID]; ok {
			p.CreatedAt = existing.CreatedAt
		} else {
			p.CreatedAt = s.now()
			s.productOrder = append(s.productOrder, p.ID)
		}
		s.products[p.ID] = p
	}
	return len(products), nil
}

// CartStore implementation ----------------------------------------------------

func (s *Store) ListCartItems(_ context.Context, userID string) ([]cart.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.carts[userID]
	result := make([]cart.Item, 0, len(items))
	for _, item := range items {
		result = append(result, s.withProductLocked(item))
	}
	return result, nil
}

func (s *Store) GetCartItem(_ context.Context, userID, productID string) (cart.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.cartIndexLocked(userID, productID)
	if idx < 0 {
		return cart.Item{}, storage.ErrNotFound
	}
	return s.withProductLocked(s.carts[userID][idx]), nil
}

func (s *Store) CreateCartItem(_ context.Context, item cart.Item) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[item.UserID]; !ok {
		return cart.Item{}, storage.ErrNotFound
	}
	if _, ok := s.products[item.ProductID]; !ok {
		return cart.Item{}, storage.ErrNotFound
	}
	if s.cartIndexLocked(item.UserID, item.ProductID) >= 0 {
		return cart.Item{}, storage.ErrConflict
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = s.now()
	item.Product = nil
	s.carts[item.UserID] = append(s.carts[item.UserID], item)
	return s.withProductLocked(item), nil
}

func (s *Store) UpdateCartItemQuantity(_ context.Context, userID, productID string, quantity int) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cartIndexLocked(userID, productID)
	if idx < 0 {
		return cart.Item{}, storage.ErrNotFound
	}
	s.carts[userID][idx].Quantity = quantity
	return s.withProductLocked(s.carts[userID][idx]), nil
}

func (s *Store) IncrementCartItem(_ context.Context, userID, productID string, max int) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cartIndexLocked(userID, productID)
	if idx < 0 {
		return cart.Item{}, storage.ErrNotFound
	}
	if s.carts[userID][idx].Quantity >= max {
		return cart.Item{}, storage.ErrQuantityLimit
	}
	s.carts[userID][idx].Quantity++
	return s.withProductLocked(s.carts[userID][idx]), nil
}

func (s *Store) DeleteCartItem(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cartIndexLocked(userID, productID)
	if idx < 0 {
		return storage.ErrNotFound
	}
	items := s.carts[userID]
	s.carts[userID] = append(items[:idx:idx], items[idx+1:]...)
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.carts[userID])
	delete(s.carts, userID)
	return n, nil
}

func (s *Store) cartIndexLocked(userID, productID string) int {
	for i, item := range s.carts[userID] {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) withProductLocked(item cart.Item) cart.Item {
	if p, ok := s.products[item.ProductID]; ok {
		item.Product = &p
	}
	return item
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) PlaceOrder(_ context.Context, userID string, info order.Info) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	if len(items) == 0 {
		return nil, storage.ErrEmptyCart
	}

	info.ID = uuid.NewString()
	s.orderInfos[info.ID] = info

	now := s.now()
	placed := make([]order.Order, 0, len(items))
	for _, item := range items {
		o := order.Order{
			ID:          uuid.NewString(),
			UserID:      userID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			OrderInfoID: info.ID,
			CreatedOn:   now,
		}
		s.orders[userID] = append(s.orders[userID], o)
		placed = append(placed, s.withOrderRefsLocked(o))
	}
	delete(s.carts, userID)
	return placed, nil
}

func (s *Store) ListOrders(_ context.Context, userID string) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.orders[userID]
	result := make([]order.Order, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		result = append(result, s.withOrderRefsLocked(stored[i]))
	}
	return result, nil
}

func (s *Store) withOrderRefsLocked(o order.Order) order.Order {
	if p, ok := s.products[o.ProductID]; ok {
		o.Product = &p
	}
	if info, ok := s.orderInfos[o.OrderInfoID]; ok {
		o.OrderInfo = &info
	}
	return o
}
