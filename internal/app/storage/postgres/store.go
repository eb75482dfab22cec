package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/opxpress/internal/app/domain/cart"
	"github.com/R3E-Network/opxpress/internal/app/domain/order"
	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/app/domain/user"
	"github.com/R3E-Network/opxpress/internal/app/storage"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.CartStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// mapError translates driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

// --- ProductStore -----------------------------------------------------------

const productColumns = `id, name, category, brand, image_url, price, original_price, discount, created_at`

func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]product.Product, error) {
	var (
		query strings.Builder
		args  []interface{}
	)
	query.WriteString(`SELECT ` + productColumns + ` FROM products`)
	if filter.Category != "" {
		args = append(args, filter.Category)
		fmt.Fprintf(&query, ` WHERE category = $%d`, len(args))
	}
	query.WriteString(` ORDER BY created_at, id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, ` LIMIT $%d`, len(args))
	}

	result := make([]product.Product, 0)
	if err := s.db.SelectContext(ctx, &result, query.String(), args...); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	var p product.Product
	err := s.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return product.Product{}, mapError(err)
	}
	return p, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string, limit, offset int) ([]product.Product, error) {
	pattern := "%" + escapeLike(query) + "%"
	result := make([]product.Product, 0)
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE $1 OR brand ILIKE $1 OR category ILIKE $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) UpsertProducts(ctx context.Context, products []product.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt = now
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES (:id, :name, :category, :brand, :image_url, :price, :original_price, :discount, :created_at)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				brand = EXCLUDED.brand,
				image_url = EXCLUDED.image_url,
				price = EXCLUDED.price,
				original_price = EXCLUDED.original_price,
				discount = EXCLUDED.discount
		`, p)
		if err != nil {
			return 0, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(products), nil
}

// --- CartStore --------------------------------------------------------------

type cartRow struct {
	cart.Item
	P product.Product `db:"product"`
}

func (r cartRow) item() cart.Item {
	item := r.Item
	p := r.P
	item.Product = &p
	return item
}

const cartSelect = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
		p.id AS "product.id", p.name AS "product.name", p.category AS "product.category",
		p.brand AS "product.brand", p.image_url AS "product.image_url", p.price AS "product.price",
		p.original_price AS "product.original_price", p.discount AS "product.discount",
		p.created_at AS "product.created_at"
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
`

func (s *Store) ListCartItems(ctx context.Context, userID string) ([]cart.Item, error) {
	var rows []cartRow
	if err := s.db.SelectContext(ctx, &rows, cartSelect+`WHERE ci.user_id = $1 ORDER BY ci.created_at, ci.id`, userID); err != nil {
		return nil, err
	}
	items := make([]cart.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

func (s *Store) GetCartItem(ctx context.Context, userID, productID string) (cart.Item, error) {
	var row cartRow
	if err := s.db.GetContext(ctx, &row, cartSelect+`WHERE ci.user_id = $1 AND ci.product_id = $2`, userID, productID); err != nil {
		return cart.Item{}, mapError(err)
	}
	return row.item(), nil
}

func (s *Store) CreateCartItem(ctx context.Context, item cart.Item) (cart.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = s.now()
	item.Product = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.UserID, item.ProductID, item.Quantity, item.CreatedAt)
	if err != nil {
		return cart.Item{}, mapError(err)
	}
	return item, nil
}

func (s *Store) UpdateCartItemQuantity(ctx context.Context, userID, productID string, quantity int) (cart.Item, error) {
	var item cart.Item
	err := s.db.GetContext(ctx, &item, `
		UPDATE cart_items
		SET quantity = $3
		WHERE user_id = $1 AND product_id = $2
		RETURNING id, user_id, product_id, quantity, created_at
	`, userID, productID, quantity)
	if err != nil {
		return cart.Item{}, mapError(err)
	}
	return item, nil
}

func (s *Store) IncrementCartItem(ctx context.Context, userID, productID string, max int) (cart.Item, error) {
	var item cart.Item
	err := s.db.GetContext(ctx, &item, `
		UPDATE cart_items
		SET quantity = quantity + 1
		WHERE user_id = $1 AND product_id = $2 AND quantity < $3
		RETURNING id, user_id, product_id, quantity, created_at
	`, userID, productID, max)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return cart.Item{}, mapError(err)
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM cart_items WHERE user_id = $1 AND product_id = $2)
	`, userID, productID); err != nil {
		return cart.Item{}, err
	}
	if exists {
		return cart.Item{}, storage.ErrQuantityLimit
	}
	return cart.Item{}, storage.ErrNotFound
}

func (s *Store) DeleteCartItem(ctx context.Context, userID, productID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// --- OrderStore -------------------------------------------------------------

type cartLine struct {
	ID        string `db:"id"`
	ProductID string `db:"product_id"`
	Quantity  int    `db:"quantity"`
}

func (s *Store) PlaceOrder(ctx context.Context, userID string, info order.Info) ([]order.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var lines []cartLine
	err = tx.SelectContext(ctx, &lines, `
		SELECT id, product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at, id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, storage.ErrEmptyCart
	}

	info.ID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_infos (id, fullname, phone, address, pincode, city)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, info.ID, info.Fullname, info.Phone, info.Address, info.Pincode, info.City)
	if err != nil {
		return nil, fmt.Errorf("insert order info: %w", err)
	}

	now := s.now()
	placed := make([]order.Order, 0, len(lines))
	ordered := make([]string, 0, len(lines))
	for _, line := range lines {
		o := order.Order{
			ID:          uuid.NewString(),
			UserID:      userID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			OrderInfoID: info.ID,
			CreatedOn:   now,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, product_id, quantity, order_info_id, created_on)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, o.ID, o.UserID, o.ProductID, o.Quantity, o.OrderInfoID, o.CreatedOn)
		if err != nil {
			return nil, fmt.Errorf("insert order: %w", err)
		}
		o.OrderInfo = &info
		placed = append(placed, o)
		ordered = append(ordered, line.ID)
	}

	// Only the locked rows: a row added after the SELECT was not ordered.
	_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ordered))
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return placed, nil
}

type orderRow struct {
	order.Order
	P product.Product `db:"product"`
	I order.Info      `db:"order_info"`
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT o.id, o.user_id, o.product_id, o.quantity, o.order_info_id, o.created_on,
			p.id AS "product.id", p.name AS "product.name", p.category AS "product.category",
			p.brand AS "product.brand", p.image_url AS "product.image_url", p.price AS "product.price",
			p.original_price AS "product.original_price", p.discount AS "product.discount",
			p.created_at AS "product.created_at",
			oi.id AS "order_info.id", oi.fullname AS "order_info.fullname", oi.phone AS "order_info.phone",
			oi.address AS "order_info.address", oi.pincode AS "order_info.pincode", oi.city AS "order_info.city"
		FROM orders o
		JOIN products p ON p.id = o.product_id
		JOIN order_infos oi ON oi.id = o.order_info_id
		WHERE o.user_id = $1
		ORDER BY o.created_on DESC, o.id
	`, userID)
	if err != nil {
		return nil, err
	}
	orders := make([]order.Order, 0, len(rows))
	for _, r := range rows {
		o := r.Order
		p, info := r.P, r.I
		o.Product = &p
		o.OrderInfo = &info
		orders = append(orders, o)
	}
	return orders, nil
}
