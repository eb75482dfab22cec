package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/opxpress/internal/app"
	"github.com/R3E-Network/opxpress/internal/app/domain/cart"
	"github.com/R3E-Network/opxpress/internal/app/domain/order"
	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/app/services/accounts"
	"github.com/R3E-Network/opxpress/internal/httputil"
	"github.com/R3E-Network/opxpress/internal/middleware"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app          *app.Application
	cookieSecure bool
}

type productRequest struct {
	ProductID string `json:"productId"`
}

type updateCartRequest struct {
	ProductID string         `json:"productId"`
	Operation cart.Operation `json:"operation"`
}

func (h *handler) helloWorld(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "Hello World!", "success": true})
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := positiveIntParam(r, "limit")
	if !ok {
		httputil.BadRequest(w, r, "Invalid limit parameter.")
		return
	}
	products, err := h.app.Catalog.List(r.Context(), limit, strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeProducts(w, products)
}

func (h *handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := positiveIntParam(r, "limit")
	if !ok {
		httputil.BadRequest(w, r, "Invalid limit parameter.")
		return
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.BadRequest(w, r, "Invalid offset parameter.")
			return
		}
		offset = n
	}
	products, err := h.app.Catalog.Search(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeProducts(w, products)
}

func (h *handler) productsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.app.Catalog.ByCategory(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeProducts(w, products)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var creds accounts.Credentials
	if err := httputil.DecodeJSON(r, &creds); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	u, err := h.app.Accounts.Signup(r.Context(), creds)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    u,
		"success": true,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var creds accounts.Credentials
	if err := httputil.DecodeJSON(r, &creds); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	session, err := h.app.Accounts.Login(r.Context(), creds)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	cookie := h.accessCookie(session.Token, int(h.app.Tokens.TTL().Seconds()))
	cookie.Expires = session.ExpiresAt
	http.SetCookie(w, cookie)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"success": true,
		"token":   session.Token,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.Logout(r.Context(), middleware.TokenFromRequest(r)); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	http.SetCookie(w, h.accessCookie("", -1))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "Logout successful", "success": true})
}

func (h *handler) verifyAccessToken(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Access token valid"})
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.Cart.Items(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	items := summary.Items
	if items == nil {
		items = []cart.Item{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"cartItems":  items,
		"grandTotal": summary.GrandTotal,
		"success":    true,
	})
}

func (h *handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	item, err := h.app.Cart.Add(r.Context(), middleware.GetUserID(r.Context()), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOK(w, "Product added to cart", map[string]any{"quantity": item.Quantity})
}

func (h *handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	item, removed, err := h.app.Cart.Update(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, req.Operation)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if removed {
		writeOK(w, "Product removed from cart", map[string]any{"quantity": 0})
		return
	}
	writeOK(w, "Cart updated", map[string]any{"quantity": item.Quantity})
}

func (h *handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.app.Cart.Remove(r.Context(), middleware.GetUserID(r.Context()), req.ProductID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOK(w, "Product removed from cart", nil)
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.Cart.Clear(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOK(w, "Cart cleared", map[string]any{"removed": n})
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.app.Orders.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders, "success": true})
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	var info order.Info
	if err := httputil.DecodeJSON(r, &info); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	placed, err := h.app.Orders.Checkout(r.Context(), middleware.GetUserID(r.Context()), info)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	writeOK(w, "Order placed successfully", map[string]any{"orders": placed})
}

// accessCookie builds the access token cookie. A negative maxAge clears it.
func (h *handler) accessCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func writeProducts(w http.ResponseWriter, products []product.Product) {
	if products == nil {
		products = []product.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"products": products, "success": true})
}

func writeOK(w http.ResponseWriter, message string, extra map[string]any) {
	body := map[string]any{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// positiveIntParam reads an optional positive integer query parameter.
// Absent parameters yield 0.
func positiveIntParam(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
