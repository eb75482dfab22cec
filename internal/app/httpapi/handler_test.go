package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	app "github.com/R3E-Network/opxpress/internal/app"
	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/logging"
	"github.com/R3E-Network/opxpress/internal/middleware"
)

const testOrigin = "http://localhost:3001"

func newTestHandler(t *testing.T, opts Options) (http.Handler, *app.Application) {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{TokenSecret: "test-secret"}, logging.Discard())
	require.NoError(t, err)

	_, err = application.Catalog.Seed(context.Background(), []product.Product{
		{ID: "jacket", Name: "Denim Jacket", Category: product.CategoryMen, Brand: "Levis", Price: "$1,299.00", OriginalPrice: "$1,599.00", Discount: "19% off"},
		{ID: "scarf", Name: "Silk Scarf", Category: product.CategoryWomen, Brand: "Hermes", Price: "$50.50"},
		{ID: "watch", Name: "Steel Watch", Category: product.CategoryAccessories, Brand: "Casio", Price: "$20"},
	})
	require.NoError(t, err)

	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = testOrigin
	}
	return NewHandler(application, opts, logging.Discard()), application
}

func do(handler http.Handler, method, target string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		buf, _ := json.Marshal(body)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func signupAndLogin(t *testing.T, handler http.Handler, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "password123"}

	resp := do(handler, http.MethodPost, "/api/auth/signup", creds, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = do(handler, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	token := gjson.Get(resp.Body.String(), "token").String()
	require.NotEmpty(t, token)
	return token
}

func TestHelloWorld(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	resp := do(handler, http.MethodGet, "/api/helloworld", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Hello World!", gjson.Get(resp.Body.String(), "message").String())
	assert.True(t, gjson.Get(resp.Body.String(), "success").Bool())
	assert.NotEmpty(t, resp.Header().Get("X-Trace-ID"))
}

func TestProductRoutes(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	resp := do(handler, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(3), gjson.Get(resp.Body.String(), "products.#").Int())

	resp = do(handler, http.MethodGet, "/api/products?limit=2", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(2), gjson.Get(resp.Body.String(), "products.#").Int())

	for _, bad := range []string{"0", "-1", "abc"} {
		resp = do(handler, http.MethodGet, "/api/products?limit="+bad, nil, "")
		require.Equal(t, http.StatusBadRequest, resp.Code, "limit=%s", bad)
		assert.Equal(t, "Invalid limit parameter.", gjson.Get(resp.Body.String(), "message").String())
	}

	resp = do(handler, http.MethodGet, "/api/products/category/accessories", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "watch", gjson.Get(resp.Body.String(), "products.0.id").String())

	resp = do(handler, http.MethodGet, "/api/products/category/men's%20clothing", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "jacket", gjson.Get(resp.Body.String(), "products.0.id").String())

	resp = do(handler, http.MethodGet, "/api/products/category/shoes", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(0), gjson.Get(resp.Body.String(), "products.#").Int())

	resp = do(handler, http.MethodGet, "/api/products/jacket", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Denim Jacket", gjson.Get(resp.Body.String(), "name").String())

	resp = do(handler, http.MethodGet, "/api/products/missing", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Product not found for ID missing", gjson.Get(resp.Body.String(), "message").String())
	assert.False(t, gjson.Get(resp.Body.String(), "success").Bool())

	resp = do(handler, http.MethodGet, "/api/products/bad%20id", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(handler, http.MethodGet, "/api/products/search?q=jacket", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(1), gjson.Get(resp.Body.String(), "products.#").Int())

	resp = do(handler, http.MethodGet, "/api/products/search?q=", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(handler, http.MethodGet, "/api/products/search?q=watch&offset=-2", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAuthFlow(t *testing.T) {
	handler, application := newTestHandler(t, Options{CookieSecure: true})
	creds := map[string]string{"email": "Shopper@Example.com", "password": "password123"}

	resp := do(handler, http.MethodPost, "/api/auth/signup", creds, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	body := resp.Body.String()
	assert.Equal(t, "User created successfully", gjson.Get(body, "message").String())
	assert.Equal(t, "shopper@example.com", gjson.Get(body, "user.email").String())
	assert.False(t, gjson.Get(body, "user.password").Exists())

	resp = do(handler, http.MethodPost, "/api/auth/signup", creds, "")
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "User already exists", gjson.Get(resp.Body.String(), "message").String())

	resp = do(handler, http.MethodPost, "/api/auth/signup", map[string]string{"email": "not-an-email", "password": "short"}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(handler, http.MethodPost, "/api/auth/login", map[string]string{"email": "shopper@example.com", "password": "wrong-password"}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Invalid credentials", gjson.Get(resp.Body.String(), "message").String())

	resp = do(handler, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, resp.Code)
	token := gjson.Get(resp.Body.String(), "token").String()
	require.NotEmpty(t, token)
	assert.Equal(t, "Login successful", gjson.Get(resp.Body.String(), "message").String())

	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, middleware.AccessTokenCookie, cookie.Name)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(application.Tokens.TTL().Seconds()), cookie.MaxAge)
	assert.Equal(t, 10*24*60*60, cookie.MaxAge, "default cookie lifetime is ten days")

	for _, path := range []string{"/api/auth/verify-access-token", "/api/verify-access-token"} {
		resp = do(handler, http.MethodGet, path, nil, token)
		require.Equal(t, http.StatusOK, resp.Code, path)
		assert.Equal(t, "Access token valid", gjson.Get(resp.Body.String(), "message").String())
	}

	// The cookie alone authenticates too.
	req := httptest.NewRequest(http.MethodGet, "/api/verify-access-token", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp = do(handler, http.MethodDelete, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Logout successful", gjson.Get(resp.Body.String(), "message").String())
	cleared := resp.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)

	resp = do(handler, http.MethodGet, "/api/verify-access-token", nil, token)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Invalid token", gjson.Get(resp.Body.String(), "message").String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart"},
		{http.MethodPatch, "/api/cart"},
		{http.MethodDelete, "/api/cart"},
		{http.MethodDelete, "/api/cart/all"},
		{http.MethodGet, "/api/order"},
		{http.MethodPost, "/api/order"},
		{http.MethodGet, "/api/verify-access-token"},
	} {
		resp := do(handler, tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "%s %s", tc.method, tc.path)

		resp = do(handler, tc.method, tc.path, nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCartAndCheckoutFlow(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	token := signupAndLogin(t, handler, "buyer@example.com")

	resp := do(handler, http.MethodGet, "/api/cart", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(0), gjson.Get(resp.Body.String(), "cartItems.#").Int())
	assert.Equal(t, 0.0, gjson.Get(resp.Body.String(), "grandTotal").Float())

	resp = do(handler, http.MethodPost, "/api/cart", map[string]string{"productId": "missing"}, token)
	require.Equal(t, http.StatusNotFound, resp.Code)

	for i := 1; i <= 5; i++ {
		resp = do(handler, http.MethodPost, "/api/cart", map[string]string{"productId": "watch"}, token)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, int64(i), gjson.Get(resp.Body.String(), "quantity").Int())
	}
	resp = do(handler, http.MethodPost, "/api/cart", map[string]string{"productId": "watch"}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Quantity cannot exceed 5", gjson.Get(resp.Body.String(), "message").String())

	resp = do(handler, http.MethodPatch, "/api/cart", map[string]string{"productId": "watch", "operation": "INCREASE_QUANTITY"}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(handler, http.MethodPatch, "/api/cart", map[string]string{"productId": "watch", "operation": "DECREASE_QUANTITY"}, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(4), gjson.Get(resp.Body.String(), "quantity").Int())

	resp = do(handler, http.MethodPatch, "/api/cart", map[string]string{"productId": "watch", "operation": "DOUBLE"}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(handler, http.MethodPatch, "/api/cart", map[string]string{"productId": "scarf", "operation": "INCREASE_QUANTITY"}, token)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(handler, http.MethodPost, "/api/cart", map[string]string{"productId": "jacket"}, token)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(handler, http.MethodGet, "/api/cart", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "cartItems.#").Int())
	assert.InDelta(t, 4*20.0+1299.0, gjson.Get(body, "grandTotal").Float(), 0.001)

	resp = do(handler, http.MethodDelete, "/api/cart", map[string]string{"productId": "scarf"}, token)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Product not found in cart", gjson.Get(resp.Body.String(), "message").String())

	invalid := map[string]string{"fullname": "Jo", "phone": "12ab", "address": "1 Road", "pincode": "123", "city": "Pune"}
	resp = do(handler, http.MethodPost, "/api/order", invalid, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	details := map[string]string{"fullname": "Jo Doe", "phone": "9876543210", "address": "1 Road", "pincode": "411001", "city": "Pune"}
	resp = do(handler, http.MethodPost, "/api/order", details, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, int64(2), gjson.Get(resp.Body.String(), "orders.#").Int())

	resp = do(handler, http.MethodGet, "/api/cart", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(0), gjson.Get(resp.Body.String(), "cartItems.#").Int())

	resp = do(handler, http.MethodPost, "/api/order", details, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Cart is empty", gjson.Get(resp.Body.String(), "message").String())

	resp = do(handler, http.MethodGet, "/api/order", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	body = resp.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "orders.#").Int())
	assert.Equal(t, "Pune", gjson.Get(body, "orders.0.orderInfo.city").String())
	assert.True(t, gjson.Get(body, "orders.0.product.name").Exists())
}

func TestClearCart(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	token := signupAndLogin(t, handler, "clear@example.com")

	for _, id := range []string{"watch", "scarf"} {
		resp := do(handler, http.MethodPost, "/api/cart", map[string]string{"productId": id}, token)
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp := do(handler, http.MethodDelete, "/api/cart/all", nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(2), gjson.Get(resp.Body.String(), "removed").Int())

	resp = do(handler, http.MethodGet, "/api/cart", nil, token)
	assert.Equal(t, int64(0), gjson.Get(resp.Body.String(), "cartItems.#").Int())
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	alice := signupAndLogin(t, handler, "alice@example.com")
	bob := signupAndLogin(t, handler, "bob@example.com")

	resp := do(handler, http.MethodPost, "/api/cart", map[string]string{"productId": "watch"}, alice)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(handler, http.MethodGet, "/api/cart", nil, bob)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(0), gjson.Get(resp.Body.String(), "cartItems.#").Int())
}

func TestCORSPreflight(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, testOrigin, resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/helloworld", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, logging.Discard())
	handler, _ := newTestHandler(t, Options{AuthLimiter: limiter})
	creds := map[string]string{"email": "limit@example.com", "password": "password123"}

	resp := do(handler, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = do(handler, http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	// Catalog reads are not throttled.
	resp = do(handler, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAuthRateLimitIgnoresForwardedHeaders(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, logging.Discard())
	handler, _ := newTestHandler(t, Options{AuthLimiter: limiter})
	body := `{"email":"spoof@example.com","password":"password123"}`

	throttled := 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:4444"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	// One address, one budget: rotating the headers must not earn new tokens.
	assert.GreaterOrEqual(t, throttled, 3)
}

func TestAuthRateLimitTrustedProxy(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, logging.Discard())
	handler, _ := newTestHandler(t, Options{AuthLimiter: limiter, TrustProxyHeaders: true})
	body := `{"email":"proxied@example.com","password":"password123"}`

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.2:4444"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code, "client %d shares the proxy address but not its budget", i)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	resp := do(handler, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", gjson.Get(resp.Body.String(), "status").String())
	assert.True(t, gjson.Get(resp.Body.String(), "goroutines").Int() > 0)

	resp = do(handler, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "opxpress_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	resp := do(handler, http.MethodGet, "/api/nope", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.False(t, gjson.Get(resp.Body.String(), "success").Bool())

	resp = do(handler, http.MethodPut, "/api/cart", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestPanicsAreRecovered(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{TokenSecret: "s"}, logging.Discard())
	require.NoError(t, err)
	application.Catalog = nil // forces a nil dereference in the products handler

	handler := NewHandler(application, Options{AllowedOrigin: testOrigin}, logging.Discard())
	resp := do(handler, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
}
