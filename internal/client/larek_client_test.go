package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/appstate"
)

const productListJSON = `{
	"total": 2,
	"items": [
		{"id": "854cef69", "title": "Frontend bootcamp", "description": "Become a frontend ninja", "image": "/5_Dots.svg", "category": "soft", "price": 750},
		{"id": "b06cde61", "title": "Mystery box", "description": "", "image": "/Shell.svg", "category": "other", "price": null}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *LarekClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLarekClient(server.URL+"/api/weblarek", "https://cdn.example/content/weblarek", 5*time.Second)
}

func TestLarekClient_GetProductList(t *testing.T) {
	// Arrange
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/weblarek/product", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(productListJSON))
	})

	// Act
	products, err := c.GetProductList(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "854cef69", products[0].ID)
	assert.Equal(t, "https://cdn.example/content/weblarek/5_Dots.svg", products[0].Image)
	assert.True(t, products[0].Price.Valid)
	assert.True(t, products[0].Price.Decimal.Equal(decimal.NewFromInt(750)))

	assert.True(t, products[1].Priceless())
	assert.Equal(t, "other", products[1].Category)
}

func TestLarekClient_GetProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/weblarek/product/854cef69":
			_, _ = w.Write([]byte(`{"id": "854cef69", "title": "Bootcamp", "image": "https://img/x.svg", "price": 750, "category": "soft"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "NotFound"}`))
		}
	})

	product, err := c.GetProduct(context.Background(), "854cef69")
	require.NoError(t, err)
	assert.Equal(t, "https://img/x.svg", product.Image)

	_, err = c.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLarekClient_OrderProducts(t *testing.T) {
	// Arrange
	var received map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/weblarek/order", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"id": "28c57cb4-3002-4445-8aa1-2a06a5055ae5", "total": 2200}`))
	})
	order := appstate.Order{
		Payment: appstate.PaymentCard,
		Email:   "test@test.ru",
		Phone:   "+71234567890",
		Address: "Spb Vosstania 1",
		Items:   []string{"854cef69", "c101ab44"},
		Total:   decimal.NewFromInt(2200),
	}

	// Act
	result, err := c.OrderProducts(context.Background(), order)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "28c57cb4-3002-4445-8aa1-2a06a5055ae5", result.ID)
	assert.True(t, result.Total.Equal(decimal.NewFromInt(2200)))

	assert.Equal(t, "card", received["payment"])
	assert.Equal(t, float64(2200), received["total"], "total must be sent as a JSON number")
	assert.Equal(t, []any{"854cef69", "c101ab44"}, received["items"])
}

func TestLarekClient_OrderProductsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Неверная сумма заказа"}`))
	})

	_, err := c.OrderProducts(context.Background(), appstate.Order{})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Неверная сумма заказа", apiErr.Message)
}

func TestLarekClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := NewLarekClient(server.URL, "", time.Second)
	server.Close()

	_, err := c.GetProductList(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to make request")
}

func TestLarekClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	})

	_, err := c.GetProductList(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestLarekClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetProductList(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLarekClient_HealthCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"total": 0, "items": []}`))
	})

	assert.NoError(t, c.HealthCheck(context.Background()))

	healthy.Store(false)
	assert.Error(t, c.HealthCheck(context.Background()))
}
