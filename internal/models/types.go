package models

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-api/internal/appstate"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// FeedEvent is one change event delivered to a session's client
type FeedEvent struct {
	Offset    int64  `json:"offset"`
	Timestamp string `json:"timestamp"`
	Topic     string `json:"topic"`
	Payload   any    `json:"payload,omitempty"`
}

// EventsResponse represents the response for the events endpoint
type EventsResponse struct {
	Events     []FeedEvent `json:"events"`
	NextOffset int64       `json:"nextOffset"`
	HasMore    bool        `json:"hasMore"`
	Count      int         `json:"count"`
}

// IntentRequest is a user action sent by the browser.
// ProductID and Field requirements depend on Intent and are checked by a
// struct level validation registered in the handlers package.
type IntentRequest struct {
	Intent    string `json:"intent" validate:"required,oneof=card.select basket.add basket.remove basket.toggle basket.open order.open order.change order.submit contacts.change modal.close"`
	ProductID string `json:"productId,omitempty" validate:"omitempty,max=64"`
	Field     string `json:"field,omitempty" validate:"omitempty,oneof=payment address email phone"`
	Value     string `json:"value" validate:"max=512"`
}

// SessionResponse is returned when a session is created
type SessionResponse struct {
	SessionID string             `json:"sessionId"`
	CreatedAt time.Time          `json:"createdAt"`
	Catalog   []appstate.Product `json:"catalog"`
}

// SessionState is a read-only snapshot of one session. LastOrder is the
// last order the upstream accepted; LastError is the message of the last
// failed submission and is cleared by a successful one.
type SessionState struct {
	SessionID   string                `json:"sessionId"`
	Step        string                `json:"step"`
	CatalogSize int                   `json:"catalogSize"`
	Preview     string                `json:"preview,omitempty"`
	Basket      []appstate.Product    `json:"basket"`
	Total       decimal.Decimal       `json:"total"`
	Order       appstate.Order        `json:"order"`
	Errors      appstate.FormErrors   `json:"errors"`
	EventOffset int64                 `json:"eventOffset"`
	LastOrder   *appstate.OrderResult `json:"lastOrder,omitempty"`
	LastError   string                `json:"lastError,omitempty"`
}

// CatalogResponse lists the session catalog
type CatalogResponse struct {
	Items []appstate.Product `json:"items"`
	Total int                `json:"total"`
}

// CheckoutResponse is returned when an order has been accepted
type CheckoutResponse struct {
	OrderID string          `json:"orderId"`
	Total   decimal.Decimal `json:"total"`
}

// OrdersResponse lists archived orders for admins
type OrdersResponse struct {
	Orders []OrderRecord `json:"orders"`
	Count  int           `json:"count"`
}

// OrderRecord is an accepted order as stored in the archive
type OrderRecord struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"sessionId"`
	ExternalID string                 `json:"externalId"`
	Payment    appstate.PaymentMethod `json:"payment"`
	Email      string                 `json:"email"`
	Phone      string                 `json:"phone"`
	Address    string                 `json:"address"`
	Items      []string               `json:"items"`
	Total      decimal.Decimal        `json:"total"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// SessionSummary describes a live session for admins
type SessionSummary struct {
	SessionID   string    `json:"sessionId"`
	Step        string    `json:"step"`
	BasketSize  int       `json:"basketSize"`
	EventOffset int64     `json:"eventOffset"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CatalogStatus reports the state of catalog synchronization
type CatalogStatus struct {
	InProgress          bool      `json:"inProgress"`
	LastRefreshTime     time.Time `json:"lastRefreshTime"`
	LastRefreshSuccess  bool      `json:"lastRefreshSuccess"`
	ProductCount        int       `json:"productCount"`
	RefreshDuration     string    `json:"refreshDuration"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	ErrorMessage        string    `json:"errorMessage,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status         string `json:"status"`
	Sessions       int    `json:"sessions"`
	CatalogSize    int    `json:"catalogSize"`
	UpstreamStatus string `json:"upstreamStatus,omitempty"`
}

// Intent names accepted by the intents endpoint
const (
	IntentCardSelect     = "card.select"
	IntentBasketAdd      = "basket.add"
	IntentBasketRemove   = "basket.remove"
	IntentBasketToggle   = "basket.toggle"
	IntentBasketOpen     = "basket.open"
	IntentOrderOpen      = "order.open"
	IntentOrderChange    = "order.change"
	IntentOrderSubmit    = "order.submit"
	IntentContactsChange = "contacts.change"
	IntentModalClose     = "modal.close"
)
