package appstate

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidField is returned when a setter receives a field outside its group.
	ErrInvalidField = errors.New("invalid order field")

	// ErrInvalidPayment is returned for payment values other than card or cash.
	ErrInvalidPayment = errors.New("invalid payment method")
)

// Product is a catalog entry. A product without a price is priceless and
// cannot be bought.
type Product struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Image       string              `json:"image"`
	Price       decimal.NullDecimal `json:"price"`
	Category    string              `json:"category"`
}

// Priceless reports whether the product has no price.
func (p Product) Priceless() bool {
	return !p.Price.Valid
}

// PriceOrZero returns the price, or zero for priceless products.
func (p Product) PriceOrZero() decimal.Decimal {
	if !p.Price.Valid {
		return decimal.Zero
	}
	return p.Price.Decimal
}

// PaymentMethod is the closed set of payment options. The empty value means unset.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// ParsePaymentMethod accepts "", "card" and "cash".
func ParsePaymentMethod(v string) (PaymentMethod, error) {
	switch PaymentMethod(v) {
	case "", PaymentCard, PaymentCash:
		return PaymentMethod(v), nil
	}
	return "", ErrInvalidPayment
}

// Field names an order draft field.
type Field string

const (
	FieldPayment Field = "payment"
	FieldAddress Field = "address"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
)

// FieldGroup is a unit of independent validation.
type FieldGroup string

const (
	GroupDelivery FieldGroup = "delivery"
	GroupContacts FieldGroup = "contacts"
)

var groupFields = map[FieldGroup][]Field{
	GroupDelivery: {FieldPayment, FieldAddress},
	GroupContacts: {FieldEmail, FieldPhone},
}

var fieldMessages = map[Field]string{
	FieldPayment: "Select a payment method",
	FieldAddress: "Enter a delivery address",
	FieldEmail:   "Enter an email",
	FieldPhone:   "Enter a phone number",
}

// Group returns the group the field belongs to, or "" for unknown fields.
func (f Field) Group() FieldGroup {
	for group, fields := range groupFields {
		for _, candidate := range fields {
			if candidate == f {
				return group
			}
		}
	}
	return ""
}

// Fields returns the fields of a group in validation order.
func (g FieldGroup) Fields() []Field {
	return append([]Field(nil), groupFields[g]...)
}

// FormErrors maps invalid fields to a message. Valid fields are absent.
type FormErrors map[Field]string

func (e FormErrors) clone() FormErrors {
	out := make(FormErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Order is the order draft. Items and Total are filled by SetOrder.
type Order struct {
	Payment PaymentMethod   `json:"payment"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Address string          `json:"address"`
	Items   []string        `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

func (o Order) value(f Field) string {
	switch f {
	case FieldPayment:
		return string(o.Payment)
	case FieldAddress:
		return o.Address
	case FieldEmail:
		return o.Email
	case FieldPhone:
		return o.Phone
	}
	return ""
}

// OrderResult is the confirmation returned when an order is accepted.
type OrderResult struct {
	ID    string          `json:"id"`
	Total decimal.Decimal `json:"total"`
}

// Change event payloads.

type CatalogChanged struct {
	Catalog []Product `json:"catalog"`
}

type BasketChanged struct {
	Items []Product       `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type ErrorsChanged struct {
	Group  FieldGroup `json:"group"`
	Errors FormErrors `json:"errors"`
}

type OrderReady struct {
	Group FieldGroup `json:"group"`
	Order Order      `json:"order"`
}
