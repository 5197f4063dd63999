// Package appstate holds the storefront session state: catalog, basket,
// preview selection, order draft and validation errors. Every mutation
// publishes a change event on the injected publisher.
//
// State is not safe for concurrent use. Callers serialize access, the
// session layer does this with a per-session lock.
package appstate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-api/internal/eventbus"
)

// Change topics published by State.
const (
	TopicCatalogChanged        eventbus.Topic = "catalog.changed"
	TopicBasketChanged         eventbus.Topic = "basket.changed"
	TopicPreviewChanged        eventbus.Topic = "preview.changed"
	TopicDeliveryErrorsChanged eventbus.Topic = "delivery.errors.changed"
	TopicContactsErrorsChanged eventbus.Topic = "contacts.errors.changed"
	TopicOrderReady            eventbus.Topic = "order.ready"
)

var groupTopics = map[FieldGroup]eventbus.Topic{
	GroupDelivery: TopicDeliveryErrorsChanged,
	GroupContacts: TopicContactsErrorsChanged,
}

// Publisher is the part of the event bus State needs.
type Publisher interface {
	Publish(topic eventbus.Topic, payload any) error
}

// State is the single source of truth for one storefront session.
//
// Mutators apply their change before publishing. A non-nil error from a
// mutator means a subscriber failed; the change itself is kept.
type State struct {
	events  Publisher
	catalog []Product
	basket  []Product
	preview string
	order   Order
	errors  FormErrors
}

// New creates an empty state publishing on events.
func New(events Publisher) *State {
	return &State{
		events: events,
		errors: FormErrors{},
	}
}

// SetCatalog replaces the catalog.
func (s *State) SetCatalog(products []Product) error {
	s.catalog = append([]Product(nil), products...)
	return s.events.Publish(TopicCatalogChanged, CatalogChanged{Catalog: s.Catalog()})
}

// Catalog returns a copy of the catalog.
func (s *State) Catalog() []Product {
	return append(make([]Product, 0, len(s.catalog)), s.catalog...)
}

// FindProduct looks a product up in the catalog.
func (s *State) FindProduct(id string) (Product, bool) {
	for _, p := range s.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// AddToBasket adds a product once. Adding a product already in the basket
// leaves the basket as is but still publishes.
func (s *State) AddToBasket(p Product) error {
	if !s.IsProductInBasket(p) {
		s.basket = append(s.basket, p)
	}
	return s.publishBasket()
}

// RemoveFromBasket removes a product by id. Removing an absent product
// still publishes.
func (s *State) RemoveFromBasket(p Product) error {
	for i, item := range s.basket {
		if item.ID == p.ID {
			s.basket = append(s.basket[:i:i], s.basket[i+1:]...)
			break
		}
	}
	return s.publishBasket()
}

// ClearBasket empties the basket.
func (s *State) ClearBasket() error {
	s.basket = nil
	return s.publishBasket()
}

func (s *State) publishBasket() error {
	return s.events.Publish(TopicBasketChanged, BasketChanged{
		Items: s.BasketItems(),
		Total: s.Total(),
	})
}

// BasketItems returns the basket in insertion order.
func (s *State) BasketItems() []Product {
	return append(make([]Product, 0, len(s.basket)), s.basket...)
}

// Total sums basket prices. Priceless products add zero.
func (s *State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.basket {
		total = total.Add(p.PriceOrZero())
	}
	return total
}

// IsProductInBasket reports basket membership by id.
func (s *State) IsProductInBasket(p Product) bool {
	for _, item := range s.basket {
		if item.ID == p.ID {
			return true
		}
	}
	return false
}

// SetPreview selects the previewed product.
func (s *State) SetPreview(p Product) error {
	s.preview = p.ID
	return s.events.Publish(TopicPreviewChanged, p)
}

// Preview returns the previewed product id, "" when nothing is selected.
func (s *State) Preview() string {
	return s.preview
}

// SetOrderField sets a delivery field (payment or address) and validates
// the delivery group.
func (s *State) SetOrderField(field Field, value string) error {
	return s.setField(GroupDelivery, field, value)
}

// SetContactsField sets a contacts field (email or phone) and validates
// the contacts group.
func (s *State) SetContactsField(field Field, value string) error {
	return s.setField(GroupContacts, field, value)
}

func (s *State) setField(group FieldGroup, field Field, value string) error {
	if field.Group() != group {
		return fmt.Errorf("%w: %q is not a %s field", ErrInvalidField, field, group)
	}

	switch field {
	case FieldPayment:
		method, err := ParsePaymentMethod(value)
		if err != nil {
			return fmt.Errorf("%w: %q", err, value)
		}
		s.order.Payment = method
	case FieldAddress:
		s.order.Address = value
	case FieldEmail:
		s.order.Email = value
	case FieldPhone:
		s.order.Phone = value
	}

	valid, err := s.validate(group)
	if err != nil || !valid {
		return err
	}
	return s.events.Publish(TopicOrderReady, OrderReady{Group: group, Order: s.Order()})
}

// validate recomputes the errors of one group, leaves the other group
// untouched and publishes the group's errors.
func (s *State) validate(group FieldGroup) (bool, error) {
	groupErrors := FormErrors{}
	for _, f := range group.Fields() {
		delete(s.errors, f)
		if s.order.value(f) == "" {
			groupErrors[f] = fieldMessages[f]
			s.errors[f] = fieldMessages[f]
		}
	}

	err := s.events.Publish(groupTopics[group], ErrorsChanged{Group: group, Errors: groupErrors})
	return len(groupErrors) == 0, err
}

// GroupComplete reports whether every field of the group is filled. It
// does not publish.
func (s *State) GroupComplete(group FieldGroup) bool {
	for _, f := range group.Fields() {
		if s.order.value(f) == "" {
			return false
		}
	}
	return true
}

// Errors returns all current validation errors.
func (s *State) Errors() FormErrors {
	return s.errors.clone()
}

// GroupErrors returns the current validation errors of one group.
func (s *State) GroupErrors(group FieldGroup) FormErrors {
	out := FormErrors{}
	for _, f := range group.Fields() {
		if msg, ok := s.errors[f]; ok {
			out[f] = msg
		}
	}
	return out
}

// SetOrder fills the draft's items and total from the basket and returns
// the snapshot to submit.
func (s *State) SetOrder() Order {
	items := make([]string, 0, len(s.basket))
	for _, p := range s.basket {
		items = append(items, p.ID)
	}
	s.order.Items = items
	s.order.Total = s.Total()
	return s.Order()
}

// Order returns a copy of the order draft.
func (s *State) Order() Order {
	o := s.order
	if o.Items != nil {
		o.Items = append(make([]string, 0, len(o.Items)), o.Items...)
	}
	return o
}

// ResetOrder clears the basket, the draft and the validation errors after
// a successful submission.
func (s *State) ResetOrder() error {
	s.order = Order{}
	s.errors = FormErrors{}
	return s.ClearBasket()
}
