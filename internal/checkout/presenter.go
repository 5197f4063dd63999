// Package checkout wires user intents to the session state and tracks the
// checkout flow: browsing, preview, basket, delivery form, contacts form,
// submission and its outcome.
package checkout

import (
	"errors"
	"fmt"
	"log/slog"

	"storefront-api/internal/appstate"
	"storefront-api/internal/eventbus"
)

var (
	ErrInvalidTransition    = errors.New("invalid checkout transition")
	ErrUnknownProduct       = errors.New("unknown product")
	ErrNotPurchasable       = errors.New("product is not purchasable")
	ErrEmptyBasket          = errors.New("basket is empty")
	ErrIncompleteOrder      = errors.New("order form is incomplete")
	ErrSubmissionInProgress = errors.New("order submission in progress")
	ErrFormNotOpen          = errors.New("form is not open")
)

// Intent topics consumed by the presenter.
const (
	TopicCardSelect    eventbus.Topic = "card.select"
	TopicBasketAdd     eventbus.Topic = "basket.add"
	TopicBasketRemove  eventbus.Topic = "basket.remove"
	TopicBasketToggle  eventbus.Topic = "basket.toggle"
	TopicBasketOpen    eventbus.Topic = "basket.open"
	TopicOrderOpen     eventbus.Topic = "order.open"
	TopicOrderChange   eventbus.Topic = "order.*.change"
	TopicOrderSubmit   eventbus.Topic = "order.submit"
	TopicContactChange eventbus.Topic = "contacts.*.change"
	TopicModalClose    eventbus.Topic = "modal.close"
)

// Change topics published by the presenter.
const (
	TopicStepChanged    eventbus.Topic = "checkout.step.changed"
	TopicOrderSucceeded eventbus.Topic = "order.succeeded"
	TopicOrderFailed    eventbus.Topic = "order.failed"
)

// FieldChangeTopic returns the intent topic for editing a form field,
// e.g. "order.payment.change" or "contacts.email.change".
func FieldChangeTopic(field appstate.Field) eventbus.Topic {
	form := "order"
	if field.Group() == appstate.GroupContacts {
		form = "contacts"
	}
	return eventbus.Join(form, string(field), "change")
}

// Intent is the payload of an intent event.
type Intent struct {
	ProductID string `json:"productId,omitempty"`
	Value     string `json:"value,omitempty"`
}

// OrderFailed is the payload of TopicOrderFailed.
type OrderFailed struct {
	Message string `json:"message"`
}

// Bus is the part of the event bus the presenter uses.
type Bus interface {
	Subscribe(pattern eventbus.Topic, handler eventbus.Handler) (*eventbus.Subscription, error)
	SubscribeFunc(match eventbus.MatchFunc, handler eventbus.Handler) (*eventbus.Subscription, error)
	Publish(topic eventbus.Topic, payload any) error
}

// Presenter translates intents into State calls and owns the step machine.
// Like State, it expects its caller to serialize access.
type Presenter struct {
	state      *appstate.State
	bus        Bus
	logger     *slog.Logger
	step       Step
	lastResult *appstate.OrderResult
	lastError  string
	subs       []*eventbus.Subscription
}

// NewPresenter subscribes a presenter to the intent topics on bus.
func NewPresenter(state *appstate.State, bus Bus, logger *slog.Logger) (*Presenter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Presenter{
		state:  state,
		bus:    bus,
		logger: logger,
		step:   StepBrowsing,
	}

	routes := []struct {
		topic   eventbus.Topic
		handler func(eventbus.Event) error
	}{
		{TopicCardSelect, p.onCardSelect},
		{TopicBasketAdd, p.onBasketAdd},
		{TopicBasketRemove, p.onBasketRemove},
		{TopicBasketToggle, p.onBasketToggle},
		{TopicBasketOpen, p.onBasketOpen},
		{TopicOrderOpen, p.onOrderOpen},
		{TopicOrderChange, p.onFieldChange},
		{TopicOrderSubmit, p.onOrderSubmit},
		{TopicContactChange, p.onFieldChange},
		{TopicModalClose, p.onModalClose},
	}
	for _, r := range routes {
		sub, err := bus.Subscribe(r.topic, p.guard(r.handler))
		if err != nil {
			p.Detach()
			return nil, fmt.Errorf("subscribe %s: %w", r.topic, err)
		}
		p.subs = append(p.subs, sub)
	}
	return p, nil
}

// Detach removes the presenter's subscriptions.
func (p *Presenter) Detach() {
	for _, sub := range p.subs {
		_ = sub.Cancel()
	}
	p.subs = nil
}

// Step returns the current checkout step.
func (p *Presenter) Step() Step {
	return p.step
}

// LastResult returns the last accepted order, if any.
func (p *Presenter) LastResult() (appstate.OrderResult, bool) {
	if p.lastResult == nil {
		return appstate.OrderResult{}, false
	}
	return *p.lastResult, true
}

// LastError returns the message of the last failed submission.
func (p *Presenter) LastError() string {
	return p.lastError
}

// guard rejects every intent while an order is being submitted.
func (p *Presenter) guard(next func(eventbus.Event) error) eventbus.Handler {
	return func(ev eventbus.Event) error {
		if p.step == StepSubmitting {
			return ErrSubmissionInProgress
		}
		return next(ev)
	}
}

func intentOf(ev eventbus.Event) Intent {
	switch v := ev.Payload.(type) {
	case Intent:
		return v
	case *Intent:
		if v != nil {
			return *v
		}
	}
	return Intent{}
}

func (p *Presenter) catalogProduct(id string) (appstate.Product, error) {
	product, ok := p.state.FindProduct(id)
	if !ok {
		return appstate.Product{}, fmt.Errorf("%w: %q", ErrUnknownProduct, id)
	}
	return product, nil
}

func (p *Presenter) onCardSelect(ev eventbus.Event) error {
	product, err := p.catalogProduct(intentOf(ev).ProductID)
	if err != nil {
		return err
	}
	if err := p.setStep(StepPreview); err != nil {
		return err
	}
	return p.state.SetPreview(product)
}

func (p *Presenter) onBasketAdd(ev eventbus.Event) error {
	product, err := p.catalogProduct(intentOf(ev).ProductID)
	if err != nil {
		return err
	}
	if product.Priceless() {
		return fmt.Errorf("%w: %q", ErrNotPurchasable, product.ID)
	}
	return p.state.AddToBasket(product)
}

func (p *Presenter) onBasketRemove(ev eventbus.Event) error {
	id := intentOf(ev).ProductID
	for _, item := range p.state.BasketItems() {
		if item.ID == id {
			return p.state.RemoveFromBasket(item)
		}
	}
	return p.state.RemoveFromBasket(appstate.Product{ID: id})
}

func (p *Presenter) onBasketToggle(ev eventbus.Event) error {
	if p.state.IsProductInBasket(appstate.Product{ID: intentOf(ev).ProductID}) {
		return p.onBasketRemove(ev)
	}
	return p.onBasketAdd(ev)
}

func (p *Presenter) onBasketOpen(eventbus.Event) error {
	return p.setStep(StepBasket)
}

func (p *Presenter) onOrderOpen(eventbus.Event) error {
	if len(p.state.BasketItems()) == 0 {
		return ErrEmptyBasket
	}
	return p.setStep(StepDeliveryForm)
}

func (p *Presenter) onFieldChange(ev eventbus.Event) error {
	field := appstate.Field(ev.Topic.Segment(1))
	value := intentOf(ev).Value

	switch ev.Topic.Segment(0) {
	case "order":
		if p.step != StepDeliveryForm && p.step != StepFailed {
			return fmt.Errorf("%w: delivery form at step %s", ErrFormNotOpen, p.step)
		}
		return p.state.SetOrderField(field, value)
	default:
		if p.step != StepContactsForm && p.step != StepFailed {
			return fmt.Errorf("%w: contacts form at step %s", ErrFormNotOpen, p.step)
		}
		return p.state.SetContactsField(field, value)
	}
}

func (p *Presenter) onOrderSubmit(eventbus.Event) error {
	if !p.state.GroupComplete(appstate.GroupDelivery) {
		return fmt.Errorf("%w: %s", ErrIncompleteOrder, appstate.GroupDelivery)
	}
	return p.setStep(StepContactsForm)
}

func (p *Presenter) onModalClose(eventbus.Event) error {
	return p.setStep(StepBrowsing)
}

// BeginSubmission materializes the order and enters the submitting step.
// The returned order is what must be sent upstream.
func (p *Presenter) BeginSubmission() (appstate.Order, error) {
	if !CanTransition(p.step, StepSubmitting) {
		return appstate.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.step, StepSubmitting)
	}
	if len(p.state.BasketItems()) == 0 {
		return appstate.Order{}, ErrEmptyBasket
	}
	for _, group := range []appstate.FieldGroup{appstate.GroupDelivery, appstate.GroupContacts} {
		if !p.state.GroupComplete(group) {
			return appstate.Order{}, fmt.Errorf("%w: %s", ErrIncompleteOrder, group)
		}
	}

	order := p.state.SetOrder()
	if err := p.setStep(StepSubmitting); err != nil {
		return appstate.Order{}, err
	}
	p.logger.Info("Order submission started", "items", len(order.Items), "total", order.Total.String())
	return order, nil
}

// CompleteSubmission resets the basket and draft after the order was accepted.
func (p *Presenter) CompleteSubmission(result appstate.OrderResult) error {
	if p.step != StepSubmitting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.step, StepSuccess)
	}
	p.lastResult = &result
	p.lastError = ""

	resetErr := p.state.ResetOrder()
	if err := p.setStep(StepSuccess); err != nil {
		return errors.Join(resetErr, err)
	}
	return errors.Join(resetErr, p.bus.Publish(TopicOrderSucceeded, result))
}

// FailSubmission records a rejected submission and leaves the state
// untouched so the user can retry.
func (p *Presenter) FailSubmission(cause error) error {
	if p.step != StepSubmitting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.step, StepFailed)
	}
	p.lastError = "order submission failed"
	if cause != nil {
		p.lastError = cause.Error()
	}
	if err := p.setStep(StepFailed); err != nil {
		return err
	}
	return p.bus.Publish(TopicOrderFailed, OrderFailed{Message: p.lastError})
}

func (p *Presenter) setStep(to Step) error {
	from := p.step
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	p.step = to
	if from == to {
		return nil
	}
	p.logger.Debug("Checkout step changed", "from", from, "to", to)
	return p.bus.Publish(TopicStepChanged, StepChanged{From: from, To: to})
}
