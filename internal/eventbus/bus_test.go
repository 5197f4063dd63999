package eventbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_ExactSubscription(t *testing.T) {
	bus := New()
	var got []any

	_, err := bus.Subscribe("basket.changed", func(ev Event) error {
		got = append(got, ev.Payload)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("basket.changed", 1))
	require.NoError(t, bus.Publish("catalog.changed", 2))

	assert.Equal(t, []any{1}, got)
}

func TestBus_PatternSubscription(t *testing.T) {
	bus := New()
	var topics []Topic

	_, err := bus.Subscribe("order.*.change", func(ev Event) error {
		topics = append(topics, ev.Topic)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("order.payment.change", "card"))
	require.NoError(t, bus.Publish("order.address.change", "X"))
	require.NoError(t, bus.Publish("contacts.email.change", "a@b.c"))

	assert.Equal(t, []Topic{"order.payment.change", "order.address.change"}, topics)
}

func TestBus_PredicateSubscription(t *testing.T) {
	bus := New()
	count := 0

	_, err := bus.SubscribeFunc(func(t Topic) bool { return t.Segment(2) == "change" }, func(Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("order.payment.change", nil))
	require.NoError(t, bus.Publish("contacts.phone.change", nil))
	require.NoError(t, bus.Publish("order.ready", nil))

	assert.Equal(t, 2, count)
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := New()
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		_, err := bus.Subscribe("**", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish("anything", nil))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestBus_NestedPublishIsDepthFirst(t *testing.T) {
	bus := New()
	var trace []string

	_, err := bus.Subscribe("outer", func(Event) error {
		trace = append(trace, "outer:1")
		if err := bus.Publish("inner", nil); err != nil {
			return err
		}
		trace = append(trace, "outer:1:done")
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("outer", func(Event) error {
		trace = append(trace, "outer:2")
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("inner", func(Event) error {
		trace = append(trace, "inner")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("outer", nil))

	assert.Equal(t, []string{"outer:1", "inner", "outer:1:done", "outer:2"}, trace)
}

func TestBus_MaxDepth(t *testing.T) {
	bus := New(WithMaxDepth(4))
	calls := 0

	_, err := bus.Subscribe("loop", func(Event) error {
		calls++
		return bus.Publish("loop", nil)
	})
	require.NoError(t, err)

	err = bus.Publish("loop", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
	assert.Equal(t, 4, calls)
}

func TestBus_HandlerErrorsDoNotStopDelivery(t *testing.T) {
	bus := New()
	boom := errors.New("boom")
	delivered := false

	failing, err := bus.Subscribe("x", func(Event) error { return boom })
	require.NoError(t, err)
	_, err = bus.Subscribe("x", func(Event) error {
		delivered = true
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish("x", nil)

	require.Error(t, err)
	assert.True(t, delivered)
	assert.ErrorIs(t, err, boom)

	var herr *HandlerError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, failing.ID(), herr.SubscriptionID)
	assert.Equal(t, Topic("x"), herr.Topic)
	assert.Equal(t, uint64(1), bus.Stats().HandlerErrors)
}

func TestBus_PanicIsRecovered(t *testing.T) {
	bus := New()

	_, err := bus.Subscribe("x", func(Event) error { panic("bad handler") })
	require.NoError(t, err)

	err = bus.Publish("x", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerPanic)

	var perr *PanicError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad handler", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	count := 0

	sub, err := bus.Subscribe("x", func(Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("x", nil))
	require.NoError(t, sub.Cancel())
	require.NoError(t, bus.Publish("x", nil))

	assert.Equal(t, 1, count)
	assert.False(t, sub.Active())
	assert.ErrorIs(t, bus.Unsubscribe(sub), ErrSubscriptionNotFound)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_UnsubscribeDuringDispatch(t *testing.T) {
	bus := New()
	var second *Subscription
	secondCalls := 0

	_, err := bus.Subscribe("x", func(Event) error {
		return second.Cancel()
	})
	require.NoError(t, err)
	second, err = bus.Subscribe("x", func(Event) error {
		secondCalls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("x", nil))
	assert.Equal(t, 0, secondCalls)
}

func TestBus_SubscribeDuringDispatchSeesNextPublish(t *testing.T) {
	bus := New()
	lateCalls := 0
	subscribed := false

	_, err := bus.Subscribe("x", func(Event) error {
		if subscribed {
			return nil
		}
		subscribed = true
		_, err := bus.Subscribe("x", func(Event) error {
			lateCalls++
			return nil
		})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("x", nil))
	assert.Equal(t, 0, lateCalls)

	require.NoError(t, bus.Publish("x", nil))
	assert.Equal(t, 1, lateCalls)
}

func TestBus_InvalidInput(t *testing.T) {
	bus := New()

	_, err := bus.Subscribe("", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = bus.Subscribe("order.pay*", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = bus.Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = bus.SubscribeFunc(nil, func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrNilHandler)

	assert.ErrorIs(t, bus.Publish("order.*.change", nil), ErrInvalidTopic)
	assert.ErrorIs(t, bus.Unsubscribe(nil), ErrSubscriptionNotFound)
}

func TestBus_Stats(t *testing.T) {
	bus := New()

	_, err := bus.Subscribe("x", func(Event) error { return nil })
	require.NoError(t, err)
	_, err = bus.Subscribe("**", func(Event) error { return nil })
	require.NoError(t, err)

	require.NoError(t, bus.Publish("x", nil))
	require.NoError(t, bus.Publish("y", nil))

	stats := bus.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(3), stats.Delivered)
	assert.Equal(t, 2, stats.Subscriptions)
}
