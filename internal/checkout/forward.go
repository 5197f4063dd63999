package checkout

import (
	"storefront-api/internal/appstate"
	"storefront-api/internal/eventbus"
)

var changePatterns = []eventbus.Topic{
	appstate.TopicCatalogChanged,
	appstate.TopicBasketChanged,
	appstate.TopicPreviewChanged,
	"*.errors.changed",
	appstate.TopicOrderReady,
	TopicOrderSucceeded,
	TopicOrderFailed,
	"checkout.**",
}

// IsChangeTopic reports whether a topic announces a completed state change,
// as opposed to a user intent.
func IsChangeTopic(t eventbus.Topic) bool {
	for _, pattern := range changePatterns {
		if t.Matches(pattern) {
			return true
		}
	}
	return false
}

// ForwardChanges hands every change event on bus to sink. This is the
// presentation side of the session: the sink typically feeds a client.
func ForwardChanges(bus Bus, sink func(eventbus.Event)) (*eventbus.Subscription, error) {
	return bus.SubscribeFunc(IsChangeTopic, func(ev eventbus.Event) error {
		sink(ev)
		return nil
	})
}
