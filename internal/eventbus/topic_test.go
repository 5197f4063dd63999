package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"basket.changed", "basket.changed", true},
		{"basket.changed", "basket.cleared", false},
		{"order.payment.change", "order.*.change", true},
		{"order.address.change", "order.*.change", true},
		{"contacts.email.change", "order.*.change", false},
		{"order.payment.change", "order.*", false},
		{"order.payment.change", "order.**", true},
		{"order.ready", "order.**", true},
		{"order", "order.**", true},
		{"checkout.step.changed", "**", true},
		{"delivery.errors.changed", "*.errors.changed", true},
		{"contacts.errors.changed", "*.errors.changed", true},
		{"order.ready", "*.errors.changed", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+"~"+string(tt.pattern), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestTopic_Validity(t *testing.T) {
	assert.True(t, Topic("basket.changed").IsValid())
	assert.False(t, Topic("").IsValid())
	assert.False(t, Topic("basket..changed").IsValid())
	assert.False(t, Topic(".basket").IsValid())
	assert.False(t, Topic("order.*.change").IsValid())

	assert.True(t, Topic("order.*.change").IsValidPattern())
	assert.True(t, Topic("order.**").IsValidPattern())
	assert.False(t, Topic("order.pay*.change").IsValidPattern())
	assert.False(t, Topic("order..change").IsValidPattern())
}

func TestTopic_Segments(t *testing.T) {
	topic := Topic("order.payment.change")

	assert.Equal(t, []string{"order", "payment", "change"}, topic.Segments())
	assert.Equal(t, "payment", topic.Segment(1))
	assert.Equal(t, "", topic.Segment(5))
	assert.Equal(t, topic, Join("order", "payment", "change"))
}
