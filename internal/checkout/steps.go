package checkout

// Step is a stage of the checkout flow.
type Step string

const (
	StepBrowsing     Step = "browsing"
	StepPreview      Step = "preview"
	StepBasket       Step = "basket"
	StepDeliveryForm Step = "delivery_form"
	StepContactsForm Step = "contacts_form"
	StepSubmitting   Step = "submitting"
	StepSuccess      Step = "success"
	StepFailed       Step = "failed"
)

// transitions lists, for each target step, the steps it can be entered from.
var transitions = map[Step][]Step{
	StepPreview:      {StepBrowsing, StepPreview, StepBasket, StepSuccess},
	StepBasket:       {StepBrowsing, StepPreview, StepBasket, StepDeliveryForm, StepSuccess},
	StepDeliveryForm: {StepBasket, StepContactsForm},
	StepContactsForm: {StepDeliveryForm},
	StepSubmitting:   {StepContactsForm, StepFailed},
	StepSuccess:      {StepSubmitting},
	StepFailed:       {StepSubmitting},
	StepBrowsing: {
		StepBrowsing, StepPreview, StepBasket, StepDeliveryForm,
		StepContactsForm, StepSuccess, StepFailed,
	},
}

// CanTransition reports whether the flow may move from one step to another.
func CanTransition(from, to Step) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// StepChanged is published on every step change.
type StepChanged struct {
	From Step `json:"from"`
	To   Step `json:"to"`
}
