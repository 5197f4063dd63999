package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront-api/internal/appstate"
	"storefront-api/internal/checkout"
	"storefront-api/internal/eventbus"
	"storefront-api/internal/models"
	"storefront-api/internal/session"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateIntentRequest, models.IntentRequest{})
	return v
}

// validateIntentRequest checks the fields whose presence depends on the intent
func validateIntentRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.IntentRequest)

	switch req.Intent {
	case models.IntentCardSelect, models.IntentBasketAdd, models.IntentBasketRemove, models.IntentBasketToggle:
		if req.ProductID == "" {
			sl.ReportError(req.ProductID, "productId", "ProductID", "required_for_intent", req.Intent)
		}
	case models.IntentOrderChange:
		checkFieldGroup(sl, req, appstate.GroupDelivery)
	case models.IntentContactsChange:
		checkFieldGroup(sl, req, appstate.GroupContacts)
	}
}

func checkFieldGroup(sl validator.StructLevel, req models.IntentRequest, group appstate.FieldGroup) {
	if req.Field == "" {
		sl.ReportError(req.Field, "field", "Field", "required_for_intent", req.Intent)
		return
	}
	if appstate.Field(req.Field).Group() != group {
		sl.ReportError(req.Field, "field", "Field", "field_group", string(group))
	}
}

// validationDetails turns validator errors into response details
func validationDetails(err error) []models.ErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.ErrorDetail{{Field: "body", Issue: err.Error()}}
	}

	details := make([]models.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, models.ErrorDetail{Field: fe.Field(), Issue: issueFor(fe)})
	}
	return details
}

func issueFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_for_intent":
		return "is required for intent " + fe.Param()
	case "field_group":
		return "must be a " + fe.Param() + " field"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// intentTopic maps a validated request to the bus topic it is published on
func intentTopic(req models.IntentRequest) eventbus.Topic {
	switch req.Intent {
	case models.IntentOrderChange, models.IntentContactsChange:
		return checkout.FieldChangeTopic(appstate.Field(req.Field))
	default:
		return eventbus.Topic(req.Intent)
	}
}

// errorStatus maps domain errors to an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		return http.StatusConflict, "submission_in_progress"
	case errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, appstate.ErrInvalidPayment):
		return http.StatusUnprocessableEntity, "invalid_payment"
	case errors.Is(err, appstate.ErrInvalidField):
		return http.StatusUnprocessableEntity, "invalid_field"
	case errors.Is(err, checkout.ErrUnknownProduct):
		return http.StatusUnprocessableEntity, "unknown_product"
	case errors.Is(err, checkout.ErrNotPurchasable):
		return http.StatusUnprocessableEntity, "not_purchasable"
	case errors.Is(err, checkout.ErrEmptyBasket):
		return http.StatusUnprocessableEntity, "empty_basket"
	case errors.Is(err, checkout.ErrIncompleteOrder):
		return http.StatusUnprocessableEntity, "incomplete_order"
	case errors.Is(err, checkout.ErrFormNotOpen):
		return http.StatusUnprocessableEntity, "form_not_open"
	case errors.Is(err, session.ErrSubmissionFailed):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError writes err using errorStatus
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("Request rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	writeErrorResponse(w, status, code, err.Error(), nil)
}

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	writeJSONResponse(w, statusCode, models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
