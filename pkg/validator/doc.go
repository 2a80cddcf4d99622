// Package validator builds declarative validation rules and aggregates their
// failures into a single error value.
//
// Each rule constructor returns a Rule that pairs a Check function with the
// ValidationError reported when the check fails. Apply evaluates a list of
// rules and returns ValidationErrors, which implements error and can be
// recovered from wrapped errors with ExtractValidationErrors:
//
//	err := validator.Apply(
//	    validator.RequiredString("payment_type", in.PaymentType),
//	    validator.When(isCard, validator.RequiredString("holder_name", in.HolderName)),
//	    validator.When(isCard, validator.Digits("card_number", in.CardNumber, 16)),
//	)
//
// Errors carry a translation key and values next to the English message so
// that callers can render localized messages.
package validator
