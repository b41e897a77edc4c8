package orderform

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Details are the delivery fields the customer fills in before payment.
type Details struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email_shape"`
	Phone          string `json:"phone" validate:"required"`
	Address        string `json:"address" validate:"required"`
	City           string `json:"city" validate:"required"`
	Zip            string `json:"zip" validate:"required"`
	DeliveryDate   string `json:"delivery_date" validate:"required"`
	DeliveryWindow string `json:"delivery_window" validate:"required"`
	Instructions   string `json:"instructions"`
}

// emailShape requires a local@domain.tld form; the checkout does not attempt
// full RFC validation.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	v.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

// Validate checks the delivery details as a unit and returns per-field
// messages, empty when everything passes. Validation is client-side only; the
// payment backend never re-checks these fields.
func Validate(details Details) map[string]string {
	err := validate.Struct(trimmed(details))
	if err == nil {
		return map[string]string{}
	}

	problems := map[string]string{}
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range errs {
			problems[fieldErr.Field()] = message(fieldErr)
		}
		return problems
	}
	problems["form"] = "could not validate the form"
	return problems
}

func trimmed(details Details) Details {
	details.Name = strings.TrimSpace(details.Name)
	details.Email = strings.TrimSpace(details.Email)
	details.Phone = strings.TrimSpace(details.Phone)
	details.Address = strings.TrimSpace(details.Address)
	details.City = strings.TrimSpace(details.City)
	details.Zip = strings.TrimSpace(details.Zip)
	details.DeliveryDate = strings.TrimSpace(details.DeliveryDate)
	details.DeliveryWindow = strings.TrimSpace(details.DeliveryWindow)
	return details
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email_shape":
		return "must be a valid email address"
	}
	return "is invalid"
}
