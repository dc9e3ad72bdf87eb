package services

import (
	"math"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that knows the rules used by request types.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for empty tags or nil functions.
	_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		value := fl.Field().Float()

		return !math.IsNaN(value) && !math.IsInf(value, 0)
	})

	return validate
}
