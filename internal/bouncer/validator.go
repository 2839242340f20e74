package bouncer

import (
	"github.com/go-playground/validator/v10"
)

// structValidator implements echo.Validator.
type structValidator struct {
	validator *validator.Validate
}

func newStructValidator() *structValidator {
	return &structValidator{validator: validator.New()}
}

func (v *structValidator) Validate(i any) error {
	return v.validator.Struct(i)
}
