package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateDTO reports the first failing field as an ErrInvalidInput.
func ValidateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			first := vErrs[0]
			return fmt.Errorf("%w: field [%s] failed rule [%s]", ErrInvalidInput, first.Field(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// bind decodes the JSON body into dto and validates it.
func bind(c *gin.Context, dto any) error {
	if err := c.ShouldBindJSON(dto); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return ValidateDTO(dto)
}
