package services

import (
	"fmt"
	"pick-roll/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	return nil
}
