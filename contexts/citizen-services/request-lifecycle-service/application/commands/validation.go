package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tags and folds field failures into a single
// validation error naming the offending fields.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidRequestInput, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		fields = append(fields, fieldErr.Namespace()+" "+fieldErr.Tag())
	}
	return fmt.Errorf("%w: %s", domainerrors.ErrInvalidRequestInput, strings.Join(fields, ", "))
}
