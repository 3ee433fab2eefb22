package shared

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateStruct runs struct tag validation and folds field errors into one
// validation error.
func ValidateStruct(target any) error {
	err := structValidator.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	sort.Strings(msgs)
	return Validation("invalid request: %s", strings.Join(msgs, "; "))
}
