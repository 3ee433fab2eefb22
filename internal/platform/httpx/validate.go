package httpx

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Validate runs struct tag validation on a decoded request.
func Validate(target any) error {
	return shared.ValidateStruct(target)
}

// Bind decodes the JSON body into target and validates it.
func Bind(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	return Validate(target)
}

// CompanyID returns the tenant resolved by the company middleware.
func CompanyID(r *http.Request) (int64, error) {
	id, ok := shared.CompanyFromContext(r.Context())
	if !ok {
		return 0, shared.Validation("company id required")
	}
	return id, nil
}
