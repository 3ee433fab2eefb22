package companies

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// HeaderCompanyID carries the tenant on every ledger request.
const HeaderCompanyID = "X-Company-ID"

// Checker tells whether a company exists.
type Checker interface {
	Exists(ctx context.Context, companyID int64) (bool, error)
}

// Middleware scopes requests to a company.
type Middleware struct {
	Companies Checker
	Logger    *slog.Logger
}

// RequireCompany reads the company from the X-Company-ID header or the
// company_id query parameter and stores it on the request context. Malformed
// ids are rejected with 400, unknown companies with 404.
func (m Middleware) RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderCompanyID))
		if raw == "" {
			raw = strings.TrimSpace(r.URL.Query().Get("company_id"))
		}
		if raw == "" {
			httpx.RespondError(w, m.Logger, shared.Validation("company id required"))
			return
		}
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || companyID <= 0 {
			httpx.RespondError(w, m.Logger, shared.Validation("invalid company id %q", raw))
			return
		}
		ok, err := m.Companies.Exists(r.Context(), companyID)
		if err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		if !ok {
			httpx.RespondError(w, m.Logger, shared.ErrCompanyNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCompany(r.Context(), companyID)))
	})
}
