package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/api/validators"
	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

// AuditQuery returns the audit trail scoped to an order, a stage instance, or
// a single record. Filters are mutually exclusive; the broadest given wins.
func AuditQuery(svc *audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseQueryUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stageID, err := validators.ParseQueryUUID(r, "stageInstanceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := audit.QueryInput{
			OrderID:         orderID,
			StageInstanceID: stageID,
			Limit:           limit,
			Cursor:          strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if kindRaw := strings.TrimSpace(r.URL.Query().Get("kind")); kindRaw != "" {
			kind, err := types.ParseAuditKind(kindRaw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeValidation, err, "invalid kind filter"))
				return
			}
			recordID, err := validators.ParseQueryUUID(r, "recordId")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if recordID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeValidation, "recordId is required with kind"))
				return
			}
			ref := types.Ref(kind, recordID)
			input.Ref = &ref
		}

		result, err := svc.Query(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"entries":    result.Entries,
			"nextCursor": result.NextCursor,
		})
	}
}
