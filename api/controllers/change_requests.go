package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/api/validators"
	"github.com/stagetrak/stagetrak-backend/internal/requests"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
)

type changeRequestSubmitRequest struct {
	StageInstanceID uuid.UUID  `json:"stageInstanceId" validate:"required"`
	Type            string     `json:"type" validate:"required,oneof=add edit delete"`
	TargetRowID     *uuid.UUID `json:"targetRowId,omitempty"`
	DefectTypeID    *uuid.UUID `json:"defectTypeId,omitempty"`
	Reason          string     `json:"reason" validate:"required,min=1,max=500"`
	defectQuantities
}

// ChangeRequestSubmit files a change request against a stage's ledger.
func ChangeRequestSubmit(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req changeRequestSubmitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestType, err := enums.ParseRequestType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Submit(r.Context(), requests.SubmitInput{
			StageInstanceID: req.StageInstanceID,
			Type:            requestType,
			TargetRowID:     req.TargetRowID,
			DefectTypeID:    req.DefectTypeID,
			Requested:       req.toQuantities(),
			Reason:          req.Reason,
			ActorID:         act.ID,
			ActorName:       act.Name,
			ActorRole:       act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ChangeRequestList returns change requests, filterable by order, stage,
// status, type and requester.
func ChangeRequestList(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
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
		requesterID, err := validators.ParseQueryUUID(r, "requestedById")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), requests.ListInput{
			OrderID:         orderID,
			StageInstanceID: stageID,
			Status:          strings.TrimSpace(r.URL.Query().Get("status")),
			Type:            strings.TrimSpace(r.URL.Query().Get("type")),
			RequestedByID:   requesterID,
			Limit:           limit,
			Cursor:          strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"requests":   result.Requests,
			"nextCursor": result.NextCursor,
		})
	}
}

// ChangeRequestDetail returns one change request.
func ChangeRequestDetail(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Get(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type changeRequestResolveRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approve reject"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ChangeRequestResolve approves or rejects a pending change request.
func ChangeRequestResolve(svc *requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req changeRequestResolveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Resolve(r.Context(), requests.ResolveInput{
			RequestID: requestID,
			Approve:   req.Decision == "approve",
			Note:      req.Note,
			ActorID:   act.ID,
			ActorRole: act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
