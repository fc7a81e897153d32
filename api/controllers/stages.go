package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/api/validators"
	"github.com/stagetrak/stagetrak-backend/internal/stages"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

type stageStartRequest struct {
	EncoderID      *uuid.UUID       `json:"encoderId,omitempty"`
	Shift          string           `json:"shift,omitempty" validate:"omitempty,max=32"`
	LineNo         *string          `json:"lineNo,omitempty" validate:"omitempty,max=32"`
	ResourceFactor *decimal.Decimal `json:"resourceFactor,omitempty"`
}

// StageStart opens the named catalog stage for an order.
func StageStart(svc *stages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req stageStartRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := stages.StartInput{
			OrderID:   orderID,
			StageCode: strings.TrimSpace(chi.URLParam(r, "stageCode")),
			ActorID:   act.ID,
			EncoderID: req.EncoderID,
			Shift:     req.Shift,
			LineNo:    req.LineNo,
		}
		if req.ResourceFactor != nil {
			input.ResourceFactor = *req.ResourceFactor
		}

		instance, err := svc.Start(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, instance)
	}
}

type stageCompleteRequest struct {
	EncoderID      *uuid.UUID       `json:"encoderId,omitempty"`
	LineNo         *string          `json:"lineNo,omitempty" validate:"omitempty,max=32"`
	ResourceFactor *decimal.Decimal `json:"resourceFactor,omitempty"`
}

// StageComplete closes a started stage and freezes its output.
func StageComplete(svc *stages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req stageCompleteRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := stages.CompleteInput{
			OrderID:   orderID,
			StageCode: strings.TrimSpace(chi.URLParam(r, "stageCode")),
			ActorID:   act.ID,
			EncoderID: req.EncoderID,
			LineNo:    req.LineNo,
		}
		if req.ResourceFactor != nil {
			input.ResourceFactor = *req.ResourceFactor
		}

		instance, err := svc.Complete(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, instance)
	}
}
