package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/api/validators"
	"github.com/stagetrak/stagetrak-backend/internal/ledger"
	"github.com/stagetrak/stagetrak-backend/internal/reconcile"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

type defectQuantities struct {
	Qty            int `json:"qty" validate:"min=0"`
	QtyRework      int `json:"qtyRework" validate:"min=0"`
	QtyNoGood      int `json:"qtyNoGood" validate:"min=0"`
	QtyReplacement int `json:"qtyReplacement" validate:"min=0"`
}

func (d defectQuantities) toQuantities() reconcile.Quantities {
	return reconcile.Quantities{
		Qty:            d.Qty,
		QtyRework:      d.QtyRework,
		QtyNoGood:      d.QtyNoGood,
		QtyReplacement: d.QtyReplacement,
	}
}

type defectAddRequest struct {
	DefectTypeID uuid.UUID `json:"defectTypeId" validate:"required"`
	defectQuantities
}

// DefectAdd records a defect row against an open stage.
func DefectAdd(svc *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stageID, err := pathUUID(r, "stageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req defectAddRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Add(r.Context(), ledger.AddInput{
			StageInstanceID: stageID,
			DefectTypeID:    req.DefectTypeID,
			Quantities:      req.toQuantities(),
			ActorID:         act.ID,
			ActorRole:       act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// DefectList returns a stage's ledger rows.
func DefectList(svc *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stageID, err := pathUUID(r, "stageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByStage(r.Context(), stageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

type defectUpdateRequest struct {
	defectQuantities
}

// DefectUpdate rewrites a defect row's quantities.
func DefectUpdate(svc *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rowID, err := pathUUID(r, "rowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req defectUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Update(r.Context(), ledger.UpdateInput{
			RowID:      rowID,
			Quantities: req.toQuantities(),
			ActorID:    act.ID,
			ActorRole:  act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// DefectDelete removes a defect row.
func DefectDelete(svc *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rowID, err := pathUUID(r, "rowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), ledger.DeleteInput{
			RowID:     rowID,
			ActorID:   act.ID,
			ActorRole: act.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
