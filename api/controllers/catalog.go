package controllers

import (
	"net/http"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	pkgerrors "github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

type stageCatalogEntry struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	Sequence    int    `json:"sequence"`
}

// CatalogStages returns the fixed stage sequence so clients can render the
// board columns without hardcoding codes.
func CatalogStages(stageCatalog *catalog.Stages) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stages := stageCatalog.All()
		entries := make([]stageCatalogEntry, 0, len(stages))
		for _, stage := range stages {
			entries = append(entries, stageCatalogEntry{
				Code:        stage.Code,
				DisplayName: stage.DisplayName,
				Sequence:    stage.Sequence,
			})
		}
		responses.WriteSuccess(w, map[string]any{"stages": entries})
	}
}

// CatalogDefectTypes lists the active defect types available for recording.
func CatalogDefectTypes(defectTypes catalog.DefectTypeRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := defectTypes.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing defect types"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"defectTypes": types})
	}
}
