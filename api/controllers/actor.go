package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/api/middleware"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	pkgerrors "github.com/stagetrak/stagetrak-backend/pkg/errors"
)

// actor is the authenticated identity extracted from the request context.
type actor struct {
	ID   uuid.UUID
	Name string
	Role enums.UserRole
}

func actorFromRequest(r *http.Request) (actor, error) {
	ctx := r.Context()

	rawID := middleware.UserIDFromContext(ctx)
	if rawID == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}

	role, err := enums.ParseUserRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role context")
	}

	return actor{
		ID:   id,
		Name: middleware.DisplayNameFromContext(ctx),
		Role: role,
	}, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a uuid").
			WithDetails(map[string]any{"field": param})
	}
	return id, nil
}
