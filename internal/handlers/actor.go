package handlers

import (
	"ticket-portal/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// actorFromRecord maps an authenticated record onto the workflow's roles.
// Superusers always act as admins.
func actorFromRecord(rec *core.Record) *models.Actor {
	if rec == nil {
		return nil
	}
	if rec.IsSuperuser() {
		return &models.Actor{ID: rec.Id, Role: models.RoleAdmin, IsActive: true}
	}
	return &models.Actor{
		ID:       rec.Id,
		Role:     models.Role(rec.GetString("role")),
		IsActive: rec.GetBool("is_active"),
	}
}

// requireActor returns the caller or a 401 when the request is anonymous.
func requireActor(e *core.RequestEvent) (*models.Actor, error) {
	actor := actorFromRecord(e.Auth)
	if actor == nil {
		return nil, apis.NewUnauthorizedError("The request requires valid authorization token.", nil)
	}
	return actor, nil
}
