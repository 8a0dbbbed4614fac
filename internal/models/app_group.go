package models

import (
	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// AppGroup is a named set of applications owned by a user
type AppGroup struct {
	BaseModel

	UserID uuid.UUID   `json:"userId" db:"user_id"`
	Name   string      `json:"name" db:"name"`
	Apps   StringArray `json:"apps" db:"apps"`
}

// StateArguments converts groups into device-state arguments
func StateArguments(groups []*AppGroup) []devicestate.AppGroup {
	out := make([]devicestate.AppGroup, 0, len(groups))
	for _, group := range groups {
		out = append(out, devicestate.AppGroup{ID: group.ID.String(), Name: group.Name})
	}
	return out
}
