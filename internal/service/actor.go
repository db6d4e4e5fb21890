package service

import (
	"context"

	"github.com/insight-lab/research-go-api/internal/dto"
)

// Actor identifies the authenticated caller of an operation. It is resolved
// once at the request boundary and threaded explicitly through every service
// call; services never look up a global current user.
type Actor struct {
	ID   uint
	Role string
}

// Notifier is the narrow interface domain services use to dispatch
// notifications. Dispatch is fire-and-forget: a failed send is logged by the
// caller and never rolls back the operation that triggered it.
type Notifier interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}
