// Package store persists refinement configuration and the execution audit trail.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// ConfigStore is the part of the store the refinement loop depends on
type ConfigStore interface {
	GetFlowContext(ctx context.Context, workflowID, phaseID string) (*models.FlowContext, error)
	GetRefinementAction(ctx context.Context, phaseID string, iteration int) (*models.RefinementAction, error)
	GetRefinementPrompt(ctx context.Context, useCaseID, modelID, category string) (string, error)
	CreateExecution(ctx context.Context, workflowID, modelID string) (uuid.UUID, error)
	CompleteExecution(ctx context.Context, executionID uuid.UUID, finalOutput string) error
	AppendLoopbackResponse(ctx context.Context, resp models.LoopbackResponse) error
}

// ExecutionReader exposes execution records to the API
type ExecutionReader interface {
	GetExecution(ctx context.Context, executionID uuid.UUID) (*models.WorkflowExecution, error)
	ListLoopbackResponses(ctx context.Context, executionID uuid.UUID) ([]models.LoopbackResponse, error)
}

// UserStore manages API accounts
type UserStore interface {
	CreateUser(ctx context.Context, name, email, hashedPassword string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Store is implemented by every backend
type Store interface {
	ConfigStore
	ExecutionReader
	UserStore
	Seed(ctx context.Context, seed *models.SeedFile) error
	Ping(ctx context.Context) error
	Close() error
}
