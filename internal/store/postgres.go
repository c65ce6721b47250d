package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// PostgresStore implements Store on a pgx connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ConnectPostgres opens a pool and waits for the database to accept connections
func ConnectPostgres(ctx context.Context, databaseURL string, attempts int, logger *zap.Logger) (*PostgresStore, error) {
	var pool *pgxpool.Pool
	var err error

	for i := 0; i < attempts; i++ {
		pool, err = pgxpool.New(ctx, databaseURL)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				return NewPostgresStore(pool), nil
			}
			pool.Close()
		}
		logger.Warn("Waiting for database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

// GetFlowContext resolves the refinement configuration for a workflow phase
func (s *PostgresStore) GetFlowContext(ctx context.Context, workflowID, phaseID string) (*models.FlowContext, error) {
	var fc models.FlowContext

	err := s.pool.QueryRow(ctx, `
		SELECT w.id, w.use_case_id, p.id, p.name, w.ai_model_id
		FROM workflows w
		JOIN workflow_phases p ON p.workflow_id = w.id
		WHERE w.id = $1 AND p.id = $2
	`, workflowID, phaseID).Scan(&fc.WorkflowID, &fc.UseCaseID, &fc.PhaseID, &fc.PhaseName, &fc.AIModelID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flow context: %w", err)
	}

	return &fc, nil
}

// GetRefinementAction returns the highest priority action for an iteration
func (s *PostgresStore) GetRefinementAction(ctx context.Context, phaseID string, iteration int) (*models.RefinementAction, error) {
	var action models.RefinementAction

	err := s.pool.QueryRow(ctx, `
		SELECT a.action_name, a.ai_model_id, m.name, a.iteration_order, a.priority
		FROM refinement_actions a
		JOIN ai_models m ON m.id = a.ai_model_id
		WHERE a.phase_id = $1 AND a.iteration_order = $2
		ORDER BY a.priority DESC, a.id ASC
		LIMIT 1
	`, phaseID, iteration).Scan(&action.ActionName, &action.ModelID, &action.ModelName, &action.IterationOrder, &action.Priority)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refinement action: %w", err)
	}

	return &action, nil
}

// GetRefinementPrompt returns the most recently created matching template
func (s *PostgresStore) GetRefinementPrompt(ctx context.Context, useCaseID, modelID, category string) (string, error) {
	var template string

	err := s.pool.QueryRow(ctx, `
		SELECT template
		FROM prompt_templates
		WHERE use_case_id = $1 AND ai_model_id = $2 AND category = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, useCaseID, modelID, category).Scan(&template)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get refinement prompt: %w", err)
	}

	return template, nil
}

// CreateExecution inserts a running execution record
func (s *PostgresStore) CreateExecution(ctx context.Context, workflowID, modelID string) (uuid.UUID, error) {
	executionID := uuid.New()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, ai_model_id, status, start_time)
		VALUES ($1, $2, $3, $4, NOW())
	`, executionID, workflowID, modelID, string(models.ExecutionStatusRunning))

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return executionID, nil
}

// CompleteExecution marks an execution completed and stamps its end time
func (s *PostgresStore) CompleteExecution(ctx context.Context, executionID uuid.UUID, finalOutput string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE workflow_executions
		SET status = $2, end_time = NOW(), final_output = $3
		WHERE id = $1
	`, executionID, string(models.ExecutionStatusCompleted), finalOutput)

	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendLoopbackResponse writes one audit record
func (s *PostgresStore) AppendLoopbackResponse(ctx context.Context, resp models.LoopbackResponse) error {
	// A zero CreatedAt falls back to the column default
	var createdAt *time.Time
	if !resp.CreatedAt.IsZero() {
		createdAt = &resp.CreatedAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO loopback_responses (execution_id, model_name, refined_response, iteration, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))
	`, resp.ExecutionID, resp.ModelName, resp.RefinedResponse, resp.Iteration, resp.ConfidenceScore, createdAt)

	if err != nil {
		return fmt.Errorf("failed to append loopback response: %w", err)
	}

	return nil
}

// GetExecution retrieves an execution by ID
func (s *PostgresStore) GetExecution(ctx context.Context, executionID uuid.UUID) (*models.WorkflowExecution, error) {
	var exec models.WorkflowExecution
	var status string

	err := s.pool.QueryRow(ctx, `
		SELECT id, workflow_id, ai_model_id, status, start_time, end_time, final_output
		FROM workflow_executions
		WHERE id = $1
	`, executionID).Scan(
		&exec.ID,
		&exec.WorkflowID,
		&exec.AIModelID,
		&status,
		&exec.StartTime,
		&exec.EndTime,
		&exec.FinalOutput,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	exec.Status = models.ExecutionStatus(status)

	return &exec, nil
}

// ListLoopbackResponses returns the audit trail of an execution in iteration order
func (s *PostgresStore) ListLoopbackResponses(ctx context.Context, executionID uuid.UUID) ([]models.LoopbackResponse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, model_name, refined_response, iteration, confidence_score, created_at
		FROM loopback_responses
		WHERE execution_id = $1
		ORDER BY iteration ASC, id ASC
	`, executionID)

	if err != nil {
		return nil, fmt.Errorf("failed to query loopback responses: %w", err)
	}
	defer rows.Close()

	var responses []models.LoopbackResponse
	for rows.Next() {
		var resp models.LoopbackResponse
		err := rows.Scan(
			&resp.ID,
			&resp.ExecutionID,
			&resp.ModelName,
			&resp.RefinedResponse,
			&resp.Iteration,
			&resp.ConfidenceScore,
			&resp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loopback response: %w", err)
		}
		responses = append(responses, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loopback responses: %w", err)
	}

	return responses, nil
}

// CreateUser inserts an API account and returns its ID
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, hashedPassword string) (string, error) {
	var userID string

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, hashed_password, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id::text
	`, uuid.New(), name, email, hashedPassword).Scan(&userID)

	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

// GetUserByEmail looks up an API account
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User

	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, email, hashed_password, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.HashedPassword, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Seed upserts models, workflows, phases and actions and appends prompt templates in one transaction
func (s *PostgresStore) Seed(ctx context.Context, seed *models.SeedFile) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range seed.Models {
		_, err := tx.Exec(ctx, `
			INSERT INTO ai_models (id, name, provider) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, provider = EXCLUDED.provider
		`, m.ID, m.Name, m.Provider)
		if err != nil {
			return fmt.Errorf("failed to seed model %s: %w", m.ID, err)
		}
	}

	for _, w := range seed.Workflows {
		_, err := tx.Exec(ctx, `
			INSERT INTO workflows (id, use_case_id, name, ai_model_id) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET use_case_id = EXCLUDED.use_case_id, name = EXCLUDED.name, ai_model_id = EXCLUDED.ai_model_id
		`, w.ID, w.UseCaseID, w.Name, w.AIModelID)
		if err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", w.ID, err)
		}

		for _, p := range w.Phases {
			_, err := tx.Exec(ctx, `
				INSERT INTO workflow_phases (id, workflow_id, name) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET workflow_id = EXCLUDED.workflow_id, name = EXCLUDED.name
			`, p.ID, w.ID, p.Name)
			if err != nil {
				return fmt.Errorf("failed to seed phase %s: %w", p.ID, err)
			}

			for _, a := range p.Actions {
				_, err := tx.Exec(ctx, `
					INSERT INTO refinement_actions (phase_id, action_name, ai_model_id, iteration_order, priority)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (phase_id, action_name) DO UPDATE
					SET ai_model_id = EXCLUDED.ai_model_id,
					    iteration_order = EXCLUDED.iteration_order,
					    priority = EXCLUDED.priority
				`, p.ID, a.Name, a.ModelID, a.Iteration, a.Priority)
				if err != nil {
					return fmt.Errorf("failed to seed action %s: %w", a.Name, err)
				}
			}
		}
	}

	for _, pr := range seed.Prompts {
		category := pr.Category
		if category == "" {
			category = models.PromptCategoryRefinement
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO prompt_templates (use_case_id, ai_model_id, category, template, created_at)
			VALUES ($1, $2, $3, $4, clock_timestamp())
		`, pr.UseCaseID, pr.ModelID, category, pr.Template)
		if err != nil {
			return fmt.Errorf("failed to seed prompt for %s/%s: %w", pr.UseCaseID, pr.ModelID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
