package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// SQLiteStore implements Store on an embedded SQLite database.
// Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// SQLiteOption customizes a SQLiteStore
type SQLiteOption func(*SQLiteStore)

// WithClock overrides the clock used for timestamps
func WithClock(clock func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// OpenSQLite opens (or creates) a SQLite database and initializes the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ai_models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		use_case_id TEXT NOT NULL,
		name TEXT NOT NULL,
		ai_model_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workflow_phases (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS refinement_actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phase_id TEXT NOT NULL,
		action_name TEXT NOT NULL,
		ai_model_id TEXT NOT NULL,
		iteration_order INTEGER NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		UNIQUE (phase_id, action_name)
	);

	CREATE TABLE IF NOT EXISTS prompt_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		use_case_id TEXT NOT NULL,
		ai_model_id TEXT NOT NULL,
		category TEXT NOT NULL,
		template TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workflow_executions (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		ai_model_id TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		final_output TEXT
	);

	CREATE TABLE IF NOT EXISTS loopback_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		refined_response TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		confidence_score REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) GetFlowContext(ctx context.Context, workflowID, phaseID string) (*models.FlowContext, error) {
	var fc models.FlowContext

	err := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.use_case_id, p.id, p.name, w.ai_model_id
		FROM workflows w
		JOIN workflow_phases p ON p.workflow_id = w.id
		WHERE w.id = ? AND p.id = ?
	`, workflowID, phaseID).Scan(&fc.WorkflowID, &fc.UseCaseID, &fc.PhaseID, &fc.PhaseName, &fc.AIModelID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flow context: %w", err)
	}

	return &fc, nil
}

func (s *SQLiteStore) GetRefinementAction(ctx context.Context, phaseID string, iteration int) (*models.RefinementAction, error) {
	var action models.RefinementAction

	err := s.db.QueryRowContext(ctx, `
		SELECT a.action_name, a.ai_model_id, m.name, a.iteration_order, a.priority
		FROM refinement_actions a
		JOIN ai_models m ON m.id = a.ai_model_id
		WHERE a.phase_id = ? AND a.iteration_order = ?
		ORDER BY a.priority DESC, a.id ASC
		LIMIT 1
	`, phaseID, iteration).Scan(&action.ActionName, &action.ModelID, &action.ModelName, &action.IterationOrder, &action.Priority)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refinement action: %w", err)
	}

	return &action, nil
}

func (s *SQLiteStore) GetRefinementPrompt(ctx context.Context, useCaseID, modelID, category string) (string, error) {
	var template string

	err := s.db.QueryRowContext(ctx, `
		SELECT template
		FROM prompt_templates
		WHERE use_case_id = ? AND ai_model_id = ? AND category = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, useCaseID, modelID, category).Scan(&template)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get refinement prompt: %w", err)
	}

	return template, nil
}

func (s *SQLiteStore) CreateExecution(ctx context.Context, workflowID, modelID string) (uuid.UUID, error) {
	executionID := uuid.New()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, ai_model_id, status, start_time)
		VALUES (?, ?, ?, ?, ?)
	`, executionID.String(), workflowID, modelID, string(models.ExecutionStatusRunning), s.now().UnixNano())

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return executionID, nil
}

func (s *SQLiteStore) CompleteExecution(ctx context.Context, executionID uuid.UUID, finalOutput string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = ?, end_time = ?, final_output = ?
		WHERE id = ?
	`, string(models.ExecutionStatusCompleted), s.now().UnixNano(), finalOutput, executionID.String())

	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) AppendLoopbackResponse(ctx context.Context, resp models.LoopbackResponse) error {
	createdAt := resp.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loopback_responses (execution_id, model_name, refined_response, iteration, confidence_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, resp.ExecutionID.String(), resp.ModelName, resp.RefinedResponse, resp.Iteration, resp.ConfidenceScore, createdAt.UnixNano())

	if err != nil {
		return fmt.Errorf("failed to append loopback response: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetExecution(ctx context.Context, executionID uuid.UUID) (*models.WorkflowExecution, error) {
	var exec models.WorkflowExecution
	var id, status string
	var startTime int64
	var endTime sql.NullInt64
	var finalOutput sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, ai_model_id, status, start_time, end_time, final_output
		FROM workflow_executions
		WHERE id = ?
	`, executionID.String()).Scan(&id, &exec.WorkflowID, &exec.AIModelID, &status, &startTime, &endTime, &finalOutput)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	exec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse execution id: %w", err)
	}
	exec.Status = models.ExecutionStatus(status)
	exec.StartTime = time.Unix(0, startTime).UTC()
	if endTime.Valid {
		t := time.Unix(0, endTime.Int64).UTC()
		exec.EndTime = &t
	}
	if finalOutput.Valid {
		exec.FinalOutput = &finalOutput.String
	}

	return &exec, nil
}

func (s *SQLiteStore) ListLoopbackResponses(ctx context.Context, executionID uuid.UUID) ([]models.LoopbackResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_name, refined_response, iteration, confidence_score, created_at
		FROM loopback_responses
		WHERE execution_id = ?
		ORDER BY iteration ASC, id ASC
	`, executionID.String())

	if err != nil {
		return nil, fmt.Errorf("failed to query loopback responses: %w", err)
	}
	defer rows.Close()

	var responses []models.LoopbackResponse
	for rows.Next() {
		var resp models.LoopbackResponse
		var createdAt int64
		err := rows.Scan(&resp.ID, &resp.ModelName, &resp.RefinedResponse, &resp.Iteration, &resp.ConfidenceScore, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loopback response: %w", err)
		}
		resp.ExecutionID = executionID
		resp.CreatedAt = time.Unix(0, createdAt).UTC()
		responses = append(responses, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loopback responses: %w", err)
	}

	return responses, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, hashedPassword string) (string, error) {
	userID := uuid.New().String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, hashed_password, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, name, email, hashedPassword, s.now().UnixNano())

	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, hashed_password, created_at
		FROM users
		WHERE email = ?
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.HashedPassword, &createdAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()

	return &user, nil
}

func (s *SQLiteStore) Seed(ctx context.Context, seed *models.SeedFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range seed.Models {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ai_models (id, name, provider) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, provider = excluded.provider
		`, m.ID, m.Name, m.Provider)
		if err != nil {
			return fmt.Errorf("failed to seed model %s: %w", m.ID, err)
		}
	}

	for _, w := range seed.Workflows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflows (id, use_case_id, name, ai_model_id) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE
			SET use_case_id = excluded.use_case_id, name = excluded.name, ai_model_id = excluded.ai_model_id
		`, w.ID, w.UseCaseID, w.Name, w.AIModelID)
		if err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", w.ID, err)
		}

		for _, p := range w.Phases {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_phases (id, workflow_id, name) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET workflow_id = excluded.workflow_id, name = excluded.name
			`, p.ID, w.ID, p.Name)
			if err != nil {
				return fmt.Errorf("failed to seed phase %s: %w", p.ID, err)
			}

			for _, a := range p.Actions {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO refinement_actions (phase_id, action_name, ai_model_id, iteration_order, priority)
					VALUES (?, ?, ?, ?, ?)
					ON CONFLICT (phase_id, action_name) DO UPDATE
					SET ai_model_id = excluded.ai_model_id,
					    iteration_order = excluded.iteration_order,
					    priority = excluded.priority
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
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_templates (use_case_id, ai_model_id, category, template, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, pr.UseCaseID, pr.ModelID, category, pr.Template, s.now().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to seed prompt for %s/%s: %w", pr.UseCaseID, pr.ModelID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
