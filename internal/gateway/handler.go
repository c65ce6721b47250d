package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/auth"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/orchestration"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/refinement"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/store"
)

// MaxRequestIterations caps max_iterations accepted over HTTP
const MaxRequestIterations = 10

// Refiner runs refinement requests
type Refiner interface {
	Refine(ctx context.Context, workflowID, phaseID, response string, maxIterations int) refinement.Outcome
}

// Backend is the part of the store the API reads directly
type Backend interface {
	store.ExecutionReader
	store.UserStore
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	refiner    Refiner
	backend    Backend
	jwtManager *auth.JWTManager
	tokenTTL   time.Duration
	logger     *zap.Logger

	modelHealth orchestration.HealthChecker
}

// NewHandler creates a new gateway handler
func NewHandler(refiner Refiner, backend Backend, jwtManager *auth.JWTManager, tokenTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		refiner:    refiner,
		backend:    backend,
		jwtManager: jwtManager,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// WithModelHealth makes readiness also require a healthy model backend
func (h *Handler) WithModelHealth(hc orchestration.HealthChecker) *Handler {
	h.modelHealth = hc
	return h
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready reports whether the store is reachable
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.backend.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database connection failed",
		})
		return
	}

	if h.modelHealth != nil && !h.modelHealth.IsHealthy(ctx) {
		h.logger.Warn("Readiness check failed: model runtime unhealthy")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "model runtime unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request", Code: models.ErrCodeInvalidRequest})
		return
	}

	user, err := h.backend.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("User not found", zap.String("email", req.Email))
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to authenticate", Code: models.ErrCodeInternalError})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		h.logger.Warn("Invalid password", zap.String("email", req.Email))
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(c.Request.Context(), user.ID, user.Email, h.tokenTTL)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
	})
}

// Refine godoc
// @Summary Refine a response
// @Description Run the configured refinement loop for a workflow phase over the given response.
// @Description The outcome field tells refined, no_improvement, invalid_input, no_flow_configured, in_progress and internal_error apart.
// @Tags refinements
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param phaseId path string true "Phase ID"
// @Param request body models.RefineRequest true "Response to refine"
// @Success 200 {object} models.RefineResponse
// @Failure 400 {object} models.RefineResponse
// @Failure 404 {object} models.RefineResponse
// @Failure 409 {object} models.RefineResponse
// @Failure 503 {object} models.RefineResponse
// @Security BearerAuth
// @Router /workflows/{id}/phases/{phaseId}/refinements [post]
func (h *Handler) Refine(c *gin.Context) {
	workflowID := c.Param("id")
	phaseID := c.Param("phaseId")

	var req models.RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request", Code: models.ErrCodeInvalidRequest})
		return
	}

	maxIterations := -1
	if req.MaxIterations != nil {
		if *req.MaxIterations < 0 || *req.MaxIterations > MaxRequestIterations {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "max_iterations out of range",
				Code:    models.ErrCodeInvalidRequest,
				Details: map[string]string{"max_iterations": "must be between 0 and 10"},
			})
			return
		}
		maxIterations = *req.MaxIterations
	}

	out := h.refiner.Refine(c.Request.Context(), workflowID, phaseID, req.Response, maxIterations)

	userID, _ := c.Get(auth.UserIDKey)
	h.logger.Info("Refinement request handled",
		zap.String("workflow_id", workflowID),
		zap.String("phase_id", phaseID),
		zap.Any("user_id", userID),
		zap.String("outcome", string(out.Kind)))

	c.JSON(statusForOutcome(out.Kind), toRefineResponse(out))
}

// GetExecution godoc
// @Summary Get execution
// @Description Get a refinement execution record with its loopback responses
// @Tags executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} models.ExecutionDetail
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /executions/{id} [get]
func (h *Handler) GetExecution(c *gin.Context) {
	executionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid execution ID", Code: models.ErrCodeInvalidRequest})
		return
	}

	ctx := c.Request.Context()
	execution, err := h.backend.GetExecution(ctx, executionID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Execution not found", Code: models.ErrCodeNotFound})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get execution", zap.String("execution_id", executionID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get execution", Code: models.ErrCodeInternalError})
		return
	}

	responses, err := h.backend.ListLoopbackResponses(ctx, executionID)
	if err != nil {
		h.logger.Error("Failed to list loopback responses", zap.String("execution_id", executionID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get execution", Code: models.ErrCodeInternalError})
		return
	}
	if responses == nil {
		responses = []models.LoopbackResponse{}
	}

	c.JSON(http.StatusOK, models.ExecutionDetail{
		Execution: *execution,
		Responses: responses,
	})
}

func statusForOutcome(kind refinement.OutcomeKind) int {
	switch kind {
	case refinement.OutcomeRefined, refinement.OutcomeNoImprovement:
		return http.StatusOK
	case refinement.OutcomeInvalidInput:
		return http.StatusBadRequest
	case refinement.OutcomeNoFlowConfigured:
		return http.StatusNotFound
	case refinement.OutcomeInProgress:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func toRefineResponse(out refinement.Outcome) models.RefineResponse {
	resp := models.RefineResponse{
		Outcome:         string(out.Kind),
		RefinedResponse: out.Text,
		Iterations:      out.Iterations,
		StopReason:      string(out.StopReason),
		Retryable:       out.Retryable(),
	}
	if out.ExecutionID != uuid.Nil {
		resp.ExecutionID = out.ExecutionID.String()
	}

	switch out.Kind {
	case refinement.OutcomeInvalidInput:
		resp.Error = "response must contain at least 10 characters"
	case refinement.OutcomeNoFlowConfigured:
		resp.Error = "no refinement flow configured for this workflow phase"
	case refinement.OutcomeInProgress:
		resp.Error = "a refinement is already running for this workflow phase"
	case refinement.OutcomeInternalError:
		resp.Error = "refinement failed, retry later"
	}
	return resp
}
