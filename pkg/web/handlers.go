// Package web provides the HTTP API for compiling workflows and deploying them.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/otelhelper"
	"github.com/dukex/flowforge/pkg/persistence"
	"github.com/dukex/flowforge/pkg/registry"
	"github.com/dukex/flowforge/pkg/stream"
)

// Config wires the handlers to their collaborators.
type Config struct {
	Compiler     *compiler.Compiler
	Registry     *registry.Registry
	Orchestrator *deployment.Orchestrator
	Persistence  persistence.Persistence
	Validator    *validator.Validate
	Tracer       trace.Tracer
	Logger       *slog.Logger
	// StreamKeepalive is the SSE comment interval; zero uses the stream default.
	StreamKeepalive time.Duration
}

type APIHandlers struct {
	compiler     *compiler.Compiler
	registry     *registry.Registry
	orchestrator *deployment.Orchestrator
	persistence  persistence.Persistence
	validator    *validator.Validate
	tracer       trace.Tracer
	logger       *slog.Logger
	keepalive    time.Duration
}

func NewAPIHandlers(cfg Config) *APIHandlers {
	h := &APIHandlers{
		compiler:     cfg.Compiler,
		registry:     cfg.Registry,
		orchestrator: cfg.Orchestrator,
		persistence:  cfg.Persistence,
		validator:    cfg.Validator,
		tracer:       cfg.Tracer,
		logger:       cfg.Logger,
		keepalive:    cfg.StreamKeepalive,
	}

	if h.validator == nil {
		h.validator = validator.New(validator.WithRequiredStructEnabled())
	}

	if h.tracer == nil {
		h.tracer = otelhelper.NoopTracer()
	}

	if h.logger == nil {
		h.logger = slog.Default()
	}

	if h.keepalive <= 0 {
		h.keepalive = stream.DefaultKeepalive
	}

	h.logger = h.logger.With("module", "web")

	return h
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/nodes", h.GetNodes)

	w := router.Group("/workflows")
	w.Post("/validate", h.ValidateWorkflow)
	w.Post("/compile", h.CompileWorkflow)
	w.Post("/templates/check", h.CheckTemplates)

	d := router.Group("/deployments")
	d.Post("/deploy", h.Deploy)
	d.Post("/register", h.RegisterDeployment)
	d.Get("/list", h.ListDeployments)
	d.Get("/:id/status", h.DeploymentStatus)
	d.Get("/:id/stream", h.StreamDeployment)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck := "ok"
	healthy := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		healthy = false
	}

	nodes := len(h.registry.AvailableNodes())

	registryCheck := "ok"
	if nodes == 0 {
		registryCheck = "no node types registered"
		healthy = false
	}

	response := HealthResponse{
		Status:  "healthy",
		Message: "flowforge API is healthy",
		Checkers: map[string]string{
			"persistence": storeCheck,
			"registry":    registryCheck,
		},
		Nodes:     nodes,
		Timestamp: time.Now().UTC(),
	}

	httpStatus := http.StatusOK

	if !healthy {
		response.Status = "unhealthy"
		response.Message = "flowforge API is unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(response)
}

func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"nodes": h.registry.AvailableNodes()})
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	req, err := h.bindWorkflow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	errs := h.compiler.Validate(req.Workflow)

	response := ValidationResponse{Valid: len(errs) == 0, Errors: make([]string, 0, len(errs))}
	for _, err := range errs {
		response.Errors = append(response.Errors, err.Error())
	}

	return c.JSON(response)
}

func (h *APIHandlers) CompileWorkflow(c fiber.Ctx) error {
	req, err := h.bindWorkflow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.compile(c, req.Workflow, req.Options)
	if err != nil {
		return handleCompileError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CheckTemplates(c fiber.Ctx) error {
	req, err := h.bindWorkflow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	errs := h.compiler.CheckTemplates(req.Workflow, req.Options)

	response := TemplateCheckResponse{Valid: len(errs) == 0, Issues: make([]TemplateIssue, 0, len(errs))}
	for _, err := range errs {
		response.Issues = append(response.Issues, newTemplateIssue(err))
	}

	return c.JSON(response)
}

func (h *APIHandlers) bindWorkflow(c fiber.Ctx) (*WorkflowRequest, error) {
	var req WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, err
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) compile(c fiber.Ctx, def *models.WorkflowDefinition, opts compiler.Options) (*models.CompilationResult, error) {
	_, span := otelhelper.StartSpan(c.Context(), h.tracer, "workflow.compile",
		attribute.String(otelhelper.WorkflowIDKey, def.ID),
		attribute.String(otelhelper.WorkflowNameKey, def.Name),
	)
	defer span.End()

	result, err := h.compiler.Compile(def, opts)
	if err != nil {
		otelhelper.SetError(span, err)
		h.logger.DebugContext(c.Context(), "Compilation rejected", "workflow_id", def.ID, "kind", models.ErrorKind(err), "error", err)

		return nil, err
	}

	return result, nil
}
