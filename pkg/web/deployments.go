package web

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/stream"
)

// Deploy accepts the request and returns before any platform call is made.
// Progress is observed through the status and stream endpoints.
func (h *APIHandlers) Deploy(c fiber.Ctx) error {
	var req DeployRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result := req.Compilation
	workflowID := req.WorkflowID

	if req.Workflow != nil {
		compiled, err := h.compile(c, req.Workflow, req.Options)
		if err != nil {
			return handleCompileError(c, err)
		}

		result = compiled

		if workflowID == "" {
			workflowID = req.Workflow.ID
		}
	}

	id := req.DeploymentID
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return internalError(c, err)
		}

		id = generated.String()
	}

	compatibilityDate := req.CompatibilityDate
	if compatibilityDate == "" {
		compatibilityDate = req.Options.CompatibilityDate
	}

	var params any
	if req.Params != nil {
		params = req.Params
	}

	state, err := h.orchestrator.Deploy(c.Context(), deployment.DeployRequest{
		DeploymentID:      id,
		WorkflowID:        workflowID,
		Compilation:       result,
		CompatibilityDate: compatibilityDate,
		InstanceParams:    params,
	})
	if err != nil {
		return handleDeploymentError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(DeployResponse{
		DeploymentID: state.DeploymentID,
		Status:       state.Status,
	})
}

func (h *APIHandlers) DeploymentStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deployment ID is required")
	}

	state, err := h.orchestrator.Status(c.Context(), id)
	if err != nil {
		return handleDeploymentError(c, err)
	}

	return c.JSON(state)
}

// StreamDeployment streams the current state and every later progress entry
// as server-sent events. The stream ends after the terminal state.
func (h *APIHandlers) StreamDeployment(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deployment ID is required")
	}

	keepalive := h.keepalive

	if raw := c.Query("keepalive"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid keepalive duration: "+raw)
		}

		keepalive = parsed
	}

	sub, err := h.orchestrator.Watch(c.Context(), id)
	if err != nil {
		return handleDeploymentError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger.With("deployment_id", id)

	c.RequestCtx().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		err := stream.WriteSSE(context.Background(), w, sub, keepalive)
		if err != nil {
			logger.Debug("Stream closed", "error", err)
		}
	}))

	return nil
}

func (h *APIHandlers) RegisterDeployment(c fiber.Ctx) error {
	var req RegisterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.orchestrator.Registry().Register(c.Context(), req.DeploymentID)
	if err != nil {
		return handleDeploymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"deployment_id": req.DeploymentID})
}

func (h *APIHandlers) ListDeployments(c fiber.Ctx) error {
	ids, err := h.orchestrator.Registry().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if ids == nil {
		ids = []string{}
	}

	return c.JSON(DeploymentListResponse{Deployments: ids})
}
