package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/mocks"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence/file"
	"github.com/dukex/flowforge/pkg/platform"
	"github.com/dukex/flowforge/pkg/registry"
	"github.com/dukex/flowforge/pkg/stream"
	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/dukex/flowforge/pkg/web"
)

type testServer struct {
	app  *fiber.App
	api  *mocks.MockPlatformAPI
	orch *deployment.Orchestrator
}

func setupTestApp(t *testing.T) *testServer {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	reg := registry.NewRegistry(slog.Default())
	require.NoError(t, reg.RegisterDefaultNodes())

	api := &mocks.MockPlatformAPI{}
	orch := deployment.New(store, api, stream.NewHub(slog.Default()), slog.Default())

	handlers := web.NewAPIHandlers(web.Config{
		Compiler:     compiler.New(reg, slog.Default()),
		Registry:     reg,
		Orchestrator: orch,
		Persistence:  store,
	})

	app := fiber.New()
	handlers.Register(app)

	return &testServer{app: app, api: api, orch: orch}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)

			raw = string(encoded)
		}

		reader = strings.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, payload
}

func cyclicWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID: "wf-cycle",
		Nodes: []*models.WorkflowNode{
			testutil.CreateTestNode("start", models.NodeTypeEntry),
			testutil.CreateTestNode("a", "log", testutil.WithConfigValue("message", "a")),
			testutil.CreateTestNode("b", "log", testutil.WithConfigValue("message", "b")),
		},
		Edges: []*models.WorkflowEdge{
			testutil.CreateTestEdge("start", "a"),
			testutil.CreateTestEdge("a", "b"),
			testutil.CreateTestEdge("b", "a"),
		},
	}
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	s := setupTestApp(t)

	status, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)

	var health web.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checkers["persistence"])
	assert.Positive(t, health.Nodes)
}

func TestAPIHandlers_GetNodes(t *testing.T) {
	s := setupTestApp(t)

	status, body := s.do(t, http.MethodGet, "/nodes", nil)
	assert.Equal(t, http.StatusOK, status)

	var catalog struct {
		Nodes []registry.NodeInfo `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(body, &catalog))

	types := make(map[string]registry.NodeInfo, len(catalog.Nodes))
	for _, node := range catalog.Nodes {
		types[node.Type] = node
	}

	require.Contains(t, types, "http-request")
	assert.NotEmpty(t, types["http-request"].Schema)
	assert.True(t, types["conditional"].Branching)
	assert.False(t, types["log"].Branching)
}

func TestAPIHandlers_CompileWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
		validate       func(t *testing.T, body []byte)
	}{
		{
			name:           "compiles a linear workflow",
			body:           web.WorkflowRequest{Workflow: testutil.CreateHTTPWorkflow("wf-http")},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				t.Helper()

				var result models.CompilationResult
				require.NoError(t, json.Unmarshal(body, &result))
				assert.Equal(t, models.CompilationStatusSuccess, result.Status)
				assert.Equal(t, "WfHttpWorkflow", result.ClassName)
				assert.Contains(t, result.SourceCode, "class WfHttpWorkflow extends WorkflowEntrypoint")
				require.NotNil(t, result.PlatformConfig)
			},
		},
		{
			name:           "cycle is reported as a failed compilation",
			body:           web.WorkflowRequest{Workflow: cyclicWorkflow()},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, body []byte) {
				t.Helper()

				var result models.CompilationResult
				require.NoError(t, json.Unmarshal(body, &result))
				assert.Equal(t, models.CompilationStatusError, result.Status)
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], "cycle detected")
			},
		},
		{
			name: "unknown node type",
			body: web.WorkflowRequest{Workflow: testutil.CreateLinearWorkflow("wf",
				testutil.CreateTestNode("start", models.NodeTypeEntry),
				testutil.CreateTestNode("x", "teleport"),
			)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid node configuration is unprocessable",
			body: web.WorkflowRequest{Workflow: testutil.CreateLinearWorkflow("wf",
				testutil.CreateTestNode("start", models.NodeTypeEntry),
				testutil.CreateTestNode("fetch", "http-request"),
			)},
			expectedStatus: http.StatusUnprocessableEntity,
			validate: func(t *testing.T, body []byte) {
				t.Helper()

				var result models.CompilationResult
				require.NoError(t, json.Unmarshal(body, &result))
				assert.Equal(t, models.CompilationStatusError, result.Status)
			},
		},
		{
			name:           "missing workflow",
			body:           map[string]any{"options": map[string]any{}},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, body []byte) {
				t.Helper()
				assert.Contains(t, string(body), "validation_error")
			},
		},
		{
			name:           "malformed json",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestApp(t)

			status, body := s.do(t, http.MethodPost, "/workflows/compile", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.validate != nil {
				tt.validate(t, body)
			}
		})
	}
}

func TestAPIHandlers_ValidateWorkflow(t *testing.T) {
	s := setupTestApp(t)

	status, body := s.do(t, http.MethodPost, "/workflows/validate",
		web.WorkflowRequest{Workflow: testutil.CreateHTTPWorkflow("wf-http")})
	require.Equal(t, http.StatusOK, status)

	var valid web.ValidationResponse
	require.NoError(t, json.Unmarshal(body, &valid))
	assert.True(t, valid.Valid)
	assert.Empty(t, valid.Errors)

	status, body = s.do(t, http.MethodPost, "/workflows/validate", web.WorkflowRequest{
		Workflow: testutil.CreateLinearWorkflow("wf",
			testutil.CreateTestNode("start", models.NodeTypeEntry),
			testutil.CreateTestNode("a", "log"),
			testutil.CreateTestNode("b", "teleport"),
		),
	})
	require.Equal(t, http.StatusOK, status)

	var invalid web.ValidationResponse
	require.NoError(t, json.Unmarshal(body, &invalid))
	assert.False(t, invalid.Valid)
	assert.Len(t, invalid.Errors, 2)
}

func TestAPIHandlers_CheckTemplates(t *testing.T) {
	s := setupTestApp(t)

	def := testutil.CreateLinearWorkflow("wf",
		testutil.CreateTestNode("start", models.NodeTypeEntry),
		testutil.CreateTestNode("a", "log", testutil.WithConfigValue("message", "{{ghost.value}}")),
		testutil.CreateTestNode("b", "log", testutil.WithConfigValue("message", "{{start.body}}")),
	)

	status, body := s.do(t, http.MethodPost, "/workflows/templates/check", web.WorkflowRequest{Workflow: def})
	require.Equal(t, http.StatusOK, status)

	var check web.TemplateCheckResponse
	require.NoError(t, json.Unmarshal(body, &check))
	assert.False(t, check.Valid)
	require.Len(t, check.Issues, 1)
	assert.Equal(t, "a", check.Issues[0].NodeID)
	assert.Equal(t, "template_error", check.Issues[0].Kind)
}

func TestAPIHandlers_DeployWorkflowDefinition(t *testing.T) {
	s := setupTestApp(t)

	s.api.On("GetFunction", mock.Anything, "wf-http").Return(&platform.Function{ID: "fn-1", Name: "wf-http"}, nil)
	s.api.On("CreateVersion", mock.Anything, "fn-1", mock.Anything).Return(&platform.Version{ID: "ver-1"}, nil)
	s.api.On("CreateDeployment", mock.Anything, "wf-http", "ver-1").Return(&platform.Deployment{ID: "remote-1"}, nil)
	s.api.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(&platform.Workflow{ID: "wf-1", Name: "wf-http"}, nil)
	s.api.On("CreateInstance", mock.Anything, "wf-http", map[string]any{"order": "42"}).Return(&platform.Instance{ID: "inst-1"}, nil)

	status, body := s.do(t, http.MethodPost, "/deployments/deploy", web.DeployRequest{
		DeploymentID: "dep-1",
		Workflow:     testutil.CreateHTTPWorkflow("wf-http"),
		Params:       map[string]any{"order": "42"},
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var accepted web.DeployResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.Equal(t, web.DeployResponse{DeploymentID: "dep-1", Status: models.DeploymentStatusPending}, accepted)

	s.orch.Wait("dep-1")

	status, body = s.do(t, http.MethodGet, "/deployments/dep-1/status", nil)
	require.Equal(t, http.StatusOK, status)

	var state models.DeploymentState
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, models.DeploymentStatusSuccess, state.Status)
	assert.Equal(t, "wf-http", state.WorkflowID)
	require.NotNil(t, state.Result)
	assert.Equal(t, "inst-1", state.Result.InstanceID)

	status, body = s.do(t, http.MethodGet, "/deployments/list", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deployments":["dep-1"]}`, string(body))

	s.api.AssertExpectations(t)
}

func TestAPIHandlers_DeployGeneratesID(t *testing.T) {
	s := setupTestApp(t)
	s.api.On("GetFunction", mock.Anything, mock.Anything).Return(nil, errors.New("platform unavailable"))

	status, body := s.do(t, http.MethodPost, "/deployments/deploy", web.DeployRequest{
		Compilation: &models.CompilationResult{
			SourceCode:   "export class EchoWorkflow extends WorkflowEntrypoint {}",
			ClassName:    "EchoWorkflow",
			WorkflowName: "echo",
			Status:       models.CompilationStatusSuccess,
		},
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var accepted web.DeployResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	require.NotEmpty(t, accepted.DeploymentID)

	s.orch.Wait(accepted.DeploymentID)

	state, err := s.orch.Status(t.Context(), accepted.DeploymentID)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusFailed, state.Status)
	assert.Contains(t, state.Error, "platform unavailable")
}

func TestAPIHandlers_DeployRejections(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{
			name:           "neither compilation nor workflow",
			body:           map[string]any{"deployment_id": "dep-1"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "failed compilation result",
			body: web.DeployRequest{
				DeploymentID: "dep-1",
				Compilation:  models.FailedCompilation(errors.New("boom")),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "workflow that does not compile",
			body:           web.DeployRequest{DeploymentID: "dep-1", Workflow: cyclicWorkflow()},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestApp(t)

			status, body := s.do(t, http.MethodPost, "/deployments/deploy", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))
			s.api.AssertNotCalled(t, "GetFunction", mock.Anything, mock.Anything)
		})
	}
}

func TestAPIHandlers_UnknownDeployment(t *testing.T) {
	s := setupTestApp(t)

	for _, path := range []string{"/deployments/missing/status", "/deployments/missing/stream"} {
		status, body := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, status, path)
		assert.Contains(t, string(body), "deployment_not_found")
	}
}

func TestAPIHandlers_StreamFinishedDeployment(t *testing.T) {
	s := setupTestApp(t)
	s.api.On("GetFunction", mock.Anything, mock.Anything).Return(nil, errors.New("platform unavailable"))

	status, _ := s.do(t, http.MethodPost, "/deployments/deploy", web.DeployRequest{
		DeploymentID: "dep-stream",
		Compilation: &models.CompilationResult{
			SourceCode:   "export class EchoWorkflow extends WorkflowEntrypoint {}",
			ClassName:    "EchoWorkflow",
			WorkflowName: "echo",
			Status:       models.CompilationStatusSuccess,
		},
	})
	require.Equal(t, http.StatusAccepted, status)
	s.orch.Wait("dep-stream")

	req := httptest.NewRequest(http.MethodGet, "/deployments/dep-stream/stream", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	frames := bytes.Split(bytes.TrimSpace(payload), []byte("\n\n"))
	require.Len(t, frames, 1)

	lines := strings.SplitN(string(frames[0]), "\n", 2)
	require.Len(t, lines, 2)
	assert.Equal(t, "event: state", lines[0])

	var event stream.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &event))
	require.NotNil(t, event.State)
	assert.Equal(t, models.DeploymentStatusFailed, event.State.Status)
}

func TestAPIHandlers_StreamRejectsBadKeepalive(t *testing.T) {
	s := setupTestApp(t)

	status, _ := s.do(t, http.MethodGet, "/deployments/dep-1/stream?keepalive=soon", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_RegisterDeployment(t *testing.T) {
	s := setupTestApp(t)

	status, _ := s.do(t, http.MethodPost, "/deployments/register", web.RegisterRequest{DeploymentID: "dep-a"})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = s.do(t, http.MethodPost, "/deployments/register", web.RegisterRequest{DeploymentID: "dep-b"})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = s.do(t, http.MethodPost, "/deployments/register", web.RegisterRequest{DeploymentID: "dep-a"})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = s.do(t, http.MethodPost, "/deployments/register", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := s.do(t, http.MethodGet, "/deployments/list", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deployments":["dep-a","dep-b"]}`, string(body))
}
