package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/dukex/flowforge/pkg/otelhelper"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 4
	defaultInitialBackoff = 500 * time.Millisecond
	defaultRatePerSecond  = 4
	defaultPerPage        = 100
	maxResponseBytes      = 10 << 20
	modulePartType        = "application/javascript+module"
)

// Config holds connection settings. Zero values get defaults.
type Config struct {
	BaseURL           string
	AccountID         string
	Token             string
	Timeout           time.Duration
	MaxRetries        uint
	InitialBackoff    time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client talks to the platform API with bearer authentication, client-side
// throttling and retries for transient failures.
type Client struct {
	baseURL   string
	accountID string
	token     string
	timeout   time.Duration
	retries   uint
	initial   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *slog.Logger
}

var _ API = (*Client)(nil)

func New(cfg Config, logger *slog.Logger, tracer trace.Tracer) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("platform base url is required")
	}

	if cfg.AccountID == "" {
		return nil, errors.New("platform account id is required")
	}

	if cfg.Token == "" {
		return nil, errors.New("platform token is required")
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accountID: cfg.AccountID,
		token:     cfg.Token,
		timeout:   cfg.Timeout,
		retries:   cfg.MaxRetries,
		initial:   cfg.InitialBackoff,
		http:      cfg.HTTPClient,
		tracer:    tracer,
		logger:    logger.With("module", "platform_client"),
	}

	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	if c.retries == 0 {
		c.retries = defaultMaxRetries
	}

	if c.initial <= 0 {
		c.initial = defaultInitialBackoff
	}

	if c.http == nil {
		c.http = &http.Client{}
	}

	if c.tracer == nil {
		c.tracer = otelhelper.NoopTracer()
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRatePerSecond
	}

	c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)

	return c, nil
}

type envelope struct {
	Success    bool              `json:"success"`
	Errors     []ResponseError   `json:"errors"`
	Messages   []json.RawMessage `json:"messages"`
	Message    string            `json:"message"`
	Result     json.RawMessage   `json:"result"`
	ResultInfo *resultInfo       `json:"result_info"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
}

type request struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        []byte
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("encode request body: %w", err)
		}

		req.body = body
		req.contentType = "application/json"
	}

	return req, nil
}

func (c *Client) accountPath(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, arg := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(arg))
	}

	return "/accounts/" + url.PathEscape(c.accountID) + fmt.Sprintf(format, escaped...)
}

// do sends req with retries and decodes the envelope result into out.
func (c *Client) do(ctx context.Context, op string, req request, out any) (*resultInfo, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "platform."+op,
		attribute.String(otelhelper.PlatformOpKey, op))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial

	env, err := backoff.Retry(ctx, func() (*envelope, error) {
		return c.attempt(ctx, op, req)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retries+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.logger.WarnContext(ctx, "retrying platform call", "operation", op, "error", err, "delay", delay)
		}),
	)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.PlatformOpKey, op))

		return nil, err
	}

	if out != nil && len(env.Result) > 0 && string(env.Result) != "null" {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return nil, &APIError{Op: op, Status: http.StatusOK, Message: "decode result: " + err.Error(), Kind: ErrInternal}
		}
	}

	return env.ResultInfo, nil
}

func (c *Client) attempt(ctx context.Context, op string, req request) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.method, target, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: build request: %w", op, err))
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept", "application/json")

	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		return nil, &APIError{Op: op, Message: err.Error(), Kind: ErrInternal}
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.DebugContext(ctx, "failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Message: "read response: " + err.Error(), Kind: ErrInternal}
	}

	var env envelope

	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed *envelope
		if decodeErr == nil {
			parsed = &env
		}

		apiErr := newAPIError(op, resp.StatusCode, parsed)
		if retryable(resp.StatusCode) {
			return nil, apiErr
		}

		return nil, backoff.Permanent(apiErr)
	}

	if decodeErr != nil {
		return nil, backoff.Permanent(&APIError{
			Op: op, Status: resp.StatusCode, Message: "decode response: " + decodeErr.Error(), Kind: ErrInternal,
		})
	}

	if !env.Success {
		return nil, backoff.Permanent(newAPIError(op, resp.StatusCode, &env))
	}

	return &env, nil
}

// listAll walks every page of a paginated listing.
func listAll[T any](ctx context.Context, c *Client, op, path string, query url.Values) ([]T, error) {
	var all []T

	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}

		q.Set("page", fmt.Sprint(page))
		q.Set("per_page", fmt.Sprint(defaultPerPage))

		var items []T

		info, err := c.do(ctx, op, request{method: http.MethodGet, path: path, query: q}, &items)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)

		if info == nil || info.TotalPages <= page || len(items) == 0 {
			return all, nil
		}
	}
}

func (c *Client) ListKVNamespaces(ctx context.Context) ([]KVNamespace, error) {
	return listAll[KVNamespace](ctx, c, "list_kv_namespaces", c.accountPath("/storage/kv/namespaces"), nil)
}

func (c *Client) CreateKVNamespace(ctx context.Context, title string) (*KVNamespace, error) {
	req, err := jsonRequest(http.MethodPost, c.accountPath("/storage/kv/namespaces"), map[string]string{"title": title})
	if err != nil {
		return nil, err
	}

	var ns KVNamespace
	if _, err := c.do(ctx, "create_kv_namespace", req, &ns); err != nil {
		return nil, err
	}

	return &ns, nil
}

func (c *Client) ListD1Databases(ctx context.Context, name string) ([]D1Database, error) {
	var query url.Values
	if name != "" {
		query = url.Values{"name": []string{name}}
	}

	return listAll[D1Database](ctx, c, "list_d1_databases", c.accountPath("/d1/database"), query)
}

func (c *Client) CreateD1Database(ctx context.Context, name string) (*D1Database, error) {
	req, err := jsonRequest(http.MethodPost, c.accountPath("/d1/database"), map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var db D1Database
	if _, err := c.do(ctx, "create_d1_database", req, &db); err != nil {
		return nil, err
	}

	return &db, nil
}

func (c *Client) ListR2Buckets(ctx context.Context) ([]R2Bucket, error) {
	var result struct {
		Buckets []R2Bucket `json:"buckets"`
	}

	if _, err := c.do(ctx, "list_r2_buckets", request{method: http.MethodGet, path: c.accountPath("/r2/buckets")}, &result); err != nil {
		return nil, err
	}

	return result.Buckets, nil
}

func (c *Client) CreateR2Bucket(ctx context.Context, name string) (*R2Bucket, error) {
	req, err := jsonRequest(http.MethodPost, c.accountPath("/r2/buckets"), map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var bucket R2Bucket
	if _, err := c.do(ctx, "create_r2_bucket", req, &bucket); err != nil {
		return nil, err
	}

	if bucket.Name == "" {
		bucket.Name = name
	}

	return &bucket, nil
}

func (c *Client) GetFunction(ctx context.Context, name string) (*Function, error) {
	var fn Function
	if _, err := c.do(ctx, "get_function", request{method: http.MethodGet, path: c.accountPath("/workers/workers/%s", name)}, &fn); err != nil {
		return nil, err
	}

	return &fn, nil
}

func (c *Client) CreateFunction(ctx context.Context, name string) (*Function, error) {
	req, err := jsonRequest(http.MethodPost, c.accountPath("/workers/workers"), map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var fn Function
	if _, err := c.do(ctx, "create_function", req, &fn); err != nil {
		return nil, err
	}

	return &fn, nil
}

// CreateVersion uploads an immutable version as a multipart form with a
// metadata part and one module part.
func (c *Client) CreateVersion(ctx context.Context, functionID string, upload VersionUpload) (*Version, error) {
	body, contentType, err := versionForm(upload)
	if err != nil {
		return nil, err
	}

	req := request{
		method:      http.MethodPost,
		path:        c.accountPath("/workers/workers/%s/versions", functionID),
		contentType: contentType,
		body:        body,
	}

	var version Version
	if _, err := c.do(ctx, "create_version", req, &version); err != nil {
		return nil, err
	}

	return &version, nil
}

func versionForm(upload VersionUpload) ([]byte, string, error) {
	bindings := upload.Bindings
	if bindings == nil {
		bindings = []Binding{}
	}

	metadata, err := json.Marshal(versionMetadata{
		MainModule:        upload.MainModule,
		CompatibilityDate: upload.CompatibilityDate,
		Bindings:          bindings,
		Migrations:        upload.Migrations,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode version metadata: %w", err)
	}

	var buf bytes.Buffer

	form := multipart.NewWriter(&buf)

	if err := form.WriteField("metadata", string(metadata)); err != nil {
		return nil, "", err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, upload.MainModule, upload.MainModule))
	header.Set("Content-Type", modulePartType)

	part, err := form.CreatePart(header)
	if err != nil {
		return nil, "", err
	}

	if _, err := io.WriteString(part, upload.Source); err != nil {
		return nil, "", err
	}

	if err := form.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), form.FormDataContentType(), nil
}

// CreateDeployment routes all traffic of a function to one version.
func (c *Client) CreateDeployment(ctx context.Context, functionName, versionID string) (*Deployment, error) {
	payload := map[string]any{
		"strategy": "percentage",
		"versions": []map[string]any{{"version_id": versionID, "percentage": 100}},
	}

	req, err := jsonRequest(http.MethodPost, c.accountPath("/workers/scripts/%s/deployments", functionName), payload)
	if err != nil {
		return nil, err
	}

	var deployment Deployment
	if _, err := c.do(ctx, "create_deployment", req, &deployment); err != nil {
		return nil, err
	}

	return &deployment, nil
}

func (c *Client) UpdateWorkflow(ctx context.Context, reg WorkflowRegistration) (*Workflow, error) {
	req, err := jsonRequest(http.MethodPut, c.accountPath("/workflows/%s", reg.Name), reg)
	if err != nil {
		return nil, err
	}

	var wf Workflow
	if _, err := c.do(ctx, "update_workflow", req, &wf); err != nil {
		return nil, err
	}

	if wf.Name == "" {
		wf.Name = reg.Name
	}

	return &wf, nil
}

func (c *Client) CreateInstance(ctx context.Context, workflowName string, params any) (*Instance, error) {
	if params == nil {
		params = map[string]any{}
	}

	req, err := jsonRequest(http.MethodPost, c.accountPath("/workflows/%s/instances", workflowName), map[string]any{"params": params})
	if err != nil {
		return nil, err
	}

	var instance Instance
	if _, err := c.do(ctx, "create_instance", req, &instance); err != nil {
		return nil, err
	}

	return &instance, nil
}

func (c *Client) InstanceStatus(ctx context.Context, workflowName, instanceID string) (*InstanceStatus, error) {
	var status InstanceStatus

	req := request{method: http.MethodGet, path: c.accountPath("/workflows/%s/instances/%s", workflowName, instanceID)}
	if _, err := c.do(ctx, "instance_status", req, &status); err != nil {
		return nil, err
	}

	return &status, nil
}
