// Package redis provides Redis persistence for deployment state.
//
// Key layout, under a configurable prefix:
//
//	<prefix>deployment:<id>      JSON encoded state
//	<prefix>idx:all              SET of every saved id
//	<prefix>idx:status:<status>  SET of ids currently in that status
//	<prefix>registry             ZSET of registered ids scored by registration sequence
//	<prefix>registry:seq         registration counter
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

const DefaultPrefix = "flowforge:"

var allStatuses = []models.DeploymentStatus{
	models.DeploymentStatusPending,
	models.DeploymentStatusInProgress,
	models.DeploymentStatusSuccess,
	models.DeploymentStatusFailed,
}

// Persistence implements the persistence layer on Redis.
type Persistence struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewPersistence connects to the redis:// URL and verifies the connection.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL, prefix string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewWithClient(client, prefix, logger), nil
}

// NewWithClient wraps an existing client. An empty prefix means DefaultPrefix.
func NewWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Persistence {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Persistence{client: client, prefix: prefix, logger: logger}
}

func (p *Persistence) keyDeployment(id string) string {
	return p.prefix + "deployment:" + id
}

func (p *Persistence) keyAll() string {
	return p.prefix + "idx:all"
}

func (p *Persistence) keyStatus(status models.DeploymentStatus) string {
	return p.prefix + "idx:status:" + string(status)
}

func (p *Persistence) keyRegistry() string {
	return p.prefix + "registry"
}

func (p *Persistence) keyRegistrySeq() string {
	return p.prefix + "registry:seq"
}

func (p *Persistence) DeploymentState(ctx context.Context, id string) (*models.DeploymentState, error) {
	data, err := p.client.Get(ctx, p.keyDeployment(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewDeploymentError("Get", id, persistence.ErrDeploymentNotFound)
	}

	if err != nil {
		return nil, persistence.NewDeploymentError("Get", id, err)
	}

	var state models.DeploymentState

	err = json.Unmarshal(data, &state)
	if err != nil {
		return nil, persistence.NewDeploymentError("Get", id, fmt.Errorf("failed to decode state: %w", err))
	}

	return &state, nil
}

// SaveDeploymentState writes the document and moves the id between status
// indexes in one transaction.
func (p *Persistence) SaveDeploymentState(ctx context.Context, state *models.DeploymentState) error {
	err := persistence.ValidateState(state)
	if err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return persistence.NewDeploymentError("Save", state.DeploymentID, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.keyDeployment(state.DeploymentID), data, 0)
	pipe.SAdd(ctx, p.keyAll(), state.DeploymentID)

	for _, status := range allStatuses {
		if status != state.Status {
			pipe.SRem(ctx, p.keyStatus(status), state.DeploymentID)
		}
	}

	pipe.SAdd(ctx, p.keyStatus(state.Status), state.DeploymentID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.NewDeploymentError("Save", state.DeploymentID, err)
	}

	return nil
}

func (p *Persistence) DeploymentStates(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.DeploymentState, error) {
	var (
		ids []string
		err error
	)

	if len(statuses) == 0 {
		ids, err = p.client.SMembers(ctx, p.keyAll()).Result()
	} else {
		keys := make([]string, 0, len(statuses))
		for _, status := range statuses {
			keys = append(keys, p.keyStatus(status))
		}

		ids, err = p.client.SUnion(ctx, keys...).Result()
	}

	if err != nil {
		return nil, persistence.NewDeploymentError("List", "", err)
	}

	sort.Strings(ids)

	states := make([]*models.DeploymentState, 0, len(ids))

	for _, id := range ids {
		state, err := p.DeploymentState(ctx, id)
		if persistence.IsDeploymentNotFound(err) {
			p.logger.WarnContext(ctx, "status index points to a missing deployment", "deployment_id", id)

			continue
		}

		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	return states, nil
}

func (p *Persistence) RegisterDeployment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.NewDeploymentError("Register", "", persistence.ErrInvalidDeploymentState)
	}

	seq, err := p.client.Incr(ctx, p.keyRegistrySeq()).Result()
	if err != nil {
		return persistence.NewDeploymentError("Register", id, err)
	}

	err = p.client.ZAddNX(ctx, p.keyRegistry(), redis.Z{Score: float64(seq), Member: id}).Err()
	if err != nil {
		return persistence.NewDeploymentError("Register", id, err)
	}

	return nil
}

func (p *Persistence) RegisteredDeployments(ctx context.Context) ([]string, error) {
	ids, err := p.client.ZRange(ctx, p.keyRegistry(), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewDeploymentError("ListRegistered", "", err)
	}

	return ids, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}
