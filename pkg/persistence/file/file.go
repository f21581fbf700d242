// Package file provides file-based persistence for deployment state.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

const (
	deploymentsDir = "deployments"
	registryFile   = "registry.json"
)

// Persistence stores one JSON document per deployment under root/deployments
// and the registry as a JSON array in root/registry.json.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates the directory layout under root (file:// prefix allowed).
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(filepath.Join(cleanRoot, deploymentsDir), 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence directory: %w", err)
	}

	return &Persistence{root: cleanRoot}, nil
}

func (fp *Persistence) statePath(id string) string {
	return filepath.Join(fp.root, deploymentsDir, id+".json")
}

func (fp *Persistence) DeploymentState(_ context.Context, id string) (*models.DeploymentState, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return fp.readState(id)
}

func (fp *Persistence) readState(id string) (*models.DeploymentState, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, persistence.NewDeploymentError("Get", id, persistence.ErrDeploymentNotFound)
	}

	data, err := os.ReadFile(fp.statePath(id))
	if errors.Is(err, fs.ErrNotExist) {
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

func (fp *Persistence) SaveDeploymentState(_ context.Context, state *models.DeploymentState) error {
	err := persistence.ValidateState(state)
	if err != nil {
		return err
	}

	if strings.ContainsAny(state.DeploymentID, `/\`) {
		return persistence.NewDeploymentError("Save", state.DeploymentID,
			fmt.Errorf("%w: id contains a path separator", persistence.ErrInvalidDeploymentState))
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistence.NewDeploymentError("Save", state.DeploymentID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	err = writeAtomic(fp.statePath(state.DeploymentID), data)
	if err != nil {
		return persistence.NewDeploymentError("Save", state.DeploymentID, err)
	}

	return nil
}

func (fp *Persistence) DeploymentStates(_ context.Context, statuses ...models.DeploymentStatus) ([]*models.DeploymentState, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(filepath.Join(fp.root, deploymentsDir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list deployment files: %w", err)
	}

	sort.Strings(files)

	states := make([]*models.DeploymentState, 0, len(files))

	for _, file := range files {
		state, err := fp.readState(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if len(statuses) > 0 && !slices.Contains(statuses, state.Status) {
			continue
		}

		states = append(states, state)
	}

	return states, nil
}

func (fp *Persistence) RegisterDeployment(_ context.Context, id string) error {
	if id == "" {
		return persistence.NewDeploymentError("Register", "", persistence.ErrInvalidDeploymentState)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	ids, err := fp.readRegistry()
	if err != nil {
		return err
	}

	if slices.Contains(ids, id) {
		return nil
	}

	data, err := json.Marshal(append(ids, id))
	if err != nil {
		return err
	}

	err = writeAtomic(filepath.Join(fp.root, registryFile), data)
	if err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	return nil
}

func (fp *Persistence) RegisteredDeployments(_ context.Context) ([]string, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return fp.readRegistry()
}

func (fp *Persistence) readRegistry() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(fp.root, registryFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	ids := []string{}

	err = json.Unmarshal(data, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}

	return ids, nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	_, err := os.Stat(fp.root)

	return err
}

// Close is a no-op for file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// writeAtomic writes through a temp file and a rename so readers never see a
// partially written document.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}
