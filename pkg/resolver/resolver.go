// Package resolver turns compiled binding configurations into concrete
// platform resources, creating the ones that do not exist yet.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/otelhelper"
	"github.com/dukex/flowforge/pkg/platform"
)

// maxConcurrency bounds parallel remote lookups within one deployment.
const maxConcurrency = 4

// Resolver maps bindings to remote resources. Resolution is idempotent by
// name: rerunning after a partial failure reuses what was already created.
type Resolver struct {
	api    platform.API
	tracer trace.Tracer
	logger *slog.Logger
}

func New(api platform.API, tracer trace.Tracer, logger *slog.Logger) *Resolver {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Resolver{
		api:    api,
		tracer: tracer,
		logger: logger.With("module", "binding_resolver"),
	}
}

// listings memoizes the account-wide listings shared by every binding of
// one resolution.
type listings struct {
	kv func() ([]platform.KVNamespace, error)
	r2 func() ([]platform.R2Bucket, error)
}

// Resolve returns one platform binding per configuration, in input order, and
// the migration introducing durable object classes. Durable object classes
// must be exported by sourceCode; that is checked before any remote call.
func (r *Resolver) Resolve(ctx context.Context, configs []*models.BindingConfiguration, sourceCode string) ([]platform.Binding, []platform.Migration, error) {
	var newClasses []string

	for _, cfg := range configs {
		if cfg.Type != models.BindingTypeDurableObject {
			continue
		}

		if !ExportsClass(sourceCode, cfg.ClassName) {
			return nil, nil, models.NewBindingError(cfg.Name,
				fmt.Sprintf("durable object class '%s' is not exported by the module", cfg.ClassName), nil)
		}

		newClasses = append(newClasses, cfg.ClassName)
	}

	lists := &listings{
		kv: sync.OnceValues(func() ([]platform.KVNamespace, error) { return r.api.ListKVNamespaces(ctx) }),
		r2: sync.OnceValues(func() ([]platform.R2Bucket, error) { return r.api.ListR2Buckets(ctx) }),
	}

	resolved := make([]platform.Binding, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, cfg := range configs {
		g.Go(func() error {
			binding, err := r.resolveOne(gctx, lists, cfg)
			if err != nil {
				return err
			}

			resolved[i] = binding

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var migrations []platform.Migration
	if len(newClasses) > 0 {
		migrations = []platform.Migration{{Tag: compiler.MigrationTag, NewSqliteClasses: newClasses}}
	}

	r.logger.InfoContext(ctx, "bindings resolved", "count", len(resolved), "new_classes", len(newClasses))

	return resolved, migrations, nil
}

func (r *Resolver) resolveOne(ctx context.Context, lists *listings, cfg *models.BindingConfiguration) (platform.Binding, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "resolver.binding",
		attribute.String(otelhelper.BindingNameKey, cfg.Name),
		attribute.String(otelhelper.BindingTypeKey, string(cfg.Type)))
	defer span.End()

	binding, err := r.describe(ctx, lists, cfg)
	if err != nil {
		otelhelper.SetError(span, err)

		return platform.Binding{}, models.NewBindingError(cfg.Name, fmt.Sprintf("resolve %s binding", cfg.Type), err)
	}

	r.logger.DebugContext(ctx, "binding resolved", "name", cfg.Name, "type", cfg.Type)

	return binding, nil
}

func (r *Resolver) describe(ctx context.Context, lists *listings, cfg *models.BindingConfiguration) (platform.Binding, error) {
	resource := cfg.ResourceName
	if resource == "" {
		resource = cfg.Name
	}

	switch cfg.Type {
	case models.BindingTypeKV:
		id, err := r.kvNamespace(ctx, lists, resource)

		return platform.Binding{Type: platform.BindingKVNamespace, Name: cfg.Name, NamespaceID: id}, err
	case models.BindingTypeD1:
		id, err := r.d1Database(ctx, resource)

		return platform.Binding{Type: platform.BindingD1, Name: cfg.Name, ID: id}, err
	case models.BindingTypeR2:
		err := r.r2Bucket(ctx, lists, resource)

		return platform.Binding{Type: platform.BindingR2Bucket, Name: cfg.Name, BucketName: resource}, err
	case models.BindingTypeAI:
		return platform.Binding{Type: platform.BindingAI, Name: cfg.Name}, nil
	case models.BindingTypeService:
		return platform.Binding{Type: platform.BindingService, Name: cfg.Name, Service: resource}, nil
	case models.BindingTypeWorkflow:
		return platform.Binding{
			Type:         platform.BindingWorkflow,
			Name:         cfg.Name,
			WorkflowName: resource,
			ClassName:    cfg.ClassName,
			ScriptName:   cfg.ScriptName,
		}, nil
	case models.BindingTypeDurableObject:
		return platform.Binding{Type: platform.BindingDurableObject, Name: cfg.Name, ClassName: cfg.ClassName}, nil
	default:
		return platform.Binding{}, fmt.Errorf("unsupported binding type '%s'", cfg.Type)
	}
}

func (r *Resolver) kvNamespace(ctx context.Context, lists *listings, title string) (string, error) {
	namespaces, err := lists.kv()
	if err != nil {
		return "", err
	}

	for _, ns := range namespaces {
		if ns.Title == title {
			return ns.ID, nil
		}
	}

	created, err := r.api.CreateKVNamespace(ctx, title)
	if err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "created kv namespace", "title", title, "id", created.ID)

	return created.ID, nil
}

func (r *Resolver) d1Database(ctx context.Context, name string) (string, error) {
	databases, err := r.api.ListD1Databases(ctx, name)
	if err != nil {
		return "", err
	}

	for _, db := range databases {
		if db.Name == name {
			return db.UUID, nil
		}
	}

	created, err := r.api.CreateD1Database(ctx, name)
	if err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "created d1 database", "name", name, "id", created.UUID)

	return created.UUID, nil
}

func (r *Resolver) r2Bucket(ctx context.Context, lists *listings, name string) error {
	buckets, err := lists.r2()
	if err != nil {
		return err
	}

	for _, bucket := range buckets {
		if bucket.Name == name {
			return nil
		}
	}

	if _, err := r.api.CreateR2Bucket(ctx, name); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "created r2 bucket", "name", name)

	return nil
}

// ExportsClass reports whether source declares `export class <name>`.
func ExportsClass(source, name string) bool {
	if name == "" {
		return false
	}

	pattern := regexp.MustCompile(`(?m)\bexport\s+class\s+` + regexp.QuoteMeta(name) + `\b`)

	return pattern.MatchString(source)
}
