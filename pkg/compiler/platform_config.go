package compiler

import (
	"github.com/dukex/flowforge/pkg/models"
)

// MigrationTag is the tag of the single migration that introduces the module's
// durable object classes.
const MigrationTag = "v1"

// BuildPlatformConfig maps bindings onto the descriptor the platform reads
// next to the module. Entries keep binding order.
func BuildPlatformConfig(workflowName, className, compatibilityDate string, configs []*models.BindingConfiguration) *models.PlatformConfig {
	pc := &models.PlatformConfig{
		Name:              workflowName,
		Main:              MainModule,
		CompatibilityDate: compatibilityDate,
	}

	if EntrypointBinding(configs, className) == WorkflowBindingName {
		pc.Workflows = append(pc.Workflows, models.WorkflowConfig{
			Binding:   WorkflowBindingName,
			Name:      workflowName,
			ClassName: className,
		})
	}

	var newClasses []string

	for _, cfg := range configs {
		switch cfg.Type {
		case models.BindingTypeKV:
			pc.KVNamespaces = append(pc.KVNamespaces, models.KVNamespaceConfig{Binding: cfg.Name, ID: cfg.ExternalID})
		case models.BindingTypeD1:
			pc.D1Databases = append(pc.D1Databases, models.D1DatabaseConfig{
				Binding:      cfg.Name,
				DatabaseName: cfg.ResourceName,
				DatabaseID:   cfg.ExternalID,
			})
		case models.BindingTypeR2:
			pc.R2Buckets = append(pc.R2Buckets, models.R2BucketConfig{Binding: cfg.Name, BucketName: cfg.ResourceName})
		case models.BindingTypeAI:
			pc.AI = &models.AIConfig{Binding: cfg.Name}
		case models.BindingTypeService:
			pc.Services = append(pc.Services, models.ServiceConfig{Binding: cfg.Name, Service: cfg.ResourceName})
		case models.BindingTypeWorkflow:
			pc.Workflows = append(pc.Workflows, models.WorkflowConfig{
				Binding:    cfg.Name,
				Name:       cfg.ResourceName,
				ClassName:  cfg.ClassName,
				ScriptName: cfg.ScriptName,
			})
		case models.BindingTypeDurableObject:
			if pc.DurableObjects == nil {
				pc.DurableObjects = &models.DurableObjectsConfig{}
			}

			pc.DurableObjects.Bindings = append(pc.DurableObjects.Bindings, models.DurableObjectBindingConfig{
				Name:      cfg.Name,
				ClassName: cfg.ClassName,
			})
			newClasses = append(newClasses, cfg.ClassName)
		}
	}

	if len(newClasses) > 0 {
		pc.Migrations = []models.MigrationConfig{{Tag: MigrationTag, NewClasses: newClasses}}
	}

	return pc
}
