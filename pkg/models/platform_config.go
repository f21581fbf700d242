package models

// PlatformConfig is the deployment descriptor emitted next to the compiled module.
// Field order is fixed so that the serialized form is stable.
type PlatformConfig struct {
	Name              string                `json:"name"`
	Main              string                `json:"main"`
	CompatibilityDate string                `json:"compatibility_date"`
	Workflows         []WorkflowConfig      `json:"workflows,omitempty"`
	KVNamespaces      []KVNamespaceConfig   `json:"kv_namespaces,omitempty"`
	D1Databases       []D1DatabaseConfig    `json:"d1_databases,omitempty"`
	R2Buckets         []R2BucketConfig      `json:"r2_buckets,omitempty"`
	AI                *AIConfig             `json:"ai,omitempty"`
	Services          []ServiceConfig       `json:"services,omitempty"`
	DurableObjects    *DurableObjectsConfig `json:"durable_objects,omitempty"`
	Migrations        []MigrationConfig     `json:"migrations,omitempty"`
}

type WorkflowConfig struct {
	Binding    string `json:"binding"`
	Name       string `json:"name"`
	ClassName  string `json:"class_name"`
	ScriptName string `json:"script_name,omitempty"`
}

type KVNamespaceConfig struct {
	Binding string `json:"binding"`
	ID      string `json:"id,omitempty"`
}

type D1DatabaseConfig struct {
	Binding      string `json:"binding"`
	DatabaseName string `json:"database_name"`
	DatabaseID   string `json:"database_id,omitempty"`
}

type R2BucketConfig struct {
	Binding    string `json:"binding"`
	BucketName string `json:"bucket_name"`
}

type AIConfig struct {
	Binding string `json:"binding"`
}

type ServiceConfig struct {
	Binding string `json:"binding"`
	Service string `json:"service"`
}

type DurableObjectsConfig struct {
	Bindings []DurableObjectBindingConfig `json:"bindings"`
}

type DurableObjectBindingConfig struct {
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
}

type MigrationConfig struct {
	Tag        string   `json:"tag"`
	NewClasses []string `json:"new_sqlite_classes,omitempty"`
}
