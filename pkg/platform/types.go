package platform

import (
	"encoding/json"
	"time"
)

type KVNamespace struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type D1Database struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type R2Bucket struct {
	Name string `json:"name"`
}

// Function is the deployable unit versions are uploaded to.
type Function struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Version struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
}

type Deployment struct {
	ID        string    `json:"id"`
	CreatedOn time.Time `json:"created_on"`
}

type Workflow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClassName  string `json:"class_name"`
	ScriptName string `json:"script_name"`
}

type Instance struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// InstanceStatus is the last known state of a workflow run.
type InstanceStatus struct {
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// Binding types understood by version metadata.
const (
	BindingKVNamespace   = "kv_namespace"
	BindingD1            = "d1"
	BindingR2Bucket      = "r2_bucket"
	BindingAI            = "ai"
	BindingService       = "service"
	BindingDurableObject = "durable_object_namespace"
	BindingWorkflow      = "workflow"
)

// Binding is one entry of a version's binding list.
type Binding struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	NamespaceID  string `json:"namespace_id,omitempty"`
	ID           string `json:"id,omitempty"`
	BucketName   string `json:"bucket_name,omitempty"`
	Service      string `json:"service,omitempty"`
	ClassName    string `json:"class_name,omitempty"`
	ScriptName   string `json:"script_name,omitempty"`
	WorkflowName string `json:"workflow_name,omitempty"`
}

// Migration introduces durable object classes with a version.
type Migration struct {
	Tag              string   `json:"new_tag"`
	NewSqliteClasses []string `json:"new_sqlite_classes"`
}

// VersionUpload is the module and metadata of a new version.
type VersionUpload struct {
	MainModule        string
	Source            string
	CompatibilityDate string
	Bindings          []Binding
	Migrations        []Migration
}

type versionMetadata struct {
	MainModule        string      `json:"main_module"`
	CompatibilityDate string      `json:"compatibility_date"`
	Bindings          []Binding   `json:"bindings"`
	Migrations        []Migration `json:"migrations,omitempty"`
}

// WorkflowRegistration points a named workflow at a class of a function.
type WorkflowRegistration struct {
	Name       string `json:"-"`
	ClassName  string `json:"class_name"`
	ScriptName string `json:"script_name"`
}
