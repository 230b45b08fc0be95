// Package models defines the data structures shared across the worker.
// This package has no imports from other internal packages, making it the
// foundation of the dependency graph: db, strategy, orchestrator, and
// cleanup all import from here, never the other way around.
package models

import "time"

// ServiceType identifies which Build Strategy owns a service's deployments.
type ServiceType string

const (
	ServiceTypeDocker        ServiceType = "DOCKER"
	ServiceTypeStatic        ServiceType = "STATIC"
	ServiceTypeCompose       ServiceType = "COMPOSE"
	ServiceTypePostgres      ServiceType = "POSTGRES"
	ServiceTypeRedis         ServiceType = "REDIS"
	ServiceTypeMySQL         ServiceType = "MYSQL"
	ServiceTypeMongoDB       ServiceType = "MONGODB"
	ServiceTypeMariaDB       ServiceType = "MARIADB"
	ServiceTypeCassandra     ServiceType = "CASSANDRA"
	ServiceTypeElasticsearch ServiceType = "ELASTICSEARCH"
	ServiceTypeCouchDB       ServiceType = "COUCHDB"
	ServiceTypeRabbitMQ      ServiceType = "RABBITMQ"
	ServiceTypeNeo4j         ServiceType = "NEO4J"
	ServiceTypeZookeeper     ServiceType = "ZOOKEEPER"
	ServiceTypeClickHouse    ServiceType = "CLICKHOUSE"
	ServiceTypeInfluxDB      ServiceType = "INFLUXDB"
)

// DatabaseServiceTypes is the set handled by the database strategy (pull, no build).
var DatabaseServiceTypes = map[ServiceType]bool{
	ServiceTypePostgres:      true,
	ServiceTypeRedis:         true,
	ServiceTypeMySQL:         true,
	ServiceTypeMongoDB:       true,
	ServiceTypeMariaDB:       true,
	ServiceTypeCassandra:     true,
	ServiceTypeElasticsearch: true,
	ServiceTypeCouchDB:       true,
	ServiceTypeRabbitMQ:      true,
	ServiceTypeNeo4j:         true,
	ServiceTypeZookeeper:     true,
	ServiceTypeClickHouse:    true,
	ServiceTypeInfluxDB:      true,
}

// ServiceStatus is the current lifecycle state of a Service.
// Named type instead of a plain string so the compiler rejects typos at
// assignment. The terminal success value is always RUNNING: there is no
// ACTIVE constant anywhere in this tree.
type ServiceStatus string

const (
	ServiceStatusPending  ServiceStatus = "PENDING"
	ServiceStatusBuilding ServiceStatus = "BUILDING"
	ServiceStatusRunning  ServiceStatus = "RUNNING"
	ServiceStatusFailed   ServiceStatus = "FAILED"
	ServiceStatusStopped  ServiceStatus = "STOPPED"
)

// DeploymentStatus is the lifecycle state of one deployment attempt.
type DeploymentStatus string

const (
	DeploymentStatusPending  DeploymentStatus = "PENDING"
	DeploymentStatusBuilding DeploymentStatus = "BUILDING"
	DeploymentStatusSuccess  DeploymentStatus = "SUCCESS"
	DeploymentStatusFailed   DeploymentStatus = "FAILED"
)

// Service is the user-facing unit of deployment. A Service owns the set of
// containers bearing its id label (helvetia.serviceId), but only
// transitively: a container may outlive a Service briefly during cleanup.
type Service struct {
	ID              string        `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	Type            ServiceType   `json:"type" db:"type"`
	Status          ServiceStatus `json:"status" db:"status"`
	EnvironmentID   string        `json:"environment_id" db:"environment_id"`
	CustomDomain    *string       `json:"custom_domain,omitempty" db:"custom_domain"`
	ProjectName     string        `json:"project_name" db:"project_name"`
	EnvironmentName string        `json:"environment_name" db:"environment_name"`
	Username        string        `json:"username" db:"username"`

	// DeletedAt is the tombstone marker for soft deletion. A non-nil value
	// older than the retention window makes the Service eligible for
	// permanent reaping by the Cleanup Scheduler.
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTombstoned reports whether the service has been soft-deleted at all
// (regardless of how long ago).
func (s *Service) IsTombstoned() bool {
	return s.DeletedAt != nil
}

// Deployment is one attempt to materialize a Service at a point in time.
// Immutable after reaching a terminal status (SUCCESS or FAILED).
type Deployment struct {
	ID        string           `json:"id" db:"id"`
	ServiceID string           `json:"service_id" db:"service_id"`
	Status    DeploymentStatus `json:"status" db:"status"`

	// ImageTag is set only on SUCCESS. For rebuilt services this is
	// helvetia/<serviceName>:latest; for pre-built pulls, the upstream
	// reference; for managed databases, the curated tag; for compose
	// projects, the sentinel compose:<serviceName>.
	ImageTag *string `json:"image_tag,omitempty" db:"image_tag"`

	// Logs is truncated to MAX_LOG_SIZE_CHARS and scrubbed of secrets
	// before being written here.
	Logs      string    `json:"logs" db:"logs"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the deployment has reached SUCCESS or FAILED.
func (d *Deployment) IsTerminal() bool {
	return d.Status == DeploymentStatusSuccess || d.Status == DeploymentStatusFailed
}

// Job is the queue message owned by the `deployments` queue. Treated as
// immutable for the duration of processing; the orchestrator never writes
// back to it.
type Job struct {
	DeploymentID    string            `json:"deploymentId"`
	ServiceID       string            `json:"serviceId"`
	ServiceName     string            `json:"serviceName"`
	Type            ServiceType       `json:"type"`
	RepoURL         string            `json:"repoUrl"`
	Branch          string            `json:"branch"`
	BuildCommand    string            `json:"buildCommand"`
	StartCommand    string            `json:"startCommand"`
	StaticOutputDir string            `json:"staticOutputDir"`
	ComposeFile     string            `json:"composeFile"`
	MainService     string            `json:"mainService"`
	Port            int               `json:"port"`
	EnvVars         map[string]string `json:"envVars"`
	Volumes         []string          `json:"volumes"`
	CustomDomain    string            `json:"customDomain"`
	ProjectName     string            `json:"projectName"`
	EnvironmentName string            `json:"environmentName"`
	Username        string            `json:"username"`
}

// CleanupTrigger is the empty-payload job on the service-cleanup queue.
type CleanupTrigger struct {
	TriggeredAt time.Time `json:"triggeredAt"`
}
