package strategy

import (
	"context"
	"fmt"

	"github.com/helvetia-cloud/deploy-worker/models"
)

// curatedImages maps each managed database type to the tag the platform
// pulls verbatim; no build ever happens for these.
var curatedImages = map[models.ServiceType]string{
	models.ServiceTypePostgres:      "postgres:16-alpine",
	models.ServiceTypeRedis:         "redis:7-alpine",
	models.ServiceTypeMySQL:         "mysql:8",
	models.ServiceTypeMongoDB:       "mongo:7",
	models.ServiceTypeMariaDB:       "mariadb:11",
	models.ServiceTypeCassandra:     "cassandra:5",
	models.ServiceTypeElasticsearch: "elasticsearch:8.15.0",
	models.ServiceTypeCouchDB:       "couchdb:3",
	models.ServiceTypeRabbitMQ:      "rabbitmq:3-management-alpine",
	models.ServiceTypeNeo4j:         "neo4j:5",
	models.ServiceTypeZookeeper:     "zookeeper:3.9",
	models.ServiceTypeClickHouse:    "clickhouse/clickhouse-server:24",
	models.ServiceTypeInfluxDB:      "influxdb:2",
}

// DatabaseStrategy pulls a curated image for a managed database type; it
// never enters the builder-container path since there is nothing to
// build.
type DatabaseStrategy struct{}

func (s *DatabaseStrategy) CanHandle(t models.ServiceType) bool {
	return models.DatabaseServiceTypes[t]
}

func (s *DatabaseStrategy) Deploy(ctx context.Context, job models.Job, deps Deps) (Result, error) {
	image, ok := curatedImages[job.Type]
	if !ok {
		return Result{}, fmt.Errorf("strategy: no curated image for database type %q", job.Type)
	}

	if err := deps.Adapter.PullImage(ctx, image, ""); err != nil {
		return Result{}, fmt.Errorf("failed to pull curated image %q: %w", image, err)
	}

	if deps.Emit != nil {
		deps.Emit(fmt.Sprintf("pulled curated database image %s\n", image))
	}

	return Result{ImageTag: image, Success: true}, nil
}

// DataVolumePath returns the in-container path a database type's data
// directory lives at, used by the orchestrator's SWAP step to pick a
// volume bind target.
func DataVolumePath(t models.ServiceType) string {
	switch t {
	case models.ServiceTypePostgres:
		return "/var/lib/postgresql/data"
	case models.ServiceTypeMySQL, models.ServiceTypeMariaDB:
		return "/var/lib/mysql"
	case models.ServiceTypeMongoDB:
		return "/data/db"
	case models.ServiceTypeRedis:
		return "/data"
	case models.ServiceTypeElasticsearch:
		return "/usr/share/elasticsearch/data"
	case models.ServiceTypeCouchDB:
		return "/opt/couchdb/data"
	case models.ServiceTypeRabbitMQ:
		return "/var/lib/rabbitmq"
	case models.ServiceTypeNeo4j:
		return "/data"
	case models.ServiceTypeZookeeper:
		return "/data"
	case models.ServiceTypeClickHouse:
		return "/var/lib/clickhouse"
	case models.ServiceTypeInfluxDB:
		return "/var/lib/influxdb2"
	case models.ServiceTypeCassandra:
		return "/var/lib/cassandra"
	default:
		return "/data"
	}
}
