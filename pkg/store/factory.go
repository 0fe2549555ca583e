package store

import (
	"context"
	"fmt"

	"github.com/barekit/lingua/pkg/store/consts"
	"github.com/barekit/lingua/pkg/store/inmemory"
	mongostore "github.com/barekit/lingua/pkg/store/mongo"
	"github.com/barekit/lingua/pkg/store/mssql"
	"github.com/barekit/lingua/pkg/store/mysql"
	"github.com/barekit/lingua/pkg/store/neo4j"
	"github.com/barekit/lingua/pkg/store/postgres"
	"github.com/barekit/lingua/pkg/store/sqlite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
	TypeMSSQL    Type = "mssql"
	TypeMongo    Type = "mongo"
	TypeNeo4j    Type = "neo4j"
	TypeInMemory Type = "inmemory"
)

// Config holds configuration for store adapters.
type Config struct {
	Type             Type
	ConnectionString string
	Username         string
	Password         string
	DBName           string
}

// NewFactory creates a new store adapter based on the configuration.
func NewFactory(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeSQLite:
		return sqlite.New(cfg.ConnectionString)

	case TypePostgres:
		return postgres.New(cfg.ConnectionString)

	case TypeMySQL:
		return mysql.New(cfg.ConnectionString)

	case TypeMSSQL:
		return mssql.New(cfg.ConnectionString)

	case TypeMongo:
		opts := options.Client().ApplyURI(cfg.ConnectionString)
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		dbName := consts.DefaultDBName
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return mongostore.New(client, dbName), nil

	case TypeNeo4j:
		dbName := "neo4j"
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return neo4j.New(cfg.ConnectionString, cfg.Username, cfg.Password, dbName)

	case TypeInMemory:
		return inmemory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
