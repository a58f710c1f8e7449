package identity

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-identity/enrichment"
	"github.com/goliatone/go-identity/providers"
	"github.com/goliatone/go-identity/security"
	badgerstore "github.com/goliatone/go-identity/store/badger"
	sqlstore "github.com/goliatone/go-identity/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Constructors for the batteries-included backends, so downstream wiring
// can stay on the root package.

func SQLRepositoryFactory() *sqlstore.RepositoryFactory {
	return sqlstore.NewRepositoryFactory()
}

func SQLRepositoryFactoryFromDB(db *bun.DB) (*sqlstore.RepositoryFactory, error) {
	return sqlstore.NewRepositoryFactoryFromDB(db)
}

func SQLRepositoryFactoryFromPersistence(client *persistence.Client) (*sqlstore.RepositoryFactory, error) {
	return sqlstore.NewRepositoryFactoryFromPersistence(client)
}

func BadgerSessionCache(cfg badgerstore.Config) (*badgerstore.SessionCache, error) {
	return badgerstore.Open(cfg)
}

func InMemoryBadgerSessionCache() (*badgerstore.SessionCache, error) {
	return badgerstore.Open(badgerstore.InMemoryConfig())
}

func UserInfoResolver(cfg providers.Config) *providers.Resolver {
	return providers.NewResolver(cfg)
}

func AllergyEnrichmentClient(cfg enrichment.Config) (*enrichment.Client, error) {
	return enrichment.NewClient(cfg)
}

func StaticSigningKeyProvider(key string, opts ...security.Option) (*security.StaticKeyProvider, error) {
	return security.NewStaticKeyProviderFromString(key, opts...)
}

type dsnPersistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c dsnPersistenceConfig) GetDebug() bool { return c.debug }

func (c dsnPersistenceConfig) GetDriver() string { return c.driver }

func (c dsnPersistenceConfig) GetServer() string { return c.server }

func (c dsnPersistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }

func (c dsnPersistenceConfig) GetOtelIdentifier() string { return "go-identity" }

// OpenPersistence opens a persistence client for the DSN, picking the
// dialect from its scheme: postgres:// and postgresql:// use the pq
// driver, everything else is treated as a sqlite file or memory DSN.
// The caller registers migrations against the client before Migrate.
func OpenPersistence(dsn string) (*persistence.Client, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("identity: persistence dsn is required")
	}

	driver := "sqlite3"
	var dialect schema.Dialect = sqlitedialect.New()
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("identity: open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	cfg := dsnPersistenceConfig{driver: driver, server: dsn}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("identity: new persistence client: %w", err)
	}
	return client, nil
}
