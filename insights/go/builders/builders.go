// Package builders builds stores from config.InstanceConfig objects.
//
// These are functions separate from config.InstanceConfig so that we don't end
// up with cyclical import issues.
package builders

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sklog"
	"go.pollpulse.org/infra/go/sql/pool"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/notification/memnotificationstore"
	"go.pollpulse.org/infra/insights/go/notification/sqlnotificationstore"
	"go.pollpulse.org/infra/insights/go/response"
	"go.pollpulse.org/infra/insights/go/response/memresponsestore"
	"go.pollpulse.org/infra/insights/go/response/sqlresponsestore"
	insightssql "go.pollpulse.org/infra/insights/go/sql"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/statistics/memstatstore"
	"go.pollpulse.org/infra/insights/go/statistics/sqlstatstore"
	"go.pollpulse.org/infra/insights/go/survey"
	"go.pollpulse.org/infra/insights/go/survey/memsurveystore"
	"go.pollpulse.org/infra/insights/go/survey/sqlsurveystore"
)

// pgxLogAdaptor allows bubbling pgx logs up into our application.
type pgxLogAdaptor struct{}

// Log a message at the given level with data key/value pairs. data may be nil.
func (pgxLogAdaptor) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	switch level {
	case pgx.LogLevelTrace:
	case pgx.LogLevelDebug:
	case pgx.LogLevelInfo:
	case pgx.LogLevelWarn:
		sklog.Warningf("pgx - %s %v", msg, data)
	case pgx.LogLevelError:
		sklog.Errorf("pgx - %s %v", msg, data)
	case pgx.LogLevelNone:
	}
}

// maxPoolConnections is the MaxConns our pgxPool will maintain.
const maxPoolConnections = 100

// connectInitialInterval is the first retry delay when the database is not
// reachable at startup.
const connectInitialInterval = time.Second

// connectMaxElapsedTime is how long we keep retrying before giving up.
const connectMaxElapsedTime = time.Minute

// singletonPool is the one and only instance of pool.Pool that an
// application should have, used in newDBPoolFromConfig.
var singletonPool pool.Pool

// singletonPoolMutex is used to enforce the singleton nature of singletonPool,
// used in newDBPoolFromConfig.
var singletonPoolMutex sync.Mutex

// newDBPoolFromConfig opens the database, retrying with backoff while it is
// unreachable, and applies the schema.
func newDBPoolFromConfig(ctx context.Context, instanceConfig *config.InstanceConfig) (pool.Pool, error) {
	singletonPoolMutex.Lock()
	defer singletonPoolMutex.Unlock()

	if singletonPool != nil {
		return singletonPool, nil
	}

	cfg, err := pgxpool.ParseConfig(instanceConfig.DataStoreConfig.ConnectionString)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to parse database config: %q", instanceConfig.DataStoreConfig.ConnectionString)
	}
	cfg.MaxConns = maxPoolConnections
	cfg.ConnConfig.Logger = pgxLogAdaptor{}

	var db *pgxpool.Pool
	connect := func() error {
		db, err = pgxpool.ConnectConfig(ctx, cfg)
		if err != nil {
			sklog.Warningf("Database not reachable yet: %s", err)
			return err
		}
		return nil
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = connectInitialInterval
	exp.MaxElapsedTime = connectMaxElapsedTime
	if err := backoff.Retry(connect, backoff.WithContext(exp, ctx)); err != nil {
		return nil, skerr.Wrapf(err, "Failed to connect to database")
	}

	if _, err := db.Exec(ctx, insightssql.Schema); err != nil {
		return nil, skerr.Wrapf(err, "Failed to apply schema")
	}

	singletonPool = db
	return singletonPool, nil
}

// NewStatStoreFromConfig creates a new statistics.Store from the
// InstanceConfig.
func NewStatStoreFromConfig(ctx context.Context, instanceConfig *config.InstanceConfig) (statistics.Store, error) {
	switch instanceConfig.DataStoreConfig.DataStoreType {
	case config.MemoryDataStoreType:
		return memstatstore.New(), nil
	case config.CockroachDBDataStoreType:
		db, err := newDBPoolFromConfig(ctx, instanceConfig)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		return sqlstatstore.New(db)
	}
	return nil, skerr.Fmt("Unknown datastore_type: %q", instanceConfig.DataStoreConfig.DataStoreType)
}

// NewResponseStoreFromConfig creates a new response.Store from the
// InstanceConfig.
func NewResponseStoreFromConfig(ctx context.Context, instanceConfig *config.InstanceConfig) (response.Store, error) {
	switch instanceConfig.DataStoreConfig.DataStoreType {
	case config.MemoryDataStoreType:
		return memresponsestore.New(), nil
	case config.CockroachDBDataStoreType:
		db, err := newDBPoolFromConfig(ctx, instanceConfig)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		return sqlresponsestore.New(db)
	}
	return nil, skerr.Fmt("Unknown datastore_type: %q", instanceConfig.DataStoreConfig.DataStoreType)
}

// NewSurveyStoreFromConfig creates a new survey.Store from the
// InstanceConfig.
func NewSurveyStoreFromConfig(ctx context.Context, instanceConfig *config.InstanceConfig) (survey.Store, error) {
	switch instanceConfig.DataStoreConfig.DataStoreType {
	case config.MemoryDataStoreType:
		return memsurveystore.New(), nil
	case config.CockroachDBDataStoreType:
		db, err := newDBPoolFromConfig(ctx, instanceConfig)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		return sqlsurveystore.New(db)
	}
	return nil, skerr.Fmt("Unknown datastore_type: %q", instanceConfig.DataStoreConfig.DataStoreType)
}

// NewNotificationStoreFromConfig creates a new notification.Store from the
// InstanceConfig.
func NewNotificationStoreFromConfig(ctx context.Context, instanceConfig *config.InstanceConfig) (notification.Store, error) {
	switch instanceConfig.DataStoreConfig.DataStoreType {
	case config.MemoryDataStoreType:
		return memnotificationstore.New(), nil
	case config.CockroachDBDataStoreType:
		db, err := newDBPoolFromConfig(ctx, instanceConfig)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		return sqlnotificationstore.New(db)
	}
	return nil, skerr.Fmt("Unknown datastore_type: %q", instanceConfig.DataStoreConfig.DataStoreType)
}
