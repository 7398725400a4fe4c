package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunotel"

	"github.com/veilpii/veil/internal"
	"github.com/veilpii/veil/pkg/models"
	"github.com/veilpii/veil/pkg/store/postgres/migrations"
)

var log = internal.GetLogger()

// RecognizerSchema stores a declarative recognizer. Name mirrors Spec.Name so
// the database can enforce uniqueness.
type RecognizerSchema struct {
	bun.BaseModel `bun:"table:recognizer,alias:r" yaml:"-"`

	UUID      uuid.UUID             `bun:",pk,type:uuid,default:gen_random_uuid()"                     yaml:"uuid,omitempty"`
	Name      string                `bun:",unique,notnull"                                             yaml:"name"`
	Entity    string                `bun:",notnull"                                                    yaml:"entity"`
	Language  string                `bun:",notnull"                                                    yaml:"language"`
	Spec      models.RecognizerSpec `bun:"type:jsonb,notnull"                                          yaml:"spec"`
	CreatedAt time.Time             `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	UpdatedAt time.Time             `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"updated_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*RecognizerSchema)(nil)

func (s *RecognizerSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeCreateTable is a marker method to ensure uniform interface across all table models - used in table creation iterator
func (s *RecognizerSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// JobSchema stores the status and outcome of an asynchronous analyze job.
type JobSchema struct {
	bun.BaseModel `bun:"table:analyze_job,alias:j" yaml:"-"`

	UUID        uuid.UUID               `bun:",pk,type:uuid"                                               yaml:"uuid"`
	Status      string                  `bun:",notnull"                                                    yaml:"status"`
	Response    *models.AnalyzeResponse `bun:"type:jsonb"                                                  yaml:"response,omitempty"`
	Error       string                  `bun:",nullzero"                                                   yaml:"error,omitempty"`
	CreatedAt   time.Time               `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp" yaml:"created_at,omitempty"`
	CompletedAt *time.Time              `bun:"type:timestamptz"                                            yaml:"completed_at,omitempty"`
}

func (s *JobSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// Create indexes after table creation
var _ bun.AfterCreateTableHook = (*RecognizerSchema)(nil)
var _ bun.AfterCreateTableHook = (*JobSchema)(nil)

func (*RecognizerSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*RecognizerSchema)(nil)).
		Index("recognizer_language_idx").
		Column("language").
		IfNotExists().
		Exec(ctx)
	return err
}

func (*JobSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*JobSchema)(nil)).
		Index("analyze_job_status_idx").
		Column("status").
		IfNotExists().
		Exec(ctx)
	return err
}

var tableList = []bun.BeforeCreateTableHook{
	&RecognizerSchema{},
	&JobSchema{},
}

// CreateSchema creates the db schema if it does not exist and applies
// pending migrations.
func CreateSchema(
	ctx context.Context,
	db *bun.DB,
) error {
	for _, schema := range tableList {
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	if err := migrations.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// NewPostgresConn creates a new bun.DB connection to a postgres database using the provided DSN.
// The connection is configured to pool connections based on the number of PROCs available.
func NewPostgresConn(dsn string) (*bun.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required for the postgres store")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	maxOpenConns := 4 * runtime.GOMAXPROCS(0)

	sqldb := sql.OpenDB(
		pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithReadTimeout(30*time.Second),
		),
	)
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName("veil")))

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}
