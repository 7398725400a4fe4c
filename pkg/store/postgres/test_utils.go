package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// CleanDB drops the veil tables and the migration bookkeeping tables.
func CleanDB(t *testing.T, db *bun.DB) {
	for _, model := range []any{(*RecognizerSchema)(nil), (*JobSchema)(nil)} {
		_, err := db.NewDropTable().
			Model(model).
			Cascade().
			IfExists().
			Exec(context.Background())
		require.NoError(t, err)
	}
	for _, table := range []string{"bun_migrations", "bun_migration_locks"} {
		_, err := db.NewDropTable().
			Table(table).
			IfExists().
			Exec(context.Background())
		require.NoError(t, err)
	}
}
