//go:build integration

package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/testutil"
)

func newPostgresExecutor(t *testing.T, timeout time.Duration) (*Executor, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	dsn := testutil.StartPostgres(t, ctx)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	exec := NewExecutor(db, Postgres{}, Options{
		Timeout:         timeout,
		MaxRows:         100,
		MaxConcurrent:   4,
		ForbiddenTables: testForbidden,
	}, zap.NewNop())
	return exec, db
}

func TestPostgresExecutor(t *testing.T) {
	exec, db := newPostgresExecutor(t, 500*time.Millisecond)
	ctx := context.Background()

	// постоянная таблица с тем же именем не должна влиять на песочницу
	_, err := db.ExecContext(ctx, "CREATE TABLE t (x INT)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t VALUES (100)")
	require.NoError(t, err)

	t.Run("order sensitive grading scenario", func(t *testing.T) {
		schema := "CREATE TABLE T(x INT); INSERT INTO T VALUES (2),(1);"
		ref, err := exec.Run(ctx, schema, "SELECT x FROM T ORDER BY x")
		require.NoError(t, err)
		same, err := exec.Run(ctx, schema, "SELECT x FROM T ORDER BY x")
		require.NoError(t, err)

		assert.Equal(t, [][]interface{}{{int64(1)}, {int64(2)}}, ref.Rows)
		assert.True(t, ref.Equal(same))
	})

	t.Run("persistent state untouched", func(t *testing.T) {
		_, err := exec.Run(ctx, "CREATE TABLE t(x INT); INSERT INTO t VALUES (1);", "SELECT x FROM t")
		require.NoError(t, err)

		var x int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT x FROM public.t").Scan(&x))
		assert.Equal(t, 100, x)

		var temps int
		require.NoError(t, db.QueryRowContext(ctx,
			"SELECT count(*) FROM pg_class WHERE relpersistence = 't' AND relname = 't'").Scan(&temps))
		assert.Equal(t, 0, temps)
	})

	t.Run("concurrent runs with same table name", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rs, err := exec.Run(ctx, fmt.Sprintf("CREATE TABLE T(x INT); INSERT INTO T VALUES (%d);", i), "SELECT x FROM T")
				if err != nil {
					errs[i] = err
					return
				}
				if len(rs.Rows) != 1 || rs.Rows[0][0] != int64(i) {
					errs[i] = fmt.Errorf("run %d saw %v", i, rs.Rows)
				}
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("statement timeout", func(t *testing.T) {
		_, err := exec.Run(ctx, "", "SELECT pg_sleep(5)")
		var qErr *QueryError
		require.ErrorAs(t, err, &qErr)
		assert.True(t, qErr.Timeout)
	})
}
