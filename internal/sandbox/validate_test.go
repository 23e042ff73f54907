package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

var testForbidden = []string{"exams", "questions", "exam_attempts"}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{name: "simple select", query: "SELECT x FROM t ORDER BY x"},
		{name: "trailing terminator", query: "SELECT 1;"},
		{name: "trailing terminator and spaces", query: "SELECT 1 ;  \n"},
		{name: "cte", query: "WITH a AS (SELECT 1 AS x) SELECT x FROM a"},
		{name: "parenthesized", query: "(SELECT 1) UNION (SELECT 2)"},
		{name: "keyword inside literal", query: "SELECT 'DROP TABLE t; DELETE' AS s"},
		{name: "keyword inside comment", query: "SELECT 1 -- DROP TABLE t\n"},
		{name: "block comment", query: "/* delete everything */ SELECT 1"},
		{name: "keyword as part of identifier", query: "SELECT updated_at, created_by FROM t"},
		{name: "multiple statements", query: "DROP TABLE questions; SELECT 1;", wantErr: apperrors.ErrDangerousStatement},
		{name: "two selects", query: "SELECT 1; SELECT 2", wantErr: apperrors.ErrDangerousStatement},
		{name: "drop", query: "DROP TABLE t", wantErr: apperrors.ErrDangerousStatement},
		{name: "delete lowercase", query: "delete from t", wantErr: apperrors.ErrDangerousStatement},
		{name: "update in cte", query: "WITH x AS (UPDATE t SET a = 1 RETURNING a) SELECT * FROM x", wantErr: apperrors.ErrDangerousStatement},
		{name: "not a read", query: "EXPLAIN ANALYZE SELECT 1", wantErr: apperrors.ErrDangerousStatement},
		{name: "sqlite pragma", query: "PRAGMA table_info(t)", wantErr: apperrors.ErrDangerousStatement},
		{name: "forbidden table", query: "SELECT * FROM questions", wantErr: apperrors.ErrForbiddenTable},
		{name: "forbidden table qualified", query: "SELECT * FROM public.Exams", wantErr: apperrors.ErrForbiddenTable},
		{name: "forbidden table quoted", query: `SELECT * FROM "exam_attempts"`, wantErr: apperrors.ErrForbiddenTable},
		{name: "forbidden name as substring is fine", query: "SELECT * FROM my_questions_copy"},
		{name: "empty", query: "  ; -- nothing", wantErr: apperrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query, testForbidden)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSplitStatements_RespectsLiterals(t *testing.T) {
	stmts := splitStatements("INSERT INTO t VALUES ('a;b'); -- c;d\nSELECT \"x;y\" FROM t;")
	if assert.Len(t, stmts, 2) {
		assert.Equal(t, "INSERT INTO t VALUES ('a;b')", stmts[0].Text())
		assert.Equal(t, `SELECT "x;y" FROM t`, stmts[1].Text())
	}
}

func TestParseSetup(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantN   int
		wantErr error
	}{
		{name: "empty", script: "", wantN: 0},
		{name: "create and insert", script: "CREATE TABLE T(x INT); INSERT INTO T VALUES (1),(2);", wantN: 2},
		{name: "create with fk actions", script: "CREATE TABLE a(id INT PRIMARY KEY); CREATE TABLE b(a_id INT REFERENCES a(id) ON DELETE CASCADE);", wantN: 2},
		{name: "if not exists", script: "CREATE TABLE IF NOT EXISTS t(x INT)", wantN: 1},
		{name: "quoted name", script: `CREATE TABLE "Emp"(x INT); INSERT INTO "Emp" VALUES (1)`, wantN: 2},
		{name: "insert into unknown table", script: "CREATE TABLE t(x INT); INSERT INTO other VALUES (1)", wantErr: apperrors.ErrDangerousStatement},
		{name: "insert select from system table", script: "CREATE TABLE t(x INT); INSERT INTO t SELECT id FROM exams", wantErr: apperrors.ErrForbiddenTable},
		{name: "drop in setup", script: "CREATE TABLE t(x INT); DROP TABLE t", wantErr: apperrors.ErrDangerousStatement},
		{name: "update in setup", script: "CREATE TABLE t(x INT); UPDATE t SET x = 1", wantErr: apperrors.ErrDangerousStatement},
		{name: "schema qualified", script: "CREATE TABLE public.t(x INT)", wantErr: apperrors.ErrDangerousStatement},
		{name: "create system table", script: "CREATE TABLE questions(x INT)", wantErr: apperrors.ErrForbiddenTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := parseSetup(tt.script, testForbidden)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, stmts, tt.wantN)
		})
	}
}

func TestMaterialize(t *testing.T) {
	stmts, err := parseSetup("CREATE TABLE IF NOT EXISTS T(x INT); INSERT INTO T VALUES (1);", nil)
	assert.NoError(t, err)

	pg := materialize(Postgres{}, stmts)
	assert.Equal(t, []string{
		"DROP TABLE IF EXISTS pg_temp.T",
		"CREATE TEMPORARY TABLE T (x INT)",
		"INSERT INTO T VALUES (1)",
	}, pg)

	lite := materialize(SQLite{}, stmts)
	assert.Equal(t, "DROP TABLE IF EXISTS temp.T", lite[0])
}
