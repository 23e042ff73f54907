package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

const identPattern = `("(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_$]*)`

var (
	createTableRe = regexp.MustCompile(`(?is)^CREATE\s+(?:TEMP(?:ORARY)?\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identPattern + `\s*(.*)$`)
	insertIntoRe  = regexp.MustCompile(`(?is)^INSERT\s+INTO\s+` + identPattern + `\s*(.*)$`)
	asSelectRe    = regexp.MustCompile(`(?is)^AS\s`)
)

type setupKind int

const (
	setupCreate setupKind = iota
	setupInsert
)

// setupStatement разобранное выражение скрипта схемы
type setupStatement struct {
	kind  setupKind
	table string // имя как в исходном тексте, с кавычками если были
	rest  string // текст после имени таблицы
	text  string
}

// parseSetup разбирает скрипт схемы. Допускаются только CREATE TABLE и
// INSERT INTO в таблицу, созданную выше в этом же скрипте.
func parseSetup(script string, forbidden []string) ([]setupStatement, error) {
	stmts := splitStatements(script)
	parsed := make([]setupStatement, 0, len(stmts))
	created := make(map[string]struct{})

	for i, st := range stmts {
		text := st.Text()
		if m := createTableRe.FindStringSubmatch(text); m != nil {
			name, rest := m[1], m[2]
			isAs := asSelectRe.MatchString(rest)
			if !strings.HasPrefix(rest, "(") && !isAs {
				return nil, fmt.Errorf("%w: setup statement %d: malformed CREATE TABLE", apperrors.ErrDangerousStatement, i+1)
			}
			words := wordRe.FindAllString(st.Masked(), -1)
			if isAs {
				// CREATE TABLE ... AS SELECT: тело проверяется как запрос
				if err := checkDenied(words[1:]); err != nil {
					return nil, err
				}
			}
			if err := checkForbidden(words, forbidden); err != nil {
				return nil, err
			}
			created[normalizeIdent(name)] = struct{}{}
			parsed = append(parsed, setupStatement{kind: setupCreate, table: name, rest: rest, text: text})
			continue
		}

		if m := insertIntoRe.FindStringSubmatch(text); m != nil {
			name, rest := m[1], m[2]
			if strings.HasPrefix(rest, ".") {
				return nil, fmt.Errorf("%w: setup statement %d: schema-qualified tables are not allowed", apperrors.ErrDangerousStatement, i+1)
			}
			if _, ok := created[normalizeIdent(name)]; !ok {
				return nil, fmt.Errorf("%w: setup statement %d: INSERT into a table not created by the script", apperrors.ErrDangerousStatement, i+1)
			}
			words := wordRe.FindAllString(st.Masked(), -1)
			// первые два слова INSERT INTO
			if err := checkDenied(words[2:]); err != nil {
				return nil, err
			}
			if err := checkForbidden(words, forbidden); err != nil {
				return nil, err
			}
			parsed = append(parsed, setupStatement{kind: setupInsert, table: name, rest: rest, text: text})
			continue
		}

		return nil, fmt.Errorf("%w: setup statement %d: only CREATE TABLE and INSERT INTO are allowed", apperrors.ErrDangerousStatement, i+1)
	}
	return parsed, nil
}

// materialize переписывает скрипт так, чтобы все таблицы были временными.
// Перед созданием каждой таблицы удаляется временная таблица с тем же именем.
func materialize(d Dialect, stmts []setupStatement) []string {
	out := make([]string, 0, len(stmts)*2)
	for _, st := range stmts {
		switch st.kind {
		case setupCreate:
			out = append(out,
				d.DropTempTable(st.table),
				"CREATE TEMPORARY TABLE "+st.table+" "+st.rest,
			)
		default:
			out = append(out, st.text)
		}
	}
	return out
}
