package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

var wordRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_$]*`)

// deniedKeywords изменяющие и DDL ключевые слова, запрещенные в запросе
var deniedKeywords = map[string]struct{}{
	"DROP": {}, "TRUNCATE": {}, "ALTER": {}, "DELETE": {}, "UPDATE": {}, "INSERT": {},
	"CREATE": {}, "GRANT": {}, "REVOKE": {}, "REPLACE": {}, "RENAME": {},
	// специфичные для движков
	"ATTACH": {}, "DETACH": {}, "PRAGMA": {}, "COPY": {}, "VACUUM": {}, "MERGE": {}, "CALL": {},
}

// readStarters допустимые первые слова запроса
var readStarters = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "VALUES": {}, "TABLE": {},
}

// ValidateQuery проверяет запрос до выполнения: одно выражение, только чтение,
// без обращения к таблицам из forbidden. Комментарии не учитываются.
func ValidateQuery(query string, forbidden []string) error {
	stmts := splitStatements(query)
	if len(stmts) == 0 {
		return fmt.Errorf("%w: query is empty", apperrors.ErrValidation)
	}
	if len(stmts) > 1 {
		return fmt.Errorf("%w: only a single statement is allowed", apperrors.ErrDangerousStatement)
	}

	masked := stmts[0].Masked()
	words := wordRe.FindAllString(masked, -1)
	if err := checkDenied(words); err != nil {
		return err
	}

	first := strings.TrimSpace(masked)
	if !strings.HasPrefix(first, "(") {
		if len(words) == 0 {
			return fmt.Errorf("%w: only read queries are allowed", apperrors.ErrDangerousStatement)
		}
		if _, ok := readStarters[strings.ToUpper(words[0])]; !ok {
			return fmt.Errorf("%w: only read queries are allowed", apperrors.ErrDangerousStatement)
		}
	}

	return checkForbidden(words, forbidden)
}

func checkDenied(words []string) error {
	for _, w := range words {
		upper := strings.ToUpper(w)
		if _, ok := deniedKeywords[upper]; ok {
			return fmt.Errorf("%w: %s is not allowed", apperrors.ErrDangerousStatement, upper)
		}
	}
	return nil
}

// checkForbidden ищет имена из forbidden среди слов
func checkForbidden(words, forbidden []string) error {
	if len(forbidden) == 0 {
		return nil
	}
	deny := make(map[string]struct{}, len(forbidden))
	for _, t := range forbidden {
		deny[strings.ToLower(t)] = struct{}{}
	}
	for _, w := range words {
		lower := strings.ToLower(w)
		if _, ok := deny[lower]; ok {
			return fmt.Errorf("%w: %s", apperrors.ErrForbiddenTable, lower)
		}
	}
	return nil
}
