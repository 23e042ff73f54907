package sandbox

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ResultSet строки, возвращенные запросом песочницы
type ResultSet struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Truncated bool            `json:"truncated,omitempty"`
}

// Fingerprint сериализует строки в порядке их получения.
// Два результата эквивалентны при посимвольном равенстве отпечатков, имена колонок не учитываются.
func (r *ResultSet) Fingerprint() (string, error) {
	rows := r.Rows
	if rows == nil {
		rows = [][]interface{}{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Equal сравнивает результаты с учетом порядка строк.
// Усеченный набор не равен никакому другому: строки за пределом max_rows не видны.
func (r *ResultSet) Equal(other *ResultSet) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Truncated || other.Truncated {
		return false
	}
	a, err := r.Fingerprint()
	if err != nil {
		return false
	}
	b, err := other.Fingerprint()
	if err != nil {
		return false
	}
	return a == b
}

// QueryError ошибка выполнения запроса в песочнице. Текст берется из ответа СУБД.
type QueryError struct {
	Message string
	Timeout bool
}

func (e *QueryError) Error() string {
	return e.Message
}

// scanRows читает не больше maxRows строк
func scanRows(rows *sql.Rows, maxRows int) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: cols, Rows: [][]interface{}{}}

	for rows.Next() {
		if maxRows > 0 && len(rs.Rows) >= maxRows {
			rs.Truncated = true
			break
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// normalizeValue приводит значения драйвера к виду, пригодному для JSON и сравнения
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	}
	return v
}
