package sandbox

import (
	"strings"
)

type pieceKind int

const (
	pieceCode pieceKind = iota
	pieceString
	pieceIdent
	pieceComment
)

type piece struct {
	kind pieceKind
	text string
}

// lex разбивает SQL на код, строковые литералы, идентификаторы в кавычках и комментарии.
// Незакрытый литерал или комментарий продолжается до конца текста.
func lex(src string) []piece {
	var pieces []piece
	var code strings.Builder

	flushCode := func() {
		if code.Len() > 0 {
			pieces = append(pieces, piece{kind: pieceCode, text: code.String()})
			code.Reset()
		}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			flushCode()
			end := closingQuote(src, i+1, c)
			kind := pieceString
			if c == '"' {
				kind = pieceIdent
			}
			pieces = append(pieces, piece{kind: kind, text: src[i:end]})
			i = end
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			flushCode()
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src)
			} else {
				end += i
			}
			pieces = append(pieces, piece{kind: pieceComment, text: src[i:end]})
			i = end
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			flushCode()
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = len(src)
			} else {
				end += i + 4
			}
			pieces = append(pieces, piece{kind: pieceComment, text: src[i:end]})
			i = end
		default:
			code.WriteByte(c)
			i++
		}
	}
	flushCode()
	return pieces
}

// closingQuote возвращает индекс после закрывающей кавычки q, удвоенная кавычка экранирует
func closingQuote(src string, from int, q byte) int {
	for i := from; i < len(src); i++ {
		if src[i] != q {
			continue
		}
		if i+1 < len(src) && src[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(src)
}

// statement одно SQL-выражение без комментариев
type statement struct {
	pieces []piece
}

// Text возвращает исходный текст выражения без комментариев
func (s statement) Text() string {
	var b strings.Builder
	for _, p := range s.pieces {
		b.WriteString(p.text)
	}
	return strings.TrimSpace(b.String())
}

// Masked возвращает текст, в котором строковые литералы заменены на '' и
// с идентификаторов сняты кавычки. По нему проверяются ключевые слова и имена таблиц.
func (s statement) Masked() string {
	var b strings.Builder
	for _, p := range s.pieces {
		switch p.kind {
		case pieceString:
			b.WriteString("''")
		case pieceIdent:
			b.WriteByte(' ')
			b.WriteString(unquoteIdent(p.text))
			b.WriteByte(' ')
		default:
			b.WriteString(p.text)
		}
	}
	return b.String()
}

// splitStatements удаляет комментарии и делит текст по ';' вне литералов.
// Пустые выражения (в том числе после завершающего ';') отбрасываются.
func splitStatements(src string) []statement {
	var stmts []statement
	var cur []piece

	flush := func() {
		st := statement{pieces: cur}
		if st.Text() != "" {
			stmts = append(stmts, st)
		}
		cur = nil
	}

	for _, p := range lex(src) {
		switch p.kind {
		case pieceComment:
			cur = append(cur, piece{kind: pieceCode, text: " "})
		case pieceCode:
			parts := strings.Split(p.text, ";")
			for i, part := range parts {
				if i > 0 {
					flush()
				}
				if part != "" {
					cur = append(cur, piece{kind: pieceCode, text: part})
				}
			}
		default:
			cur = append(cur, p)
		}
	}
	flush()
	return stmts
}

func unquoteIdent(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.ReplaceAll(s, `""`, `"`)
}

// normalizeIdent приводит имя к виду, в котором его сравнивает СУБД:
// имя в кавычках как есть, без кавычек в нижнем регистре
func normalizeIdent(s string) string {
	if strings.HasPrefix(s, `"`) {
		return unquoteIdent(s)
	}
	return strings.ToLower(s)
}
