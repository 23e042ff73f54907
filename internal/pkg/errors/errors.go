package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния.
	ErrConflict = errors.New("resource state conflict")

	// ErrDataIntegrity означает нарушение инварианта данных, которое нельзя исправить повтором запроса.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// Ошибки жизненного цикла попытки
var (
	// ErrOutOfWindow: экзамен вне окна расписания.
	ErrOutOfWindow = errors.New("exam is not available at this time")

	// ErrAlreadyAttempted: у студента уже есть завершенная попытка.
	ErrAlreadyAttempted = errors.New("exam already attempted")

	// ErrAttemptClosed: попытка больше не принимает ответы.
	ErrAttemptClosed = errors.New("attempt is closed")

	// ErrTimeExpired: время попытки вышло с учетом льготного периода.
	ErrTimeExpired = errors.New("time expired")

	// ErrQuestionNotInExam: вопрос не относится к экзамену попытки.
	ErrQuestionNotInExam = errors.New("question does not belong to this exam")

	// ErrInvalidState: недопустимый переход состояния.
	ErrInvalidState = errors.New("invalid attempt state")

	// ErrDuplicateResult: результат для попытки уже существует.
	// Наружу не отдается, сервис возвращает существующий результат.
	ErrDuplicateResult = errors.New("result already exists")
)

// Ошибки песочницы
var (
	// ErrDangerousStatement: запрос содержит несколько выражений или изменяющие ключевые слова.
	ErrDangerousStatement = errors.New("dangerous statement")

	// ErrForbiddenTable: запрос обращается к таблице системы.
	ErrForbiddenTable = errors.New("forbidden table")
)
