package helper

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/middleware"
	"github.com/yourusername/exam-api/internal/service"
)

// QuestionOption вариант ответа для фронтенда, без признака правильности
type QuestionOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// ConvertOptions преобразует варианты вопроса в DTO
func ConvertOptions(options []entity.QuestionOption) []QuestionOption {
	converted := make([]QuestionOption, len(options))
	for i, opt := range options {
		text := opt.Text
		if text == "" {
			text = "(пустой вариант)"
		}
		converted[i] = QuestionOption{ID: opt.ID, Text: text}
	}
	return converted
}

// ActorFromContext собирает участника из полей, которые заполнил RequireAuth
func ActorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{IsStaff: c.GetBool(middleware.ContextIsStaff)}
	if v, ok := c.Get(middleware.ContextUserID); ok {
		actor.UserID, _ = v.(uint)
	}
	return actor
}

// ClientMetaFromContext собирает IP и User-Agent клиента
func ClientMetaFromContext(c *gin.Context) service.ClientMeta {
	ua := c.Request.UserAgent()
	if len(ua) > 512 {
		ua = ua[:512]
	}
	return service.ClientMeta{IPAddress: c.ClientIP(), UserAgent: ua}
}
