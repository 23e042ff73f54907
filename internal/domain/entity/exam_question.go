package entity

// ExamQuestion связывает вопрос с экзаменом в заданном порядке и с весом
type ExamQuestion struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	ExamID     uint     `gorm:"not null;uniqueIndex:idx_exam_question" json:"exam_id"`
	QuestionID uint     `gorm:"not null;uniqueIndex:idx_exam_question" json:"question_id"`
	Order      int      `gorm:"column:question_order;not null" json:"order"`
	Weightage  float64  `gorm:"type:numeric(8,2);not null" json:"weightage"`
	Question   Question `gorm:"foreignKey:QuestionID" json:"question"`
}

// TableName определяет имя таблицы для GORM
func (ExamQuestion) TableName() string {
	return "exam_questions"
}
