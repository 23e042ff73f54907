package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor выполняет fn в одной транзакции БД.
// Ошибка из fn откатывает транзакцию, nil фиксирует ее.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LockMode режим блокировки строки при чтении
type LockMode int

const (
	LockNone LockMode = iota
	// LockShare блокирует строку от изменения, но разрешает параллельное чтение с той же блокировкой
	LockShare
	// LockUpdate дает эксклюзивную блокировку строки до конца транзакции
	LockUpdate
)
