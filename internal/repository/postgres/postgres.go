package postgres

import (
	"database/sql"

	"rentflow-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.OrderRepository
	repository.LateFeePolicyRepository
	repository.NotificationRepository
	repository.ReminderLogRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                      db,
		OrderRepository:         NewOrderRepository(db),
		LateFeePolicyRepository: NewLateFeePolicyRepository(db),
		NotificationRepository:  NewNotificationRepository(db),
		ReminderLogRepository:   NewReminderLogRepository(db),
	}
}
