package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// KeyValueStore is the subset of the Redis client the services rely on.
// *redis.Client satisfies it.
type KeyValueStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// UserStore loads users for authentication.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// ExamStore loads exam definitions.
type ExamStore interface {
	GetExamByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListActive(ctx context.Context) ([]model.Exam, error)
}

// ResultHistory lists stored results.
type ResultHistory interface {
	ListByStudent(ctx context.Context, studentID int) ([]model.ResultSummary, error)
}
