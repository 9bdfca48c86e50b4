// Package store implements the engine's persistence interfaces on top of
// gorm/Postgres. Every guarded write is a single conditional statement so
// overlapping runs and concurrent user commands cannot produce lost updates.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"reachflow/models"
)

// Store is the gorm-backed implementation of all engine store interfaces.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetUser resolves a campaign owner.
func (s *Store) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
