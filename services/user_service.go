package services

import (
	"context"
	"pick-roll/domain"
	"pick-roll/repositories"
)

type IUserService interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
}

type UserService struct {
	users repositories.IUserRepository
}

func NewUserService(users repositories.IUserRepository) *UserService {
	return &UserService{users: users}
}

// GetProfile returns ErrNotFound for unknown users.
func (s *UserService) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.users.GetProfile(ctx, userID)
}
