package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type Service interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	UpdateContact(ctx context.Context, id int64, contact ContactUpdate) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateUser(ctx context.Context, user *User) (*User, error) {
	if strings.TrimSpace(user.Username) == "" {
		return nil, errors.New("service: username is required")
	}
	if strings.TrimSpace(user.Email) == "" || !strings.Contains(user.Email, "@") {
		return nil, errors.New("service: valid email is required")
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, ErrUsernameExists) || errors.Is(err, ErrEmailExists) {
			log.Warn().Err(err).Str("username", user.Username).Msg("service: duplicate user identity")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to create user: %w", err)
	}

	log.Info().Int64("user_id", created.ID).Msg("service: user created")
	return created, nil
}

func (s *service) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Int64("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id %d: %w", id, err)
	}
	return u, nil
}

func (s *service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("service: failed to get user by email")
		return nil, fmt.Errorf("service: failed to get user by email: %w", err)
	}
	return u, nil
}

func (s *service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}

func (s *service) UpdateContact(ctx context.Context, id int64, contact ContactUpdate) (*User, error) {
	u, err := s.repo.UpdateContact(ctx, id, contact)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Int64("user_id", id).Msg("service: failed to update user contact")
		return nil, fmt.Errorf("service: failed to update user %d: %w", id, err)
	}
	return u, nil
}

func (s *service) DeleteUser(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Int64("user_id", id).Msg("service: failed to delete user")
		return fmt.Errorf("service: failed to delete user %d: %w", id, err)
	}
	return nil
}
