package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("user with this username already exists")
	ErrEmailExists    = errors.New("user with this email already exists")
)

// User представляет структуру данных пользователя.
// Username и Email фиксируются при создании и дальше не меняются.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Address   string    `json:"address,omitempty" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ContactUpdate - изменяемая часть профиля.
type ContactUpdate struct {
	FirstName string
	LastName  string
	Phone     string
	Address   string
}
