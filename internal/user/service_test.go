package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-core/internal/user"
)

type mockRepository struct {
	createFunc        func(ctx context.Context, u *user.User) (*user.User, error)
	getByIDFunc       func(ctx context.Context, id int64) (*user.User, error)
	getByEmailFunc    func(ctx context.Context, email string) (*user.User, error)
	existsByIDFunc    func(ctx context.Context, id int64) (bool, error)
	updateContactFunc func(ctx context.Context, id int64, contact user.ContactUpdate) (*user.User, error)
	deleteFunc        func(ctx context.Context, id int64) error
	listFunc          func(ctx context.Context, limit, offset int) ([]user.User, error)
}

func (m *mockRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	return m.createFunc(ctx, u)
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return m.existsByIDFunc(ctx, id)
}

func (m *mockRepository) UpdateContact(ctx context.Context, id int64, contact user.ContactUpdate) (*user.User, error) {
	return m.updateContactFunc(ctx, id, contact)
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockRepository) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	return m.listFunc(ctx, limit, offset)
}

func TestService_CreateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, u *user.User) (*user.User, error) {
				created := *u
				created.ID = 1
				return &created, nil
			},
		}
		svc := user.NewService(repo)

		created, err := svc.CreateUser(context.Background(), &user.User{Username: "ivan", Email: "ivan@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "ivan", created.Username)
	})

	t.Run("rejects_invalid_input", func(t *testing.T) {
		testCases := []struct {
			name     string
			username string
			email    string
		}{
			{name: "empty_username", username: "  ", email: "ivan@example.com"},
			{name: "empty_email", username: "ivan", email: ""},
			{name: "email_without_at", username: "ivan", email: "ivan.example.com"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				svc := user.NewService(&mockRepository{})

				_, err := svc.CreateUser(context.Background(), &user.User{Username: tc.username, Email: tc.email})
				assert.Error(t, err)
			})
		}
	})

	t.Run("duplicate_username", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, u *user.User) (*user.User, error) {
				return nil, user.ErrUsernameExists
			},
		}
		svc := user.NewService(repo)

		_, err := svc.CreateUser(context.Background(), &user.User{Username: "ivan", Email: "ivan@example.com"})
		assert.ErrorIs(t, err, user.ErrUsernameExists)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, u *user.User) (*user.User, error) {
				return nil, user.ErrEmailExists
			},
		}
		svc := user.NewService(repo)

		_, err := svc.CreateUser(context.Background(), &user.User{Username: "ivan", Email: "ivan@example.com"})
		assert.ErrorIs(t, err, user.ErrEmailExists)
	})
}

func TestService_GetUserByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id int64) (*user.User, error) {
				return &user.User{ID: id, Username: "ivan"}, nil
			},
		}
		svc := user.NewService(repo)

		u, err := svc.GetUserByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "ivan", u.Username)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id int64) (*user.User, error) {
				return nil, user.ErrNotFound
			},
		}
		svc := user.NewService(repo)

		_, err := svc.GetUserByID(context.Background(), 99)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("repository_error_wrapped", func(t *testing.T) {
		repoErr := errors.New("connection reset")
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id int64) (*user.User, error) {
				return nil, repoErr
			},
		}
		svc := user.NewService(repo)

		_, err := svc.GetUserByID(context.Background(), 1)
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestService_ListUsers(t *testing.T) {
	t.Run("passes_pagination_through", func(t *testing.T) {
		var gotLimit, gotOffset int
		repo := &mockRepository{
			listFunc: func(ctx context.Context, limit, offset int) ([]user.User, error) {
				gotLimit, gotOffset = limit, offset
				return []user.User{{ID: 1, Username: "ivan"}, {ID: 2, Username: "petr"}}, nil
			},
		}
		svc := user.NewService(repo)

		users, err := svc.ListUsers(context.Background(), 25, 50)
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Equal(t, 25, gotLimit)
		assert.Equal(t, 50, gotOffset)
	})

	t.Run("repository_error_wrapped", func(t *testing.T) {
		repoErr := errors.New("connection reset")
		repo := &mockRepository{
			listFunc: func(ctx context.Context, limit, offset int) ([]user.User, error) {
				return nil, repoErr
			},
		}
		svc := user.NewService(repo)

		_, err := svc.ListUsers(context.Background(), 100, 0)
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestService_UpdateContact(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := &mockRepository{
			updateContactFunc: func(ctx context.Context, id int64, contact user.ContactUpdate) (*user.User, error) {
				return &user.User{ID: id, Username: "ivan", Phone: contact.Phone, Address: contact.Address}, nil
			},
		}
		svc := user.NewService(repo)

		u, err := svc.UpdateContact(context.Background(), 1, user.ContactUpdate{Phone: "+79990001122", Address: "Lenina 1"})
		require.NoError(t, err)
		assert.Equal(t, "+79990001122", u.Phone)
		assert.Equal(t, "Lenina 1", u.Address)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &mockRepository{
			updateContactFunc: func(ctx context.Context, id int64, contact user.ContactUpdate) (*user.User, error) {
				return nil, user.ErrNotFound
			},
		}
		svc := user.NewService(repo)

		_, err := svc.UpdateContact(context.Background(), 99, user.ContactUpdate{})
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func TestService_DeleteUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var deletedID int64
		repo := &mockRepository{
			deleteFunc: func(ctx context.Context, id int64) error {
				deletedID = id
				return nil
			},
		}
		svc := user.NewService(repo)

		err := svc.DeleteUser(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deletedID)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &mockRepository{
			deleteFunc: func(ctx context.Context, id int64) error {
				return user.ErrNotFound
			},
		}
		svc := user.NewService(repo)

		err := svc.DeleteUser(context.Background(), 99)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}
