package repositories

import (
	"context"
	"fmt"
	"hive-chat/contract"
	"hive-chat/domain"
	"hive-chat/errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.IUserDirectory = (*UserRepository)(nil)

const (
	userPrefix      = "user:"
	userEmailPrefix = "idx:user-email:"
)

// UserRepository is the embedded user directory.
// Accounts are normally provisioned by the account subsystem; CreateUser exists for
// administration and tests.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser persists a user and returns it with its generated ID.
// Emails are unique, case-insensitively.
func (u *UserRepository) CreateUser(ctx context.Context, username, email string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
	}
	emailKey := []byte(userEmailPrefix + strings.ToLower(email))

	err := u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(userPrefix+user.ID), marshalUser(user))
	})
	if err == errors.ErrUserAlreadyExists {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return user, nil
}

// ListUsers returns every user except excludeID, when set.
func (u *UserRepository) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0)
	prefix := []byte(userPrefix)
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				user, err := unmarshalUser(value)
				if err != nil {
					return err
				}
				if excludeID == "" || user.ID != excludeID {
					users = append(users, user)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return users, nil
}
