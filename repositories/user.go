package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"cinelive/domain"
	"cinelive/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// User is the stored account record; PasswordHash is the encoded
// argon2id form, never the raw password.
type User struct {
	ID           domain.UserID `json:"id"`
	Email        string        `json:"email"`
	DisplayName  string        `json:"display_name"`
	PasswordHash string        `json:"password_hash"`
	CreatedAt    time.Time     `json:"created_at"`
}

type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) UserRepository {
	return UserRepository{db: db, log: log}
}

// CreateUser fails with ErrEmailTaken when the email already exists.
func (u UserRepository) CreateUser(email, displayName, passwordHash string) (User, error) {
	user := User{
		ID:           domain.UserID(uuid.NewString()),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	bytes, err := json.Marshal(user)
	if err != nil {
		return User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := []byte(userKey(email))
		if _, err := txn.Get(key); err == nil {
			return errors.ErrEmailTaken
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u UserRepository) GetByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKey(email)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func userKey(email string) string {
	return fmt.Sprintf("user:%s", email)
}
