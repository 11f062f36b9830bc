package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	checkDB(db)
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string) error {
	defer repo.db.read(ctx)()

	for _, usr := range repo.db.user.table {
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	usr.Roles = copyStrings(usr.Roles)
	stored := usr
	repo.db.user.table[usr.ID] = &stored
	onUndo(func() { delete(repo.db.user.table, usr.ID) })
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	defer repo.db.read(ctx)()

	if filter.ID != "" {
		if usr, ok := repo.db.user.table[filter.ID]; ok {
			return copyUser(*usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.UsernameOrEmail != "" {
		for _, usr := range repo.db.user.table {
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return copyUser(*usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func copyUser(usr user.User) user.User {
	usr.Roles = copyStrings(usr.Roles)
	return usr
}
