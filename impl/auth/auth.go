package auth

import (
	"errors"
	"fmt"

	"docspace/entity"
)

var ErrUnknownToken = errors.New("unknown token")

type Database interface {
	GetUser(token string) (*entity.User, error)
}

// Auth resolves bearer tokens to users. Users from the config file are
// checked first, then the database if one is connected.
type Auth struct {
	db    Database
	users map[string]*entity.User
}

func New(db Database, users []*entity.User) *Auth {
	a := &Auth{
		db:    db,
		users: make(map[string]*entity.User, len(users)),
	}
	for _, u := range users {
		if u == nil || u.Token == "" {
			continue
		}
		a.users[u.Token] = u
	}
	return a
}

func (a *Auth) UserByToken(token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	if user, ok := a.users[token]; ok {
		cp := *user
		return &cp, nil
	}
	if a.db == nil {
		return nil, ErrUnknownToken
	}
	user, err := a.db.GetUser(token)
	if err != nil {
		return nil, fmt.Errorf("user by token: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownToken
	}
	return user, nil
}
