package users

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
)

var _ UserRepo = (*InMemoryUserRepo)(nil)

// InMemoryUserRepo keeps users in process memory. It backs the local session
// provider in development and single-node deployments.
type InMemoryUserRepo struct {
	users    map[string]*User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

// Users are copied in and out, so callers never share a record with the repo.
func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		users:    make(map[string]*User),
		emailIds: make(map[string]string),
	}
}

// Upsert stores a copy of user, assigning an ID when it has none. An email
// already held by a different user is rejected.
func (ur *InMemoryUserRepo) Upsert(user *User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := normaliseEmail(user.Email)
	if ownerID, ok := ur.emailIds[email]; ok && ownerID != user.ID {
		return apperrors.Wrapf(apperrors.ErrEmailInUse, "[InMemoryUserRepo.Upsert] %s", email)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if previous, ok := ur.users[user.ID]; ok {
		delete(ur.emailIds, normaliseEmail(previous.Email))
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[email] = user.ID
	return nil
}

func (ur *InMemoryUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(ur.emailIds, normaliseEmail(email))
	delete(ur.users, userID)
	return nil
}

func (ur *InMemoryUserRepo) GetByEmail(email string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	found := *ur.users[id]
	return &found, nil
}

func (ur *InMemoryUserRepo) GetByID(id string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	found := *user
	return &found, nil
}

// List returns users ordered by ID. A limit of zero or less returns everything after offset.
func (ur *InMemoryUserRepo) List(offset, limit int) ([]*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*User, 0, len(ur.users))
	for _, v := range ur.users {
		u := *v
		userList = append(userList, &u)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(userList) {
		return []*User{}, nil
	}
	end := len(userList)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return userList[offset:end], nil
}

func (ur *InMemoryUserRepo) SetBlocked(email string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return apperrors.ErrNotFound
	}
	ur.users[id].Blocked = blocked
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
