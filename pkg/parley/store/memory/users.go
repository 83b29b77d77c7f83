package memory

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/result"
)

// Directory is an in-process user directory, seeded from configuration.
// It serves deployments and tests that have no remote user service.
type Directory struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewDirectory(users ...model.User) *Directory {
	d := &Directory{users: make(map[string]model.User, len(users))}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

// Put adds or replaces a user.
func (d *Directory) Put(user model.User) {
	if user.Role == "" {
		user.Role = model.UserRoleUser
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *Directory) GetUserByID(ctx context.Context, userID string) result.Result {
	if err := ctx.Err(); err != nil {
		return result.FromError("Failed to fetch user by id: ", err)
	}

	d.mu.RLock()
	user, ok := d.users[userID]
	d.mu.RUnlock()

	if !ok {
		return result.Failure(http.StatusNotFound, "User not found")
	}
	return result.OK("User found", user)
}

// IDs returns every known user id, sorted.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
