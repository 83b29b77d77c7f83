// Package memory implements the repository interfaces in process memory.
//
// Store keeps three collections: chats, each user's chat links, and one
// message log per chat. Operations spanning collections are applied step by
// step and undone with compensating deletes when a later step fails, so no
// stronger guarantee than that is offered.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

// Store implements repository.ChatRepository, repository.MessageRepository
// and repository.MembershipChecker.
type Store struct {
	logger *zap.Logger
	users  repository.UserDirectory
	now    func() time.Time
	newID  func() string

	// fault, when set, is consulted before each step of a multi-step write
	// and aborts the step if it returns an error.
	fault func(step string) error

	mu          sync.RWMutex
	chats       map[string]model.Chat
	memberships map[string][]model.UserInChat
	logs        map[string][]model.Message
}

var (
	_ repository.ChatRepository    = (*Store)(nil)
	_ repository.MessageRepository = (*Store)(nil)
	_ repository.MembershipChecker = (*Store)(nil)
)

func NewStore(users repository.UserDirectory, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		logger:      logger,
		users:       users,
		now:         time.Now,
		newID:       uuid.NewString,
		chats:       make(map[string]model.Chat),
		memberships: make(map[string][]model.UserInChat),
		logs:        make(map[string][]model.Message),
	}
}

// WithClock replaces the time source used for join timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// IsMember reports whether userID has a link to chatID.
func (s *Store) IsMember(ctx context.Context, userID, chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isMemberLocked(userID, chatID)
}

func (s *Store) isMemberLocked(userID, chatID string) bool {
	for _, link := range s.memberships[userID] {
		if link.ChatID == chatID {
			return true
		}
	}
	return false
}

func (s *Store) step(name string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(name)
}

// guard runs op and converts a cancelled context or a panic into the 400
// result callers expect for unexpected failures.
func guard(ctx context.Context, prefix string, op func() result.Result) (r result.Result) {
	if err := ctx.Err(); err != nil {
		return result.FromError(prefix, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r = result.FromError(prefix, fmt.Errorf("%v", rec))
		}
	}()

	return op()
}

// metadataFor looks up every id, in order. It returns false if any user is
// unknown.
func (s *Store) metadataFor(ctx context.Context, ids []string) ([]model.UserMetadata, bool) {
	users := make([]model.UserMetadata, 0, len(ids))
	for _, id := range ids {
		md, ok := repository.LookupMetadata(ctx, s.users, id)
		if !ok {
			return nil, false
		}
		users = append(users, md)
	}
	return users, true
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func cloneChat(c model.Chat) model.Chat {
	c.Users = append([]model.UserMetadata(nil), c.Users...)
	return c
}
