package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Store реализует интерфейс Storage в памяти.
// Наружу отдаются только копии, поэтому читатели не видят чужих незавершенных изменений.
type Store struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	posts map[string]*domain.Post
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users: make(map[string]*domain.User),
		posts: make(map[string]*domain.Post),
	}
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.PendingBreakdown == nil {
		user.PendingBreakdown = []domain.RewardEntry{}
	}
	s.users[user.ID] = user.Clone()
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result[id] = u.Clone()
		}
	}
	return result, nil
}

func (s *Store) GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*domain.User{}, nil
	}
	end := min(offset+limit, len(all))
	return lo.Map(all[offset:end], func(u *domain.User, _ int) *domain.User { return u.Clone() }), nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	post.Version = 1
	s.posts[post.ID] = post.Clone()
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return post.Clone(), nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allPosts := s.sortedPosts()

	start := offset
	if start >= len(allPosts) {
		return []*domain.Post{}, nil
	}
	end := start + limit
	if end > len(allPosts) {
		end = len(allPosts)
	}

	page := make([]*domain.Post, 0, end-start)
	for _, p := range allPosts[start:end] {
		page = append(page, p.Clone())
	}
	return page, nil
}

func (s *Store) GetRandomPosts(ctx context.Context, limit int) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	picked := lo.Samples(lo.Values(s.posts), limit)
	return lo.Map(picked, func(p *domain.Post, _ int) *domain.Post { return p.Clone() }), nil
}

func (s *Store) GetDuePosts(ctx context.Context, now time.Time) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.Post
	for _, p := range s.sortedPosts() {
		if next := p.NextPayoutAt(); next != nil && !next.After(now) {
			due = append(due, p.Clone())
		}
	}
	return due, nil
}

// sortedPosts - посты от новых к старым, вызывать под блокировкой.
func (s *Store) sortedPosts() []*domain.Post {
	allPosts := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		allPosts = append(allPosts, p)
	}
	sort.Slice(allPosts, func(i, j int) bool {
		if allPosts[i].CreatedAt.Equal(allPosts[j].CreatedAt) {
			return allPosts[i].ID < allPosts[j].ID
		}
		return allPosts[i].CreatedAt.After(allPosts[j].CreatedAt)
	})
	return allPosts
}

// === Write Methods ===

func (s *Store) SavePost(ctx context.Context, post *domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(post); err != nil {
		return err
	}
	s.putPost(post)
	return nil
}

func (s *Store) DeletePost(ctx context.Context, post *domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(post); err != nil {
		return err
	}
	delete(s.posts, post.ID)
	return nil
}

func (s *Store) CommitTip(ctx context.Context, post *domain.Post, debit storage.Debit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(post); err != nil {
		return err
	}
	sender, ok := s.users[debit.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if sender.Balance.LessThan(debit.Amount) {
		return domain.ErrInsufficientBalance
	}

	sender.Balance = sender.Balance.Sub(debit.Amount)
	s.putPost(post)
	return nil
}

func (s *Store) SettleTarget(ctx context.Context, post *domain.Post, credit *storage.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(post); err != nil {
		return err
	}
	if credit != nil {
		owner, ok := s.users[credit.UserID]
		if !ok {
			return domain.ErrUserNotFound
		}
		entry := credit.Entry
		entry.UserID = credit.UserID
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		owner.PendingRewards = owner.PendingRewards.Add(entry.Amount)
		owner.PendingBreakdown = append(owner.PendingBreakdown, entry)
	}
	s.putPost(post)
	return nil
}

func (s *Store) checkVersion(post *domain.Post) error {
	current, ok := s.posts[post.ID]
	if !ok {
		return domain.ErrPostNotFound
	}
	if current.Version != post.Version {
		return storage.ErrVersionConflict
	}
	return nil
}

func (s *Store) putPost(post *domain.Post) {
	post.Version++
	s.posts[post.ID] = post.Clone()
}
