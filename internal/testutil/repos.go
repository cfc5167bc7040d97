// Package testutil 提供测试使用的内存实现。
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dentgo-go/internal/model"

	"gorm.io/gorm"
)

// UserRepo 是 repository.UserRepository 的内存实现。
type UserRepo struct {
	mu     sync.Mutex
	nextID uint
	Users  map[uint]*model.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{Users: map[uint]*model.User{}}
}

func (r *UserRepo) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	cp := *user
	r.Users[user.ID] = &cp
	return nil
}

func (r *UserRepo) Update(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	r.Users[user.ID] = &cp
	return nil
}

func (r *UserRepo) FindByID(userID uint) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) FindByEmail(email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *UserRepo) FindByGoogleSubject(sub string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.GoogleSubject != nil && *u.GoogleSubject == sub })
}

func (r *UserRepo) FindByAppleSubject(sub string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.AppleSubject != nil && *u.AppleSubject == sub })
}

func (r *UserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *UserRepo) FindAllIDs() ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint, 0, len(r.Users))
	for id := range r.Users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *UserRepo) Delete(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Users, userID)
	return nil
}

// ChatRepo 是 repository.ChatRepository 的内存实现。
type ChatRepo struct {
	mu        sync.Mutex
	nextID    uint
	nextMsgID uint
	Sessions  map[uint]*model.ChatSession
	clock     time.Time
}

func NewChatRepo() *ChatRepo {
	return &ChatRepo{Sessions: map[uint]*model.ChatSession{}, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *ChatRepo) CreateSession(session *model.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	if session.StartedAt.IsZero() {
		r.clock = r.clock.Add(time.Minute)
		session.StartedAt = r.clock
	}
	cp := *session
	cp.Messages = nil
	r.Sessions[session.ID] = &cp
	return nil
}

func (r *ChatRepo) FindSession(sessionID uint) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.Messages = append([]model.ChatMessage(nil), s.Messages...)
	return &cp, nil
}

func (r *ChatRepo) ListSessions(userID uint) ([]model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ChatSession
	for _, s := range r.Sessions {
		if s.UserID == userID {
			cp := *s
			cp.Messages = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (r *ChatRepo) AddMessages(messages ...*model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range messages {
		s, ok := r.Sessions[m.SessionID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		r.nextMsgID++
		m.ID = r.nextMsgID
		r.clock = r.clock.Add(time.Second)
		m.CreatedAt = r.clock
		s.Messages = append(s.Messages, *m)
	}
	return nil
}

func (r *ChatRepo) EndSession(sessionID uint, title *string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.EndedAt = &endedAt
	if title != nil {
		t := *title
		s.Title = &t
	}
	return nil
}

// CardRepo 是 repository.CardRepository 的内存实现。
type CardRepo struct {
	mu    sync.Mutex
	Cards []model.Card
}

func NewCardRepo() *CardRepo { return &CardRepo{} }

func (r *CardRepo) Create(card *model.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cards = append(r.Cards, *card)
	return nil
}

func (r *CardRepo) ListByUser(userID uint) ([]model.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Card
	for _, c := range r.Cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CardRepo) FindByID(cardID string) (*model.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Cards {
		if c.ID == cardID {
			cp := c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *CardRepo) Delete(cardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.Cards {
		if c.ID == cardID {
			r.Cards = append(r.Cards[:i], r.Cards[i+1:]...)
			return nil
		}
	}
	return nil
}

// NotificationRepo 是 repository.NotificationRepository 的内存实现。
type NotificationRepo struct {
	mu     sync.Mutex
	nextID uint
	Items  []model.Notification
}

func NewNotificationRepo() *NotificationRepo { return &NotificationRepo{} }

func (r *NotificationRepo) CreateBatch(list []*model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range list {
		r.nextID++
		n.ID = r.nextID
		r.Items = append(r.Items, *n)
	}
	return nil
}

func (r *NotificationRepo) ListByUser(userID uint) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for i := len(r.Items) - 1; i >= 0; i-- {
		if r.Items[i].UserID == userID {
			out = append(out, r.Items[i])
		}
	}
	return out, nil
}

func (r *NotificationRepo) MarkSeen(userID, notificationID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Items {
		if r.Items[i].ID == notificationID && r.Items[i].UserID == userID {
			r.Items[i].Seen = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// XRayRepo 是 repository.XRayRepository 的内存实现。
type XRayRepo struct {
	mu      sync.Mutex
	nextID  uint
	Uploads []model.XRayUpload
}

func NewXRayRepo() *XRayRepo { return &XRayRepo{} }

func (r *XRayRepo) Create(upload *model.XRayUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	upload.ID = r.nextID
	r.Uploads = append(r.Uploads, *upload)
	return nil
}

func (r *XRayRepo) ListByUser(userID uint) ([]model.XRayUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.XRayUpload
	for _, u := range r.Uploads {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	return out, nil
}

// UsageRepo 是 repository.UsageRepository 的内存实现。
type UsageRepo struct {
	mu     sync.Mutex
	Counts map[string]int64
	Err    error
}

func NewUsageRepo() *UsageRepo { return &UsageRepo{Counts: map[string]int64{}} }

func usageKey(userID uint, date string) string {
	return fmt.Sprintf("%d:%s", userID, date)
}

func (r *UsageRepo) Incr(_ context.Context, userID uint, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	r.Counts[usageKey(userID, date)]++
	return r.Counts[usageKey(userID, date)], nil
}

func (r *UsageRepo) Get(_ context.Context, userID uint, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	return r.Counts[usageKey(userID, date)], nil
}

// Set 直接设置某天的计数。
func (r *UsageRepo) Set(userID uint, date string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[usageKey(userID, date)] = n
}

// Blacklist 是 repository.TokenBlacklist 的内存实现。
type Blacklist struct {
	mu  sync.Mutex
	IDs map[string]time.Duration
	// Err 非 nil 时 Add 返回该错误
	Err error
}

func NewBlacklist() *Blacklist { return &Blacklist{IDs: map[string]time.Duration{}} }

func (b *Blacklist) Add(_ context.Context, tokenID string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.IDs[tokenID] = ttl
	return nil
}

func (b *Blacklist) Contains(_ context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.IDs[tokenID]
	return ok, nil
}
