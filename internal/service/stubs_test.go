package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/tutorconnect-api/internal/model"
	"github.com/iliyamo/tutorconnect-api/internal/queue"
	"github.com/iliyamo/tutorconnect-api/internal/repository"
)

// memStore is an in-memory BookingStore that enforces the active-slot
// uniqueness the way the bookings unique key does.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]*model.Booking
	users map[string]model.User
	now   func() time.Time

	block       bool // Insert/FindByID wait for ctx cancellation
	insertDelay time.Duration
	err         error
}

func newMemStore(users map[string]model.User) *memStore {
	var tick int64
	return &memStore{
		rows:  map[string]*model.Booking{},
		users: users,
		now: func() time.Time {
			n := atomic.AddInt64(&tick, 1)
			return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Second)
		},
	}
}

func sameSlot(b *model.Booking, key model.SlotKey) bool {
	return b.TutorID == key.TutorID && b.Date.Equal(key.Date) && b.TimeSlot == key.Slot
}

func (m *memStore) FindActiveConflict(ctx context.Context, key model.SlotKey) (*model.Booking, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.Status.Active() && sameSlot(b, key) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(ctx context.Context, b *model.Booking) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.err != nil {
		return m.err
	}
	if m.insertDelay > 0 {
		time.Sleep(m.insertDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.SlotKey{TutorID: b.TutorID, Date: b.Date, Slot: b.TimeSlot}
	for _, existing := range m.rows {
		if existing.Status.Active() && sameSlot(existing, key) {
			return repository.ErrConflict
		}
	}
	if _, dup := m.rows[b.ID]; dup {
		return fmt.Errorf("duplicate id %s", b.ID)
	}
	now := m.now()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != patch.ExpectedStatus {
		return nil, repository.ErrConflict
	}
	b.Status = patch.Status
	if patch.MeetingLink != nil {
		l := *patch.MeetingLink
		b.MeetingDetails.Link = &l
	}
	b.UpdatedAt = m.now()
	cp := *b
	return &cp, nil
}

func (m *memStore) QueryByParticipant(ctx context.Context, userID string, f model.BookingFilter) ([]model.BookingSummary, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*model.Booking
	for _, b := range m.rows {
		if b.StudentID != userID && b.TutorID != userID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	out := make([]model.BookingSummary, 0, end-start)
	for _, b := range matched[start:end] {
		out = append(out, model.BookingSummary{
			ID:          b.ID,
			Tutor:       model.Party{ID: b.TutorID, Name: m.users[b.TutorID].FullName()},
			Student:     model.Party{ID: b.StudentID, Name: m.users[b.StudentID].FullName()},
			Subject:     b.Subject,
			Date:        b.DateString(),
			Time:        b.TimeSlot.String(),
			Status:      b.Status,
			MeetingLink: b.MeetingDetails.Link,
			CreatedAt:   b.CreatedAt,
		})
	}
	return out, total, nil
}

func (m *memStore) ListByStudent(ctx context.Context, studentID string) ([]model.Booking, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.rows {
		if b.StudentID == studentID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) put(b model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[b.ID] = &b
}

func (m *memStore) activeCount(key model.SlotKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.rows {
		if b.Status.Active() && sameSlot(b, key) {
			n++
		}
	}
	return n
}

type userDirectoryStub struct {
	users map[string]model.User
	err   error
}

func (u *userDirectoryStub) FindByID(ctx context.Context, id string) (model.User, error) {
	if u.err != nil {
		return model.User{}, u.err
	}
	usr, ok := u.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return usr, nil
}

type notifierStub struct {
	mu   sync.Mutex
	sent []queue.Notification
	err  error
}

func (n *notifierStub) Send(ctx context.Context, msg queue.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *notifierStub) messages() []queue.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]queue.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

type lockerStub struct {
	held bool
	err  error

	mu       sync.Mutex
	attempts int
}

func (l *lockerStub) Acquire(ctx context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	l.attempts++
	l.mu.Unlock()
	if l.err != nil {
		return func() {}, false, l.err
	}
	if l.held {
		return func() {}, false, nil
	}
	return func() {}, true, nil
}

func sequentialIDs(prefix string) func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("%s-%03d", prefix, atomic.AddInt64(&n, 1))
	}
}

func fixtureUsers() map[string]model.User {
	return map[string]model.User{
		"student-1": {ID: "student-1", Email: "ana@example.com", FirstName: "Ana", LastName: "Silva", Role: model.RoleStudent, IsActive: true},
		"student-2": {ID: "student-2", Email: "ben@example.com", FirstName: "Ben", LastName: "Okafor", Role: model.RoleStudent, IsActive: true},
		"tutor-1":   {ID: "tutor-1", Email: "tom@example.com", FirstName: "Tom", LastName: "Reyes", Role: model.RoleTutor, IsActive: true},
		"tutor-2":   {ID: "tutor-2", Email: "uma@example.com", FirstName: "Uma", LastName: "Patel", Role: model.RoleTutor, IsActive: true},
		"tutor-3":   {ID: "tutor-3", Email: "ivy@example.com", FirstName: "Ivy", LastName: "Stone", Role: model.RoleTutor},
	}
}

func strPtr(s string) *string { return &s }

func mustDate(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}
