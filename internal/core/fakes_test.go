package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pregnancy-guide-go/internal/db"
	"pregnancy-guide-go/internal/identity"
	"pregnancy-guide-go/internal/models"
)

var testNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

// fakeSession delivers session changes synchronously.
type fakeSession struct {
	mu         sync.Mutex
	cb         func(*identity.User)
	current    *identity.User
	signInUser *identity.User
	authErr    error
	resetErr   error
	subscribes int
}

func (f *fakeSession) Subscribe(cb func(*identity.User)) func() {
	f.mu.Lock()
	f.cb = cb
	f.subscribes++
	cur := f.current
	f.mu.Unlock()
	cb(cur)
	return func() {
		f.mu.Lock()
		f.cb = nil
		f.mu.Unlock()
	}
}

func (f *fakeSession) emit(u *identity.User) {
	f.mu.Lock()
	f.current = u
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(u)
	}
}

func (f *fakeSession) SignUp(ctx context.Context, email, password string) error {
	return f.SignIn(ctx, email, password)
}

func (f *fakeSession) SignIn(context.Context, string, string) error {
	f.mu.Lock()
	err, user := f.authErr, f.signInUser
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.emit(user)
	return nil
}

func (f *fakeSession) SignOut(context.Context) error {
	f.mu.Lock()
	err := f.authErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.emit(nil)
	return nil
}

func (f *fakeSession) SendPasswordReset(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetErr == nil, f.resetErr
}

func (f *fakeSession) setAuthErr(err error) {
	f.mu.Lock()
	f.authErr = err
	f.mu.Unlock()
}

// fakeRepo records calls and injects failures around a real in-memory repository.
type fakeRepo struct {
	*db.MemoryProfileRepository

	mu              sync.Mutex
	fetchCalls      int
	ensureCalls     int
	checklistWrites [][]models.ChecklistItem
	fetchErr        error
	writeErr        error
	skipEnsure      bool
	gates           map[string]chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		MemoryProfileRepository: db.NewMemoryProfileRepository(),
		gates:                   make(map[string]chan struct{}),
	}
}

func (r *fakeRepo) Fetch(ctx context.Context, userID string) (*models.ProfileDocument, error) {
	r.mu.Lock()
	r.fetchCalls++
	err := r.fetchErr
	gate := r.gates[userID]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return r.MemoryProfileRepository.Fetch(ctx, userID)
}

func (r *fakeRepo) EnsureDocument(ctx context.Context, userID, email string) error {
	r.mu.Lock()
	r.ensureCalls++
	skip := r.skipEnsure
	r.mu.Unlock()
	if skip {
		return nil
	}
	return r.MemoryProfileRepository.EnsureDocument(ctx, userID, email)
}

func (r *fakeRepo) WriteChecklist(ctx context.Context, userID string, items []models.ChecklistItem) error {
	r.mu.Lock()
	r.checklistWrites = append(r.checklistWrites, append([]models.ChecklistItem{}, items...))
	err := r.writeErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryProfileRepository.WriteChecklist(ctx, userID, items)
}

func (r *fakeRepo) AddFavorite(ctx context.Context, userID, articleID string) error {
	if err := r.failure(); err != nil {
		return err
	}
	return r.MemoryProfileRepository.AddFavorite(ctx, userID, articleID)
}

func (r *fakeRepo) RemoveFavorite(ctx context.Context, userID, articleID string) error {
	if err := r.failure(); err != nil {
		return err
	}
	return r.MemoryProfileRepository.RemoveFavorite(ctx, userID, articleID)
}

func (r *fakeRepo) WriteDueDate(ctx context.Context, userID string, due *time.Time) error {
	if err := r.failure(); err != nil {
		return err
	}
	return r.MemoryProfileRepository.WriteDueDate(ctx, userID, due)
}

func (r *fakeRepo) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErr
}

func (r *fakeRepo) setWriteErr(err error) {
	r.mu.Lock()
	r.writeErr = err
	r.mu.Unlock()
}

func (r *fakeRepo) setFetchErr(err error) {
	r.mu.Lock()
	r.fetchErr = err
	r.mu.Unlock()
}

func (r *fakeRepo) gate(userID string) chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[userID] = ch
	r.mu.Unlock()
	return ch
}

func (r *fakeRepo) counts() (fetches, ensures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchCalls, r.ensureCalls
}

func (r *fakeRepo) writes() [][]models.ChecklistItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]models.ChecklistItem(nil), r.checklistWrites...)
}

// stepClock returns testNow and advances one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock { return &stepClock{now: testNow} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

type storeFixture struct {
	store   *Store
	session *fakeSession
	repo    *fakeRepo
}

func newFixture(t *testing.T, debounce time.Duration) *storeFixture {
	t.Helper()
	f := &storeFixture{session: &fakeSession{}, repo: newFakeRepo()}
	f.store = NewStore(Options{
		Session:           f.session,
		Profiles:          f.repo,
		ChecklistDebounce: debounce,
		RemoteTimeout:     time.Second,
		Now:               newStepClock().Now,
	})
	require.NoError(t, f.store.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.store.Close(ctx)
	})
	return f
}

// signIn emits user u1 and waits until the profile is loaded.
func (f *storeFixture) signIn(t *testing.T) {
	t.Helper()
	f.session.emit(&identity.User{ID: "u1", Email: "a@b.com"})
	waitFor(t, func() bool { return f.store.State().Profile.LoadStatus == ProfileLoaded })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
