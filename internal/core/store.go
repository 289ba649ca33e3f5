// Package core holds the client state store: the single source of truth for
// the signed-in session and its synchronized profile.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pregnancy-guide-go/internal/db"
	"pregnancy-guide-go/internal/identity"
	"pregnancy-guide-go/internal/metrics"
	"pregnancy-guide-go/internal/models"
)

// SessionSource is the identity session boundary. *identity.Adapter satisfies it.
type SessionSource interface {
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) (bool, error)
	Subscribe(onChange func(*identity.User)) (unsubscribe func())
}

// Options configures a Store.
type Options struct {
	Session  SessionSource
	Profiles db.ProfileRepository
	Logger   *zap.Logger
	Metrics  metrics.Recorder

	// ChecklistDebounce is the quiet period before a checklist write.
	ChecklistDebounce time.Duration
	// RemoteTimeout bounds every background fetch and write.
	RemoteTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

const (
	defaultChecklistDebounce = 1500 * time.Millisecond
	defaultRemoteTimeout     = 10 * time.Second
)

// Store is the observable model of Session and Profile. State only changes
// through its methods; each method applies its change atomically and
// observers are notified afterwards with a snapshot.
//
// Profile mutations are optimistic: the snapshot changes before the remote
// write is issued, and a failed write records profileError without undoing
// the change.
type Store struct {
	session  SessionSource
	profiles db.ProfileRepository
	logger   *zap.Logger
	metrics  metrics.Recorder
	timeout  time.Duration
	now      func() time.Time
	newID    func() string

	persist *Debouncer
	writes  *writeQueue

	mu          sync.Mutex
	state       State
	inflight    int
	fetchGen    uint64
	fetchDone   chan struct{} // closed when the current fetch finishes; nil when idle
	started     bool
	closed      bool
	unsubscribe func()

	notifyMu  sync.Mutex
	observers map[uint64]func(State)
	nextObs   uint64
}

// NewStore creates a Store in the (Pending, Idle) state. Call Start to attach
// it to the identity session.
func NewStore(opts Options) *Store {
	s := &Store{
		session:  opts.Session,
		profiles: opts.Profiles,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		timeout:  opts.RemoteTimeout,
		now:      opts.Now,
		newID:    opts.NewID,
		state: State{
			Session: SessionState{Status: AuthPending},
			Profile: emptyProfile(),
		},
		observers: make(map[uint64]func(State)),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultRemoteTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	window := opts.ChecklistDebounce
	if window <= 0 {
		window = defaultChecklistDebounce
	}

	s.persist = NewDebouncer(window, s.timeout, s.profiles.WriteChecklist, s.checklistWritten, s.logger, s.metrics)
	s.writes = newWriteQueue(s.timeout, s.writeDone)
	return s
}

// Start subscribes to the identity session. Calling it again is a no-op.
func (s *Store) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go s.writes.run()
	unsubscribe := s.session.Subscribe(s.onSession)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	s.logger.Info("Store started")
	return nil
}

// Close releases the identity subscription, sends any pending checklist
// payload and waits for queued writes, bounded by ctx. Results that arrive
// afterwards are ignored.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	var errs []error
	if err := s.persist.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush checklist: %w", err))
	}
	s.persist.Stop()
	if started {
		if err := s.writes.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain writes: %w", err))
		}
	}
	s.logger.Info("Store closed")
	return errors.Join(errs...)
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change. fn is
// called from the goroutine that made the change and must not call back into
// the Store's actions.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.observers, id)
		s.notifyMu.Unlock()
	}
}

// CurrentWeek is CurrentGestationalWeek for the stored due date at the current time.
func (s *Store) CurrentWeek() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CurrentGestationalWeek(s.state.Profile.DueDate, s.now())
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Profile = s.state.Profile.clone()
	st.Profile.Syncing = s.inflight > 0 || s.persist.Busy()
	return st
}

// changedLocked bumps the version. Callers publish after unlocking.
func (s *Store) changedLocked() {
	s.state.Version++
}

// publish delivers the latest snapshot to observers. Notifications are
// serialized, so observers never see versions go backwards.
func (s *Store) publish() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if len(s.observers) == 0 {
		return
	}
	st := s.State()
	for _, fn := range s.observers {
		fn(st)
	}
}

// onSession is the identity subscription callback and the only writer of
// the session identity fields.
func (s *Store) onSession(user *identity.User) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if user == nil {
		prev := s.state.Session.UserID
		s.state.Session.UserID = ""
		s.state.Session.Email = ""
		s.state.Session.Status = AuthAnonymous
		s.state.Profile = emptyProfile()
		s.cancelFetchLocked()
		s.changedLocked()
		s.mu.Unlock()

		if prev != "" {
			s.logger.Info("Session ended", zap.String("user_id", prev))
			go s.flushDetached()
		}
		s.publish()
		return
	}

	sameUser := s.state.Session.Status == AuthAuthenticated && s.state.Session.UserID == user.ID
	s.state.Session.UserID = user.ID
	s.state.Session.Email = user.Email
	s.state.Session.Status = AuthAuthenticated
	if sameUser && s.state.Profile.LoadStatus != ProfileIdle {
		// Re-emission of the current user: keep the profile and any fetch in flight.
		s.changedLocked()
		s.mu.Unlock()
		s.publish()
		return
	}

	s.logger.Info("Session started", zap.String("user_id", user.ID))
	s.state.Profile = emptyProfile()
	s.state.Profile.OwnerID = user.ID
	s.startFetchLocked(user.ID, user.Email)
	s.changedLocked()
	s.mu.Unlock()
	s.publish()
}

// flushDetached sends a checklist payload left behind by a session that ended.
func (s *Store) flushDetached() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.persist.Flush(ctx); err != nil {
		s.logger.Warn("Checklist flush after sign-out failed", zap.Error(err))
	}
}

// Refresh re-fetches the current user's profile and waits for the result. A
// fetch already in flight is joined instead of starting another.
func (s *Store) Refresh(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, ErrStoreClosed
	}
	if s.state.Session.Status != AuthAuthenticated {
		s.mu.Unlock()
		return State{}, ErrNotAuthenticated
	}
	done := s.fetchDone
	started := false
	if done == nil {
		s.startFetchLocked(s.state.Session.UserID, s.state.Session.Email)
		s.changedLocked()
		done = s.fetchDone
		started = true
	}
	s.mu.Unlock()
	if started {
		s.publish()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	st := s.State()
	if st.Session.Status != AuthAuthenticated {
		return st, ErrNotAuthenticated
	}
	if st.Profile.LoadStatus == ProfileErrored {
		return st, errors.New(st.Profile.Error)
	}
	return st, nil
}

// startFetchLocked moves the profile to Loading and fetches it in the
// background. Only the newest fetch generation may apply its result.
func (s *Store) startFetchLocked(userID, email string) {
	s.cancelFetchLocked()
	gen := s.fetchGen
	done := make(chan struct{})
	s.fetchDone = done
	s.state.Profile.LoadStatus = ProfileLoading

	go s.fetch(gen, done, userID, email)
}

// cancelFetchLocked makes any fetch in flight stale and releases its waiters.
func (s *Store) cancelFetchLocked() {
	s.fetchGen++
	if s.fetchDone != nil {
		close(s.fetchDone)
		s.fetchDone = nil
	}
}

func (s *Store) fetch(gen uint64, done chan struct{}, userID, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	doc, err := s.loadProfile(ctx, userID, email)

	s.mu.Lock()
	if s.closed || gen != s.fetchGen {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale profile fetch", zap.String("user_id", userID))
		return
	}
	s.fetchDone = nil
	close(done)

	if err != nil {
		s.state.Profile.LoadStatus = ProfileErrored
		s.state.Profile.Error = err.Error()
		if errors.Is(err, ErrProfileMissing) {
			s.logger.Error("Profile missing after provisioning", zap.String("user_id", userID))
		} else {
			s.logger.Warn("Profile fetch failed", zap.String("user_id", userID), zap.Error(err))
		}
	} else {
		s.applyDocumentLocked(doc)
		s.logger.Info("Profile loaded", zap.String("user_id", userID),
			zap.Int("favorites", len(doc.FavoriteArticleIDs)),
			zap.Int("checklist_items", len(doc.ChecklistItems)))
	}
	s.changedLocked()
	s.mu.Unlock()
	s.publish()
}

// loadProfile fetches the document, provisioning it once if it does not exist.
func (s *Store) loadProfile(ctx context.Context, userID, email string) (*models.ProfileDocument, error) {
	doc, err := s.profiles.Fetch(ctx, userID)
	if err == nil {
		s.metrics.RecordProfileFetch(metrics.OutcomeSuccess)
		return doc, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		s.metrics.RecordProfileFetch(metrics.OutcomeFailure)
		return nil, err
	}
	s.metrics.RecordProfileFetch(metrics.OutcomeMissing)

	err = s.profiles.EnsureDocument(ctx, userID, email)
	s.metrics.RecordRemoteWrite(metrics.WriteEnsure, metrics.Outcome(err))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Provisioned profile document", zap.String("user_id", userID))

	doc, err = s.profiles.Fetch(ctx, userID)
	switch {
	case err == nil:
		s.metrics.RecordProfileFetch(metrics.OutcomeSuccess)
		return doc, nil
	case errors.Is(err, db.ErrNotFound):
		s.metrics.RecordProfileFetch(metrics.OutcomeMissing)
		return nil, ErrProfileMissing
	default:
		s.metrics.RecordProfileFetch(metrics.OutcomeFailure)
		return nil, err
	}
}

// applyDocumentLocked replaces the profile fields with the fetched document.
// Whatever completes last wins; there is no versioned merge with local edits.
func (s *Store) applyDocumentLocked(doc *models.ProfileDocument) {
	p := &s.state.Profile
	p.DueDate = nil
	if doc.DueDate != nil {
		d := *doc.DueDate
		p.DueDate = &d
	}
	p.FavoriteArticleIDs = dedupe(doc.FavoriteArticleIDs)
	p.Checklist = sortChecklist(append([]models.ChecklistItem{}, doc.ChecklistItems...))
	p.LoadStatus = ProfileLoaded
	p.Error = ""
}

// requireProfileLocked returns the signed-in user id or why there is none.
func (s *Store) requireProfileLocked() (string, error) {
	if s.closed {
		return "", ErrStoreClosed
	}
	if s.state.Session.Status != AuthAuthenticated {
		return "", ErrNotAuthenticated
	}
	return s.state.Session.UserID, nil
}

// ToggleFavorite adds or removes articleID and reports whether it is now a favorite.
func (s *Store) ToggleFavorite(articleID string) (bool, error) {
	if articleID == "" {
		return false, &ValidationError{Field: "articleId", Message: "must not be empty"}
	}
	s.mu.Lock()
	userID, err := s.requireProfileLocked()
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	p := &s.state.Profile
	favorite := !p.IsFavorite(articleID)
	job := writeJob{userID: userID}
	if favorite {
		p.FavoriteArticleIDs = append(p.FavoriteArticleIDs, articleID)
		job.kind = metrics.WriteFavoriteAdd
		job.run = func(ctx context.Context) error { return s.profiles.AddFavorite(ctx, userID, articleID) }
	} else {
		p.FavoriteArticleIDs = removeID(p.FavoriteArticleIDs, articleID)
		job.kind = metrics.WriteFavoriteRemove
		job.run = func(ctx context.Context) error { return s.profiles.RemoveFavorite(ctx, userID, articleID) }
	}
	s.enqueueLocked(job)
	s.changedLocked()
	s.mu.Unlock()

	s.logger.Info("Favorite toggled", zap.String("user_id", userID), zap.String("article_id", articleID), zap.Bool("favorite", favorite))
	s.publish()
	return favorite, nil
}

// UpdateDueDate sets the due date, or clears it when due is nil.
func (s *Store) UpdateDueDate(due *time.Time) error {
	if err := ValidateDueDate(due, s.now()); err != nil {
		return err
	}
	var value *time.Time
	if due != nil {
		d := *due
		value = &d
	}

	s.mu.Lock()
	userID, err := s.requireProfileLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state.Profile.DueDate = value
	s.enqueueLocked(writeJob{
		kind:   metrics.WriteDueDate,
		userID: userID,
		run:    func(ctx context.Context) error { return s.profiles.WriteDueDate(ctx, userID, value) },
	})
	s.changedLocked()
	s.mu.Unlock()

	s.logger.Info("Due date updated", zap.String("user_id", userID), zap.Bool("cleared", value == nil))
	s.publish()
	return nil
}

// AddChecklistItem appends a new, incomplete item and returns it.
func (s *Store) AddChecklistItem(text string) (models.ChecklistItem, error) {
	text, err := ValidateChecklistText(text)
	if err != nil {
		return models.ChecklistItem{}, err
	}

	s.mu.Lock()
	userID, err := s.requireProfileLocked()
	if err != nil {
		s.mu.Unlock()
		return models.ChecklistItem{}, err
	}
	item := models.ChecklistItem{
		ID:        s.newID(),
		Text:      text,
		CreatedAt: s.now(),
	}
	p := &s.state.Profile
	p.Checklist = sortChecklist(append(p.Checklist, item))
	s.scheduleChecklistLocked(userID)
	s.mu.Unlock()

	s.logger.Info("Checklist item added", zap.String("user_id", userID), zap.String("item_id", item.ID))
	s.publish()
	return item, nil
}

// ToggleChecklistItem flips the completed flag of itemID and returns the item.
func (s *Store) ToggleChecklistItem(itemID string) (models.ChecklistItem, error) {
	return s.editChecklistItem(itemID, func(item *models.ChecklistItem) {
		item.Completed = !item.Completed
	})
}

// UpdateChecklistItemText replaces the text of itemID and returns the item.
func (s *Store) UpdateChecklistItemText(itemID, text string) (models.ChecklistItem, error) {
	text, err := ValidateChecklistText(text)
	if err != nil {
		return models.ChecklistItem{}, err
	}
	return s.editChecklistItem(itemID, func(item *models.ChecklistItem) {
		item.Text = text
	})
}

// RemoveChecklistItem deletes itemID.
func (s *Store) RemoveChecklistItem(itemID string) error {
	s.mu.Lock()
	userID, err := s.requireProfileLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	p := &s.state.Profile
	idx := indexOfItem(p.Checklist, itemID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrChecklistItemNotFound
	}
	p.Checklist = append(p.Checklist[:idx:idx], p.Checklist[idx+1:]...)
	s.scheduleChecklistLocked(userID)
	s.mu.Unlock()

	s.logger.Info("Checklist item removed", zap.String("user_id", userID), zap.String("item_id", itemID))
	s.publish()
	return nil
}

func (s *Store) editChecklistItem(itemID string, edit func(*models.ChecklistItem)) (models.ChecklistItem, error) {
	s.mu.Lock()
	userID, err := s.requireProfileLocked()
	if err != nil {
		s.mu.Unlock()
		return models.ChecklistItem{}, err
	}
	p := &s.state.Profile
	idx := indexOfItem(p.Checklist, itemID)
	if idx < 0 {
		s.mu.Unlock()
		return models.ChecklistItem{}, ErrChecklistItemNotFound
	}
	items := append([]models.ChecklistItem{}, p.Checklist...)
	edit(&items[idx])
	p.Checklist = items
	item := items[idx]
	s.scheduleChecklistLocked(userID)
	s.mu.Unlock()

	s.logger.Debug("Checklist item updated", zap.String("user_id", userID), zap.String("item_id", itemID))
	s.publish()
	return item, nil
}

func (s *Store) scheduleChecklistLocked(userID string) {
	s.persist.Schedule(userID, s.state.Profile.Checklist)
	s.changedLocked()
}

func (s *Store) enqueueLocked(job writeJob) {
	if s.writes.enqueue(job) {
		s.inflight++
	}
}

// writeDone handles the result of a favorites or due date write.
func (s *Store) writeDone(job writeJob, err error) {
	s.metrics.RecordRemoteWrite(job.kind, metrics.Outcome(err))
	if err != nil {
		s.logger.Warn("Profile write failed", zap.String("user_id", job.userID), zap.String("kind", job.kind), zap.Error(err))
	}
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.recordWriteResult(job.userID, err)
}

// checklistWritten handles the result of a debounced checklist write.
func (s *Store) checklistWritten(userID string, err error) {
	s.recordWriteResult(userID, err)
}

// recordWriteResult sets or clears profileError. Results for a user who is no
// longer signed in only update the Syncing flag.
func (s *Store) recordWriteResult(userID string, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	current := s.state.Session.Status == AuthAuthenticated && s.state.Profile.OwnerID == userID
	if current {
		p := &s.state.Profile
		if err != nil {
			p.LoadStatus = ProfileErrored
			p.Error = err.Error()
		} else if p.LoadStatus == ProfileErrored {
			p.LoadStatus = ProfileLoaded
			p.Error = ""
		}
	}
	s.changedLocked()
	s.mu.Unlock()
	s.publish()
}

// SignUp registers an account. The session itself changes when the identity
// subscription reports the new user.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	return s.authAction("sign_up", func() error { return s.session.SignUp(ctx, email, password) })
}

// SignIn authenticates an account.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	return s.authAction("sign_in", func() error { return s.session.SignIn(ctx, email, password) })
}

// SignOut ends the session.
func (s *Store) SignOut(ctx context.Context) error {
	return s.authAction("sign_out", func() error { return s.session.SignOut(ctx) })
}

// SendPasswordReset requests a reset mail. The result never says whether the
// address is registered.
func (s *Store) SendPasswordReset(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := s.authAction("password_reset", func() error {
		var err error
		ok, err = s.session.SendPasswordReset(ctx, email)
		return err
	})
	return ok, err
}

func (s *Store) authAction(action string, call func() error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStoreClosed
	}

	err := call()
	s.metrics.RecordAuthAction(action, metrics.Outcome(err))

	s.mu.Lock()
	if err != nil {
		s.state.Session.AuthError = AuthErrorMessage(err)
	} else {
		s.state.Session.AuthError = ""
	}
	s.changedLocked()
	s.mu.Unlock()
	s.publish()
	return err
}

// AuthErrorMessage is the user-facing text for an identity failure.
func AuthErrorMessage(err error) string {
	switch identity.KindOf(err) {
	case identity.KindInvalidCredentials:
		return "The email or password is not valid."
	case identity.KindEmailInUse:
		return "An account with this email already exists."
	case identity.KindWrongCredentials:
		return "Incorrect email or password."
	case identity.KindNetwork:
		return "Could not reach the sign-in service. Check your connection and try again."
	default:
		return err.Error()
	}
}

// sortChecklist orders items by creation time; equal times keep their order.
func sortChecklist(items []models.ChecklistItem) []models.ChecklistItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func indexOfItem(items []models.ChecklistItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(ids []string) []string {
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
