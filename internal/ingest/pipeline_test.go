package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitping/relay/internal/apperror"
	"github.com/gitping/relay/internal/db"
	"github.com/gitping/relay/internal/dispatch"
)

const testSecret = "webhook-secret"

type fakeUserStore struct {
	usersByHook      map[string]*db.User
	onboardingCalls  []uuid.UUID
	removedTokens    map[uuid.UUID][]string
	removeTokensErr  error
	onboardingSetErr error
}

func newFakeUserStore(users ...*db.User) *fakeUserStore {
	s := &fakeUserStore{
		usersByHook:   make(map[string]*db.User),
		removedTokens: make(map[uuid.UUID][]string),
	}
	for _, u := range users {
		s.usersByHook[u.Hook] = u
	}
	return s
}

func (s *fakeUserStore) GetUserByHook(_ context.Context, hook string) (*db.User, error) {
	u, ok := s.usersByHook[hook]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) SetOnboardingCompleted(_ context.Context, id uuid.UUID) error {
	if s.onboardingSetErr != nil {
		return s.onboardingSetErr
	}
	s.onboardingCalls = append(s.onboardingCalls, id)
	return nil
}

func (s *fakeUserStore) RemovePushTokens(_ context.Context, id uuid.UUID, tokens []string) error {
	if s.removeTokensErr != nil {
		return s.removeTokensErr
	}
	s.removedTokens[id] = append(s.removedTokens[id], tokens...)
	return nil
}

type fakeNotificationStore struct {
	byHash    map[string]*db.Notification
	createErr error
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{byHash: make(map[string]*db.Notification)}
}

func (s *fakeNotificationStore) CreateNotification(_ context.Context, notif *db.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.byHash[notif.ContentHash]; exists {
		return db.ErrDuplicateContent
	}
	notif.ReceivedAt = time.Now()
	s.byHash[notif.ContentHash] = notif
	return nil
}

func (s *fakeNotificationStore) CountNotificationsByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range s.byHash {
		if n.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakeDispatcher struct {
	messages []dispatch.Message
	result   dispatch.Result
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msg dispatch.Message) dispatch.Result {
	d.messages = append(d.messages, msg)
	return d.result
}

func testUser(hook string) *db.User {
	return &db.User{
		ID:                  uuid.New(),
		Hook:                hook,
		PushTokens:          []string{"ExponentPushToken[abc123]"},
		OnboardingCompleted: true,
	}
}

func validPayload() Payload {
	return Payload{
		Token:      testSecret,
		To:         "brave_otter@pfg.app",
		Subject:    "GitLab | Pipeline #42 passed",
		Text:       "Your pipeline passed.\n-- \nGitLab",
		HTML:       "<p>Your pipeline passed.</p>",
		RawHeaders: "x-gitlab-project: relay\nx-gitlab-pipeline-id: 42\nx-gitlab-pipeline-status: success",
	}
}

func newTestPipeline(users *fakeUserStore, notifs *fakeNotificationStore, disp *fakeDispatcher) *Pipeline {
	return New(testSecret, users, notifs, disp, zap.NewNop())
}

func TestPipeline_DeliversNotification(t *testing.T) {
	user := testUser("brave_otter")
	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	disp := &fakeDispatcher{}
	p := newTestPipeline(users, notifs, disp)

	// Seed an earlier notification so this is not the user's first.
	notifs.byHash["earlier"] = &db.Notification{UserID: user.ID, ContentHash: "earlier"}

	outcome, err := p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("expected %q, got %q", OutcomeDelivered, outcome)
	}

	if len(disp.messages) != 1 {
		t.Fatalf("expected 1 dispatched message, got %d", len(disp.messages))
	}
	msg := disp.messages[0]
	if msg.Title != "Pipeline Succeded!" {
		t.Errorf("expected pipeline success title, got %q", msg.Title)
	}
	if len(msg.Tokens) != 1 || msg.Tokens[0] != "ExponentPushToken[abc123]" {
		t.Errorf("unexpected tokens: %v", msg.Tokens)
	}

	if len(notifs.byHash) != 2 {
		t.Errorf("expected notification persisted, have %d", len(notifs.byHash))
	}
}

func TestPipeline_RejectsBadSecret(t *testing.T) {
	p := newTestPipeline(newFakeUserStore(), newFakeNotificationStore(), &fakeDispatcher{})

	payload := validPayload()
	payload.Token = "wrong"

	_, err := p.Process(context.Background(), payload)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPipeline_BadSecretWinsOverMissingFields(t *testing.T) {
	p := newTestPipeline(newFakeUserStore(), newFakeNotificationStore(), &fakeDispatcher{})

	// An unauthenticated caller must not learn which fields are required.
	_, err := p.Process(context.Background(), Payload{Token: "wrong"})
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPipeline_MissingFields(t *testing.T) {
	p := newTestPipeline(newFakeUserStore(), newFakeNotificationStore(), &fakeDispatcher{})

	for _, clear := range []func(*Payload){
		func(p *Payload) { p.To = "" },
		func(p *Payload) { p.Subject = "" },
		func(p *Payload) { p.RawHeaders = "" },
	} {
		payload := validPayload()
		clear(&payload)

		_, err := p.Process(context.Background(), payload)
		if !errors.Is(err, apperror.ErrBadRequest) {
			t.Fatalf("expected bad request, got %v", err)
		}
		if err.Error() != "to, subject and headers are required" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	}
}

func TestPipeline_UnknownHook(t *testing.T) {
	p := newTestPipeline(newFakeUserStore(), newFakeNotificationStore(), &fakeDispatcher{})

	_, err := p.Process(context.Background(), validPayload())
	if !errors.Is(err, apperror.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if !strings.Contains(err.Error(), "User with hook brave_otter doesn't exist") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestPipeline_DuplicateContentIsIdempotent(t *testing.T) {
	user := testUser("brave_otter")
	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	disp := &fakeDispatcher{}
	p := newTestPipeline(users, notifs, disp)

	outcome, err := p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %q", outcome)
	}

	outcome, err = p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %q", outcome)
	}
	if len(disp.messages) != 1 {
		t.Errorf("duplicate must not dispatch, got %d messages", len(disp.messages))
	}
	if len(notifs.byHash) != 1 {
		t.Errorf("duplicate must not persist, have %d notifications", len(notifs.byHash))
	}
}

func TestPipeline_MutedUserStillStores(t *testing.T) {
	user := testUser("brave_otter")
	muted := time.Now().Add(time.Hour)
	user.MutedUntil = &muted

	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	disp := &fakeDispatcher{}
	p := newTestPipeline(users, notifs, disp)

	outcome, err := p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeMuted {
		t.Fatalf("expected muted, got %q", outcome)
	}
	if len(notifs.byHash) != 1 {
		t.Errorf("muted delivery must still persist the notification")
	}
	if len(disp.messages) != 0 {
		t.Errorf("muted delivery must not push, got %d messages", len(disp.messages))
	}
}

func TestPipeline_ExpiredMuteDelivers(t *testing.T) {
	user := testUser("brave_otter")
	muted := time.Now().Add(-time.Hour)
	user.MutedUntil = &muted

	users := newFakeUserStore(user)
	disp := &fakeDispatcher{}
	p := newTestPipeline(users, newFakeNotificationStore(), disp)

	outcome, err := p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %q", outcome)
	}
	if len(disp.messages) != 1 {
		t.Errorf("expected push after mute expiry")
	}
}

func TestPipeline_FirstNotificationCompletesOnboardingAndWelcomes(t *testing.T) {
	user := testUser("brave_otter")
	user.OnboardingCompleted = false

	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	disp := &fakeDispatcher{}
	p := newTestPipeline(users, notifs, disp)

	outcome, err := p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %q", outcome)
	}

	if len(users.onboardingCalls) != 1 || users.onboardingCalls[0] != user.ID {
		t.Errorf("expected one onboarding completion for the user, got %v", users.onboardingCalls)
	}

	if len(disp.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(disp.messages))
	}
	if disp.messages[0].Title != "Welcome to Ping for Gitlab!" {
		t.Errorf("first notification must use the welcome content, got %q", disp.messages[0].Title)
	}
}

func TestPipeline_SecondNotificationSkipsWelcome(t *testing.T) {
	user := testUser("brave_otter")
	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	disp := &fakeDispatcher{}
	p := newTestPipeline(users, notifs, disp)

	if _, err := p.Process(context.Background(), validPayload()); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	second := validPayload()
	second.Subject = "GitLab | New issue opened"
	second.RawHeaders = "x-gitlab-project: relay"
	if _, err := p.Process(context.Background(), second); err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	if len(disp.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(disp.messages))
	}
	if disp.messages[1].Title == "Welcome to Ping for Gitlab!" {
		t.Errorf("welcome content must only cover the first notification")
	}
}

func TestPipeline_NoValidTokens(t *testing.T) {
	user := testUser("brave_otter")
	user.PushTokens = []string{"not-a-push-token", ""}

	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	p := newTestPipeline(users, notifs, &fakeDispatcher{})

	_, err := p.Process(context.Background(), validPayload())
	if !errors.Is(err, apperror.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if err.Error() != "User doesn't have any valid token" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if len(notifs.byHash) != 1 {
		t.Errorf("notification must be persisted before token validation")
	}
}

func TestPipeline_RemovesStaleTokens(t *testing.T) {
	user := testUser("brave_otter")
	user.PushTokens = []string{"ExponentPushToken[live]", "ExponentPushToken[dead]"}

	users := newFakeUserStore(user)
	disp := &fakeDispatcher{
		result: dispatch.Result{
			Accepted:    1,
			Failed:      1,
			StaleTokens: []string{"ExponentPushToken[dead]"},
		},
	}
	p := newTestPipeline(users, newFakeNotificationStore(), disp)

	outcome, err := p.Process(context.Background(), validPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %q", outcome)
	}

	removed := users.removedTokens[user.ID]
	if len(removed) != 1 || removed[0] != "ExponentPushToken[dead]" {
		t.Errorf("expected stale token removal, got %v", removed)
	}
}

func TestPipeline_PlaceholdersForEmptyBodies(t *testing.T) {
	user := testUser("brave_otter")
	users := newFakeUserStore(user)
	notifs := newFakeNotificationStore()
	p := newTestPipeline(users, notifs, &fakeDispatcher{})

	payload := validPayload()
	payload.Text = ""
	payload.HTML = "   "

	if _, err := p.Process(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored *db.Notification
	for _, n := range notifs.byHash {
		stored = n
	}
	if stored == nil {
		t.Fatal("notification not persisted")
	}
	if stored.Text != "No content" {
		t.Errorf("expected text placeholder, got %q", stored.Text)
	}
	if stored.HTML != "<p>No content</p>" {
		t.Errorf("expected html placeholder, got %q", stored.HTML)
	}
}
