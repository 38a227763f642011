package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/catalog"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository/memory"
	"github.com/quocanhngo/reelsync/pkg/auth"
	"github.com/quocanhngo/reelsync/pkg/certauth"
	"github.com/quocanhngo/reelsync/pkg/fingerprint"
	"github.com/quocanhngo/reelsync/pkg/mailer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	filmID      uint = 1
	shortID     uint = 2
	liveEventID uint = 3
)

type sentEvent struct {
	userID uuid.UUID
	event  *model.WSEvent
	except uuid.UUID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) SendToUser(userID uuid.UUID, event *model.WSEvent, except uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{userID, event, except})
}

func (n *recordingNotifier) ofType(eventType string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingAlerter struct {
	mu       sync.Mutex
	enrolled []mailer.DeviceNotice
	revoked  []mailer.DeviceNotice
}

func (a *recordingAlerter) SendDeviceEnrolled(_, _ string, device mailer.DeviceNotice) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enrolled = append(a.enrolled, device)
	return nil
}

func (a *recordingAlerter) SendDeviceRevoked(_, _ string, device mailer.DeviceNotice) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked = append(a.revoked, device)
	return nil
}

// testClock hands out strictly increasing instants
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	users        *memory.UserStore
	sessionStore *memory.SessionStore
	progress     *memory.ProgressStore
	certStore    *memory.CertificateStore
	revoked      *memory.RevocationList
	notifier     *recordingNotifier
	alerts       *recordingAlerter
	clock        *testClock
	jwt          *auth.JWTManager
	authority    *certauth.Authority

	sessionSvc  *SessionService
	progressSvc *ProgressService
	certSvc     *CertificateService
	identitySvc *IdentityService
	authSvc     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	authority, err := certauth.NewAuthority("Test CA", "ReelSync")
	require.NoError(t, err)

	titles := memory.NewTitleStore()
	ctx := context.Background()
	require.NoError(t, titles.Save(ctx, &model.Title{ID: filmID, Name: "The Long Film", DurationSeconds: 3600}))
	require.NoError(t, titles.Save(ctx, &model.Title{ID: shortID, Name: "Short", DurationSeconds: 600}))
	require.NoError(t, titles.Save(ctx, &model.Title{ID: liveEventID, Name: "Live Event", DurationSeconds: 0}))

	f := &fixture{
		users:        memory.NewUserStore(),
		sessionStore: memory.NewSessionStore(),
		progress:     memory.NewProgressStore(),
		certStore:    memory.NewCertificateStore(),
		revoked:      memory.NewRevocationList(),
		notifier:     &recordingNotifier{},
		alerts:       &recordingAlerter{},
		clock:        &testClock{now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)},
		jwt:          auth.NewJWTManager("test-secret", time.Hour, "reelsync"),
		authority:    authority,
	}

	log := zerolog.Nop()
	f.sessionSvc = NewSessionService(f.sessionStore, f.notifier, log)
	f.sessionSvc.now = f.clock.Now
	f.progressSvc = NewProgressService(f.progress, f.sessionStore, catalog.New(titles, time.Minute), f.notifier, log)
	f.progressSvc.now = f.clock.Now
	f.certSvc = NewCertificateService(authority, f.certStore, f.users, f.sessionSvc, f.revoked, f.jwt, f.alerts, log)
	f.identitySvc = NewIdentityService(f.jwt, f.users, f.sessionSvc, f.certSvc, log)
	f.authSvc = NewAuthService(f.users, f.sessionSvc, f.jwt)
	return f
}

var (
	deviceX = fingerprint.DeviceInfo{
		MacAddress:   "AA:BB:CC:00:00:01",
		ComputerName: "DESKTOP-X",
		OSVersion:    "Windows 11",
		TimeZone:     "Europe/Budapest",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120",
		DeviceName:   "Study PC",
	}
	deviceY = fingerprint.DeviceInfo{
		MacAddress:   "AA:BB:CC:00:00:02",
		ComputerName: "tv-livingroom",
		OSVersion:    "Tizen 7",
		TimeZone:     "Europe/Budapest",
		UserAgent:    "Mozilla/5.0 (SMART-TV; Linux; Tizen 7.0)",
		DeviceName:   "Living Room TV",
	}
)

func (f *fixture) register(t *testing.T, email string, device fingerprint.DeviceInfo) *model.LoginResponse {
	t.Helper()
	resp, err := f.authSvc.Register(context.Background(), model.RegisterRequest{
		Name:       "Viewer",
		Email:      email,
		Password:   "s3cret-pass",
		DeviceInfo: &device,
	}, fingerprint.DeviceInfo{}, "203.0.113.10")
	require.NoError(t, err)
	return resp
}

func (f *fixture) login(t *testing.T, email string, device fingerprint.DeviceInfo) *model.LoginResponse {
	t.Helper()
	resp, err := f.authSvc.Login(context.Background(), model.LoginRequest{
		Email:      email,
		Password:   "s3cret-pass",
		DeviceInfo: &device,
	}, fingerprint.DeviceInfo{}, "203.0.113.10")
	require.NoError(t, err)
	return resp
}

func (f *fixture) bearerIdentity(t *testing.T, token string) *model.Identity {
	t.Helper()
	id, err := f.identitySvc.ResolveBearer(context.Background(), token, "")
	require.NoError(t, err)
	return id
}
