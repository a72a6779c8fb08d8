package services

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sharednotes/pkg/api"
	"sharednotes/pkg/auth"
	"sharednotes/pkg/errors"
	"sharednotes/pkg/fakebackend"
	"sharednotes/pkg/identity"
	"sharednotes/pkg/metrics"
)

type fixture struct {
	fake     *fakebackend.Server
	client   *api.Client
	tokens   *auth.TokenStore
	provider *identity.Memory
	metrics  *metrics.Metrics
	session  *SessionService
	notes    *NoteService
	sharing  *SharingService
	alice    *fakebackend.User
	bob      *fakebackend.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := fakebackend.New()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	m := metrics.New()
	tokens := auth.NewTokenStore()
	client, err := api.New(srv.URL, tokens, api.WithMetrics(m))
	require.NoError(t, err)

	provider := identity.NewMemory()
	logger := zerolog.Nop()
	session := NewSessionService(client, provider, tokens, logger, m)
	notes := NewNoteService(client, session, logger, m, 3)
	session.OnLogout(notes.Clear)

	f := &fixture{
		fake:     fake,
		client:   client,
		tokens:   tokens,
		provider: provider,
		metrics:  m,
		session:  session,
		notes:    notes,
		sharing:  NewSharingService(client, notes, session, logger),
		alice:    fake.SeedUser("alice", "alice@example.com", "Secr3t!"),
		bob:      fake.SeedUser("bob", "bob@example.com", "B0bSecret!"),
	}
	provider.AddConfirmed("alice@example.com", "alice", "Secr3t!")
	provider.AddConfirmed("bob@example.com", "bob", "B0bSecret!")
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.session.Login(context.Background(), "alice", "Secr3t!")
	require.NoError(t, err)
}

// userMessage returns the message shown to the user for err
func userMessage(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok, "expected an AppError, got %T: %v", err, err)
	return appErr.GetUserMessage()
}
