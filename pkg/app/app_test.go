package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharednotes/pkg/config"
	"sharednotes/pkg/fakebackend"
	"sharednotes/pkg/identity"
	"sharednotes/pkg/models"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.APIURL = url
	cfg.ListenAddr = "127.0.0.1:0"
	return cfg
}

func newBackend(t *testing.T) (*fakebackend.Server, *identity.Memory, string) {
	t.Helper()
	fake := fakebackend.New()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	fake.SeedUser("alice", "alice@example.com", "Secr3t!")
	provider := identity.NewMemory()
	provider.AddConfirmed("alice@example.com", "alice", "Secr3t!")
	return fake, provider, srv.URL
}

func TestStartWithoutSession(t *testing.T) {
	_, provider, url := newBackend(t)

	a, err := New(context.Background(), testConfig(url), zerolog.Nop(), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, models.SessionAnonymous, a.Session.Status())
	assert.Empty(t, a.Notes.Notes())
}

func TestStartResumesSession(t *testing.T) {
	fake, provider, url := newBackend(t)
	alice, ok := fake.LookupUser("alice")
	require.True(t, ok)
	fake.SeedNote(alice.ID, "groceries", "milk")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := &http.Client{Jar: jar}
	ctx := context.Background()

	first, err := New(ctx, testConfig(url), zerolog.Nop(), WithProvider(provider), WithHTTPClient(hc))
	require.NoError(t, err)
	_, err = first.Session.Login(ctx, "alice", "Secr3t!")
	require.NoError(t, err)

	// A restart keeps the refresh cookie but not the access token.
	second, err := New(ctx, testConfig(url), zerolog.Nop(), WithProvider(provider), WithHTTPClient(hc))
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))

	assert.Equal(t, models.SessionAuthenticated, second.Session.Status())
	assert.Len(t, second.Notes.Notes(), 1)

	calls := fake.Calls(fakebackend.RouteRefreshToken)
	require.NoError(t, second.Start(ctx))
	assert.Equal(t, calls, fake.Calls(fakebackend.RouteRefreshToken))
}

func TestUnknownProvider(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Identity.Provider = "ldap"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown identity provider")
}

func TestConfigReload(t *testing.T) {
	_, provider, url := newBackend(t)
	cfg := testConfig(url)
	a, err := New(context.Background(), cfg, zerolog.Nop(), WithProvider(provider))
	require.NoError(t, err)

	reloaded := testConfig(url)
	reloaded.LogLevel = "debug"
	reloaded.APIURL = "http://elsewhere.invalid"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.applyConfig(reloaded)
		}()
		go func() {
			defer wg.Done()
			_ = a.Config().LogLevel
		}()
	}
	wg.Wait()

	got := a.Config()
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, url, got.APIURL)
	assert.Equal(t, "info", cfg.LogLevel)

	got.LogLevel = "error"
	assert.Equal(t, "debug", a.Config().LogLevel)
}

func TestMetricsDisabled(t *testing.T) {
	_, provider, url := newBackend(t)
	cfg := testConfig(url)
	cfg.Metrics = false

	a, err := New(context.Background(), cfg, zerolog.Nop(), WithProvider(provider))
	require.NoError(t, err)
	assert.Nil(t, a.Metrics)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeListenerShutsDown(t *testing.T) {
	_, provider, url := newBackend(t)
	a, err := New(context.Background(), testConfig(url), zerolog.Nop(), WithProvider(provider))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/api/session")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "anonymous", body.Data.Status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
