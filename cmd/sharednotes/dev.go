package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"sharednotes/pkg/fakebackend"
	"sharednotes/pkg/identity"
)

const (
	demoUsername = "demo"
	demoEmail    = "demo@example.com"
	demoPassword = "Demo1234!"
	demoNotes    = 5
)

// devBackend is an in-process backend with a matching identity provider
type devBackend struct {
	URL      string
	Fake     *fakebackend.Server
	Provider *identity.Memory

	srv *http.Server
}

func startDevBackend(logger zerolog.Logger) (*devBackend, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	fake := fakebackend.New()
	fake.SeedDemo(demoUsername, demoEmail, demoPassword, demoNotes)
	provider := identity.NewMemory()
	provider.AddConfirmed(demoEmail, demoUsername, demoPassword)

	d := &devBackend{
		URL:      "http://" + ln.Addr().String(),
		Fake:     fake,
		Provider: provider,
		srv:      &http.Server{Handler: fake, ReadHeaderTimeout: 5 * time.Second},
	}
	go func() {
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("fake backend stopped")
		}
	}()

	logger.Info().
		Str("url", d.URL).
		Str("user", demoUsername).
		Str("password", demoPassword).
		Msg("fake backend running")
	return d, nil
}

func (d *devBackend) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.srv.Shutdown(ctx)
}
