package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/archive"
	"clubadmin/internal/cache"
	"clubadmin/internal/model"
	"clubadmin/internal/queue"
	"clubadmin/internal/session"
	"clubadmin/internal/stats"
)

type countingAuth struct {
	logins int
	err    error
}

func (a *countingAuth) Login(_ context.Context, username, _ string) (apiclient.LoginResult, error) {
	a.logins++
	if a.err != nil {
		return apiclient.LoginResult{}, a.err
	}
	return apiclient.LoginResult{Token: fmt.Sprintf("token-%d", a.logins), User: model.User{ID: "w", Username: username}}, nil
}

func newAuth(api *countingAuth) *serviceAuth {
	return &serviceAuth{
		mgr:      session.NewManager(session.NewMemoryStore(), api, time.Hour),
		username: "worker",
		password: "secret",
	}
}

func TestServiceAuthReusesSession(t *testing.T) {
	api := &countingAuth{}
	a := newAuth(api)
	ctx := context.Background()

	first, err := a.session(ctx)
	require.NoError(t, err)
	second, err := a.session(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, api.logins)

	a.check(ctx, errors.New("timeout"))
	_, err = a.session(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.logins, "only rejected tokens force a new login")

	a.check(ctx, fmt.Errorf("list: %w", apiclient.ErrUnauthorized))
	third, err := a.session(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, "token-2", third.UpstreamToken)
}

func TestServiceAuthErrors(t *testing.T) {
	_, err := (&serviceAuth{}).session(context.Background())
	assert.ErrorIs(t, err, errNoCredentials)

	var nilAuth *serviceAuth
	_, err = nilAuth.session(context.Background())
	assert.ErrorIs(t, err, errNoCredentials)

	a := newAuth(&countingAuth{err: apiclient.ErrUnauthorized})
	_, err = a.session(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
}

func TestHandleInvalidate(t *testing.T) {
	c := cache.New(cache.NewMemory(), cache.Options{TTL: time.Minute})
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (int, error) {
		loads++
		return loads, nil
	}
	_, err := cache.Fetch(ctx, c, "categories", []cache.Kind{cache.KindCategory}, load)
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, c, "groups", []cache.Kind{cache.KindGroup}, load)
	require.NoError(t, err)

	w := &worker{cache: c}
	w.handle(ctx, queue.Message{Type: queue.TypeInvalidate, Kinds: []string{"category", "bogus"}, Mutation: "category.create"})

	got, err := cache.Fetch(ctx, c, "categories", []cache.Kind{cache.KindCategory}, load)
	require.NoError(t, err)
	assert.Equal(t, 3, got, "categories were reloaded")

	got, err = cache.Fetch(ctx, c, "groups", []cache.Kind{cache.KindGroup}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "groups stay cached")

	w.handle(ctx, queue.Message{Type: "unknown"})
	w.handle(ctx, queue.Message{Type: queue.TypeRefresh})
}

type recordingSaver struct{ saved []archive.Snapshot }

func (r *recordingSaver) Save(_ context.Context, s archive.Snapshot) (archive.Snapshot, error) {
	r.saved = append(r.saved, s)
	return s, nil
}

func TestSnapshotNeedsCredentials(t *testing.T) {
	saver := &recordingSaver{}
	w := &worker{archive: saver, periods: []stats.Token{stats.Month}}
	w.snapshot(context.Background())
	assert.Empty(t, saver.saved)
}

func TestParsePeriods(t *testing.T) {
	got, err := parsePeriods([]string{"week", "month"})
	require.NoError(t, err)
	assert.Equal(t, []stats.Token{stats.Week, stats.Month}, got)

	_, err = parsePeriods([]string{"fortnight"})
	assert.Error(t, err)
}
