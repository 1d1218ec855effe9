package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/archive"
	"clubadmin/internal/cache"
	"clubadmin/internal/dashboard"
	"clubadmin/internal/metrics"
	"clubadmin/internal/model"
	"clubadmin/internal/queue"
	"clubadmin/internal/session"
	"clubadmin/internal/stats"
)

// errNoCredentials disables jobs that need an upstream session.
var errNoCredentials = errors.New("worker credentials not configured")

// Saver stores snapshots.
type Saver interface {
	Save(ctx context.Context, s archive.Snapshot) (archive.Snapshot, error)
}

// serviceAuth keeps the worker's own upstream session, logging in again
// when the API stops accepting it.
type serviceAuth struct {
	mgr      *session.Manager
	username string
	password string

	mu      sync.Mutex
	current *session.Session
}

func (a *serviceAuth) session(ctx context.Context) (session.Session, error) {
	if a == nil || a.username == "" || a.password == "" {
		return session.Session{}, errNoCredentials
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		if s, err := a.mgr.Get(ctx, a.current.ID); err == nil {
			return s, nil
		}
		a.current = nil
	}
	s, err := a.mgr.Login(ctx, a.username, a.password)
	if err != nil {
		return session.Session{}, fmt.Errorf("worker login: %w", err)
	}
	if s.User.Role != model.RoleUniversityAdmin {
		log.Printf("WARNING: worker account %s has role %q; admins of other views get no warm cache", a.username, s.User.Role)
	}
	a.current = &s
	return s, nil
}

// check forgets the session when err shows the upstream token is dead.
func (a *serviceAuth) check(ctx context.Context, err error) {
	if a == nil || !errors.Is(err, apiclient.ErrUnauthorized) {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		_ = a.mgr.Check(ctx, a.current.ID, err)
		a.current = nil
	}
}

type worker struct {
	svc     *dashboard.Service
	cache   *cache.Cache
	auth    *serviceAuth
	archive Saver // nil disables snapshots
	periods []stats.Token
}

// handle applies one queue message.
func (w *worker) handle(ctx context.Context, msg queue.Message) {
	switch msg.Type {
	case queue.TypeInvalidate:
		kinds := make([]cache.Kind, 0, len(msg.Kinds))
		for _, name := range msg.Kinds {
			k, err := cache.ParseKind(name)
			if err != nil {
				log.Printf("skipping %v", err)
				continue
			}
			kinds = append(kinds, k)
		}
		keys, err := w.cache.Invalidate(ctx, kinds...)
		if err != nil {
			log.Printf("invalidate %v after %s failed: %v", msg.Kinds, msg.Mutation, err)
			metrics.WorkerRuns.WithLabelValues("invalidate", "error").Inc()
			return
		}
		log.Printf("invalidated %d keys after %s", len(keys), msg.Mutation)
		metrics.WorkerRuns.WithLabelValues("invalidate", "ok").Inc()
		w.refresh(ctx)
	case queue.TypeRefresh:
		w.refresh(ctx)
	default:
		log.Printf("ignoring queue message of type %q", msg.Type)
	}
}

// refresh re-warms the default dashboard.
func (w *worker) refresh(ctx context.Context) {
	err := w.warm(ctx)
	if errors.Is(err, errNoCredentials) {
		return
	}
	metrics.WorkerRuns.WithLabelValues("refresh", metrics.Outcome(err)).Inc()
	if err != nil {
		log.Printf("dashboard refresh failed: %v", err)
	}
}

func (w *worker) warm(ctx context.Context) error {
	s, err := w.auth.session(ctx)
	if err != nil {
		return err
	}
	_, err = w.svc.Overview(ctx, s, dashboard.PeriodQuery{})
	w.auth.check(ctx, err)
	return err
}

// snapshot archives the overview of every configured period.
func (w *worker) snapshot(ctx context.Context) {
	if w.archive == nil {
		return
	}
	s, err := w.auth.session(ctx)
	if err != nil {
		log.Printf("snapshot skipped: %v", err)
		return
	}
	for _, p := range w.periods {
		snap, err := w.svc.Snapshot(ctx, s, p)
		if err == nil {
			snap, err = w.archive.Save(ctx, snap)
		}
		w.auth.check(ctx, err)
		metrics.WorkerRuns.WithLabelValues("snapshot", metrics.Outcome(err)).Inc()
		if err != nil {
			log.Printf("snapshot %s failed: %v", p, err)
			continue
		}
		log.Printf("snapshot %s saved as %s (%d students, %.1f%% attendance)", p, snap.ID, snap.TotalStudents, snap.AverageAttendance)
	}
}

func parsePeriods(names []string) ([]stats.Token, error) {
	out := make([]stats.Token, 0, len(names))
	for _, n := range names {
		t, err := stats.ParseToken(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
