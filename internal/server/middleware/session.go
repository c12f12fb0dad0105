package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/glasskit/glassbox/internal/console"
)

type sessionCtxKey struct{}

// Session is one browser's debug state. The cookie carries only the id;
// everything else lives server-side and dies with the session.
type Session struct {
	ID      string
	Console *console.Console

	lastAccess time.Time
}

// SessionManager issues session cookies and retains per-session consoles
// until they go idle. Stale sessions are swept every few minutes.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	cookieName string
	idleTTL    time.Duration
	opts       console.Options
}

// NewSessionManager starts the manager and its sweep goroutine, which
// stops when ctx is canceled.
func NewSessionManager(ctx context.Context, cookieName string, idleTTL time.Duration, opts console.Options) *SessionManager {
	m := &SessionManager{
		sessions:   make(map[string]*Session),
		cookieName: cookieName,
		idleTTL:    idleTTL,
		opts:       opts,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	return m
}

func (m *SessionManager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-m.idleTTL)
	for id, sess := range m.sessions {
		if sess.lastAccess.Before(cutoff) {
			sess.Console.Close()
			delete(m.sessions, id)
		}
	}
}

// Handler resolves or creates the request's session and stores it in the
// context. The cookie is set without Max-Age so it expires with the
// browsing session.
func (m *SessionManager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.resolve(r)
		if cookie, err := r.Cookie(m.cookieName); err != nil || cookie.Value != sess.ID {
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SessionManager) resolve(r *http.Request) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cookie, err := r.Cookie(m.cookieName); err == nil {
		if sess, ok := m.sessions[cookie.Value]; ok {
			sess.lastAccess = time.Now()
			return sess
		}
	}

	sess := &Session{
		ID:         uuid.NewString(),
		Console:    console.New(m.opts, console.NewMemoryStorage()),
		lastAccess: time.Now(),
	}
	m.sessions[sess.ID] = sess
	log.Debug().Str("session", sess.ID).Msg("session created")
	return sess
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SessionFromContext returns the request's session, if the session
// middleware ran.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(*Session)
	return sess, ok
}
