package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/livetemplate/qmdtutor"
)

const (
	sessionCookie = "qmdtutor_session"
	maxSessions   = 10000
)

// sessionStore maps a browser's session cookie to its exercise states.
type sessionStore struct {
	mu       sync.Mutex
	catalog  *qmdtutor.Catalog
	sessions map[string]*qmdtutor.SessionState
}

func newSessionStore(catalog *qmdtutor.Catalog) *sessionStore {
	return &sessionStore{
		catalog:  catalog,
		sessions: make(map[string]*qmdtutor.SessionState),
	}
}

// get returns the session for r, issuing a new cookie when r has none.
func (s *sessionStore) get(w http.ResponseWriter, r *http.Request) *qmdtutor.SessionState {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.lookup(id)
}

func (s *sessionStore) lookup(id string) *qmdtutor.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss, ok := s.sessions[id]; ok {
		return ss
	}
	if len(s.sessions) >= maxSessions {
		for k := range s.sessions {
			delete(s.sessions, k)
			break
		}
	}
	ss := qmdtutor.NewSessionState(s.catalog)
	s.sessions[id] = ss
	return ss
}

// reset drops all exercise states; they refer to lessons from before a
// catalog reload.
func (s *sessionStore) reset() {
	s.mu.Lock()
	s.sessions = make(map[string]*qmdtutor.SessionState)
	s.mu.Unlock()
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
