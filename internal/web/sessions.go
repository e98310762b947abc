package web

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/conorfennell/flipdeck/internal/review"
)

const sessionCookie = "flipdeck_session"

// registry holds the live review controller of every browser session.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*review.Controller
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*review.Controller)}
}

func (reg *registry) get(id string) *review.Controller {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.sessions[id]
}

// put stores c under id, closing whatever it replaces.
func (reg *registry) put(id string, c *review.Controller) {
	reg.mu.Lock()
	prev := reg.sessions[id]
	reg.sessions[id] = c
	reg.mu.Unlock()
	if prev != nil && prev != c {
		prev.Close()
	}
}

func (reg *registry) remove(id string) {
	reg.mu.Lock()
	c := reg.sessions[id]
	delete(reg.sessions, id)
	reg.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

func (reg *registry) len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}

func (reg *registry) closeAll() {
	reg.mu.Lock()
	sessions := reg.sessions
	reg.sessions = make(map[string]*review.Controller)
	reg.mu.Unlock()
	for _, c := range sessions {
		c.Close()
	}
}

// sessionID returns the caller's session cookie value, minting a new one
// when absent or malformed.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// existingSessionID returns the cookie value without minting one.
func existingSessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
