package www

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyberorg/sparagliding-meshmap/store"
)

const sessionName = "meshmap-session"

const sessionMaxAge = 7 * 24 * 3600

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "meshmap-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sessionUser returns the logged in username, if any.
func (h *Handlers) sessionUser(r *http.Request) (string, bool) {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	if auth, _ := session.Values["authenticated"].(bool); !auth {
		return "", false
	}
	username, _ := session.Values["username"].(string)
	return username, true
}

// requireAuth rejects API calls without a session. There is no login page to
// redirect to, so the answer is a JSON 401.
func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.sessionUser(r); !ok {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) ensureDefaultAdmin(db *store.DB) error {
	ctx := context.Background()
	exists, err := db.AdminUserExists(ctx)
	if err != nil || exists {
		return err
	}
	hash, err := hashPassword("admin")
	if err != nil {
		return err
	}
	if _, err := db.CreateAdminUser(ctx, "admin", hash); err != nil {
		return err
	}
	log.Printf("www: created default admin user, change its password")
	return nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.FormValue("username")
	c.Password = r.FormValue("password")
	return c, nil
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.engine.DB().GetAdminUser(r.Context(), c.Username)
	if err != nil || !checkPassword(user.PasswordHash, c.Password) {
		h.jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
		h.jsonError(w, "session error", http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"ok": true, "username": user.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if name, ok := h.sessionUser(r); ok {
		log.Printf("auth: %s logged out", name)
	}
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "username")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
	}
	h.jsonOK(w, map[string]bool{"ok": true})
}
