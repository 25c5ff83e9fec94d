package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/cypress/internal/route"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// EmailLinkError is the error_description the auth provider attaches to an
// expired or already used confirmation link.
const EmailLinkError = "Email link is invalid or has expired"

type ctxKey struct{}

func withUser(ctx context.Context, us *userSession) context.Context {
	return context.WithValue(ctx, ctxKey{}, us)
}

func userFrom(ctx context.Context) (*userSession, bool) {
	us, ok := ctx.Value(ctxKey{}).(*userSession)
	return us, ok
}

// authenticate attaches the session named by the cookie, if any.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookie); err == nil {
			if us, ok := s.sessions.lookup(c.Value); ok {
				r = r.WithContext(withUser(r.Context(), us))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// redirects applies the route guards in order: dashboard pages need a
// session, expired email links land on signup, and signed-in users skip the
// auth pages.
func (s *Server) redirects(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed := userFrom(r.Context())
		surface := route.Classify(r.URL.Path)

		if surface == route.SurfaceDashboard && !authed {
			http.Redirect(w, r, route.PathLogin, http.StatusSeeOther)
			return
		}
		if desc := r.URL.Query().Get("error_description"); desc == EmailLinkError && r.URL.Path != route.PathSignup {
			http.Redirect(w, r, route.PathSignup+"?error_description="+url.QueryEscape(desc), http.StatusSeeOther)
			return
		}
		if surface == route.SurfaceAuth && authed {
			http.Redirect(w, r, route.PathDashboard, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser rejects API calls without a session.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// readCredentials accepts either a JSON body or a form post.
func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !s.decode(w, r, &c) {
			return c, false
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return c, false
		}
		c.Email = r.PostForm.Get("email")
		c.FullName = r.PostForm.Get("fullName")
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if !strings.Contains(c.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return c, false
	}
	return c, true
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	us, authed := userFrom(r.Context())
	data := map[string]any{"name": "cypress", "authenticated": authed}
	if authed {
		data["email"] = us.user.Email
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"page": "login"})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"page":             "signup",
		"errorDescription": r.URL.Query().Get("error_description"),
	})
}

// handleLogin signs in an existing user by email.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	u, err := s.gateway.GetUserByEmail(r.Context(), c.Email)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.signIn(w, *u); err != nil {
		s.writeErr(w, r, err)
		return
	}
	http.Redirect(w, r, route.PathDashboard, http.StatusSeeOther)
}

// handleSignup registers a user and issues the confirmation link that
// completes sign-in through the callback.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	c, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	u := types.User{ID: types.NewID(), Email: c.Email, FullName: strings.TrimSpace(c.FullName)}
	if err := s.gateway.CreateUser(r.Context(), u); err != nil {
		s.writeErr(w, r, err)
		return
	}
	code, err := s.sessions.issueCode(u.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	link := route.PathCallback + "?code=" + url.QueryEscape(code)
	s.logger.Info("confirmation link issued", "user", u.ID, "email", u.Email)
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "confirmUrl": link})
}

// handleCallback exchanges a confirmation code for a session. It always
// ends on the dashboard; an invalid code simply leaves the caller signed
// out, so the dashboard guard sends them to login.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		if userID, ok := s.sessions.redeem(code); ok {
			u, err := s.gateway.GetUser(r.Context(), userID)
			if err != nil {
				s.logger.Warn("callback user lookup failed", "user", userID, "error", err)
			} else if err := s.signIn(w, *u); err != nil {
				s.logger.Warn("callback sign-in failed", "user", userID, "error", err)
			}
		}
	}
	http.Redirect(w, r, route.PathDashboard, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	us, _ := userFrom(r.Context())
	s.sessions.close(us.token)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"signedOut": true})
}

func (s *Server) signIn(w http.ResponseWriter, u types.User) error {
	us, err := s.sessions.open(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    us.token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("signed in", "user", u.ID)
	return nil
}
