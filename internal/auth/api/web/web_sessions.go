package web

import (
	"net/http"
)

// handleLogout revokes the current web session and clears the cookie.
// A request without a session still gets the redirect.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(r.Context(), w, r); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
