package web

import (
	"log"
	"net/http"
	"strings"
)

const (
	// magicLinkSentPath is where the browser lands after requesting a link,
	// whether or not the address was known.
	magicLinkSentPath = "/login/check-email"

	// magicLinkFailedPath is the generic destination for every failed
	// redemption. The path carries no hint of which check failed.
	magicLinkFailedPath = "/login?error=invalid-link"
)

// handleMagicLinkRequest accepts a form or JSON body and always answers
// with the same redirect. The outcome of the lookup is never visible here.
func (s *Server) handleMagicLinkRequest(w http.ResponseWriter, r *http.Request) {
	address, returnURL := magicLinkRequestParams(r)

	if err := s.magicLinks.RequestLink(r.Context(), address, returnURL); err != nil {
		// Redirect anyway; logging is the only place the failure shows up.
		log.Printf("request magic link: %v", err)
	}
	http.Redirect(w, r, magicLinkSentPath, http.StatusSeeOther)
}

func magicLinkRequestParams(r *http.Request) (address string, returnURL string) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var in struct {
			Email     string `json:"email"`
			ReturnURL string `json:"returnUrl"`
		}
		if err := decodeBody(r, &in); err == nil {
			return in.Email, in.ReturnURL
		}
		return "", ""
	}
	if err := r.ParseForm(); err != nil {
		return "", ""
	}
	return r.PostFormValue("email"), r.PostFormValue("returnUrl")
}

// handleMagicLinkCallback redeems the emailed token and establishes a
// session. Success lands on the signed return path when one was carried;
// every failure lands on the same generic destination.
func (s *Server) handleMagicLinkCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	token := query.Get("token")
	address := query.Get("email")

	resolved, err := s.magicLinks.Redeem(r.Context(), token, address)
	if err != nil {
		http.Redirect(w, r, magicLinkFailedPath, http.StatusSeeOther)
		return
	}
	if _, err := s.sessions.SignIn(r.Context(), w, r, resolved.ID, true); err != nil {
		log.Printf("establish session after redeem: %v", err)
		http.Redirect(w, r, magicLinkFailedPath, http.StatusSeeOther)
		return
	}

	destination := s.magicLinks.VerifyReturnURL(query.Get("state"))
	if destination == "" {
		destination = "/"
	}
	http.Redirect(w, r, destination, http.StatusSeeOther)
}
