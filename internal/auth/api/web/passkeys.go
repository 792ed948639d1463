package web

import (
	"encoding/json"
	"net/http"
	"time"
)

type beginRegistrationRequest struct {
	DisplayName string `json:"displayName"`
}

type beginCeremonyResponse struct {
	RequestID string          `json:"requestId"`
	Options   json.RawMessage `json:"options"`
}

func (s *Server) handleRegisterBegin(w http.ResponseWriter, r *http.Request) {
	current, _, err := s.sessions.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in beginRegistrationRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.passkeys.BeginRegistration(r.Context(), current.ID, in.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, beginCeremonyResponse{RequestID: result.RequestID, Options: result.Options})
}

type completeRegistrationRequest struct {
	RequestID           string          `json:"requestId"`
	AttestationResponse json.RawMessage `json:"attestationResponse"`
	DisplayName         string          `json:"displayName"`
}

type completeRegistrationResponse struct {
	CredentialID string `json:"credentialId"`
}

func (s *Server) handleRegisterComplete(w http.ResponseWriter, r *http.Request) {
	current, _, err := s.sessions.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in completeRegistrationRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	record, err := s.passkeys.CompleteRegistration(r.Context(), current.ID, in.RequestID, in.AttestationResponse, in.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeRegistrationResponse{CredentialID: record.DescriptorID})
}

type beginLoginRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleLoginBegin(w http.ResponseWriter, r *http.Request) {
	var in beginLoginRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.passkeys.BeginAssertion(r.Context(), in.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, beginCeremonyResponse{RequestID: result.RequestID, Options: result.Options})
}

type completeLoginRequest struct {
	RequestID         string          `json:"requestId"`
	AssertionResponse json.RawMessage `json:"assertionResponse"`
	Persistent        bool            `json:"persistent"`
}

type completeLoginResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

func (s *Server) handleLoginComplete(w http.ResponseWriter, r *http.Request) {
	var in completeLoginRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	resolved, err := s.passkeys.CompleteAssertion(r.Context(), in.RequestID, in.AssertionResponse)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.sessions.SignIn(r.Context(), w, r, resolved.ID, in.Persistent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeLoginResponse{RedirectURL: "/"})
}

type passkeySummary struct {
	CredentialID string     `json:"credentialId"`
	DisplayName  string     `json:"displayName"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}

func (s *Server) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	current, _, err := s.sessions.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := s.credentials.ListPasskeyCredentials(r.Context(), current.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries := make([]passkeySummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, passkeySummary{
			CredentialID: record.DescriptorID,
			DisplayName:  record.DisplayName,
			CreatedAt:    record.CreatedAt,
			LastUsedAt:   record.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]passkeySummary{"passkeys": summaries})
}
