// Package passkey orchestrates WebAuthn registration and login ceremonies.
//
// Each ceremony runs in two phases. Begin builds the ceremony options,
// parks the relying party session state in the challenge store under a fresh
// request id, and hands the options to the client. Complete takes the parked
// state back (exactly once), runs the cryptographic verification, and only
// then touches the credential registry.
package passkey

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/fragmentui/fragmentui/internal/auth/challenge"
	"github.com/fragmentui/fragmentui/internal/auth/storage"
	"github.com/fragmentui/fragmentui/internal/auth/user"
	apperrors "github.com/fragmentui/fragmentui/internal/platform/errors"
	"github.com/fragmentui/fragmentui/internal/platform/id"
)

var (
	// ErrCeremonyExpired reports a completion whose challenge is missing,
	// expired, or already consumed.
	ErrCeremonyExpired = apperrors.New(apperrors.CodeCeremonyExpired, "ceremony expired")

	// ErrCredentialNotRecognized reports an assertion for a descriptor the
	// registry does not know.
	ErrCredentialNotRecognized = apperrors.New(apperrors.CodeCredentialNotRecognized, "credential not recognized")

	// ErrVerificationFailed reports a failed cryptographic check, including
	// signature counter regression.
	ErrVerificationFailed = apperrors.New(apperrors.CodeVerificationFailed, "verification failed")

	// ErrDuplicateCredential reports a registration for a descriptor that
	// was already claimed, by any user.
	ErrDuplicateCredential = apperrors.New(apperrors.CodeDuplicateCredential, "credential already registered")
)

// relyingParty is the WebAuthn ceremony surface the coordinator depends on.
// *webauthn.WebAuthn satisfies it; tests substitute fakes.
type relyingParty interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type credentialParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultCredentialParser struct{}

func (defaultCredentialParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultCredentialParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Coordinator runs passkey ceremonies against the challenge store and the
// credential registry.
type Coordinator struct {
	relyingParty relyingParty
	parser       credentialParser
	challenges   challenge.Store
	users        storage.UserStore
	credentials  storage.PasskeyStore
	cfg          Config
	clock        func() time.Time
	idGenerator  func() (string, error)
}

// NewCoordinator builds a Coordinator on a real WebAuthn relying party.
func NewCoordinator(cfg Config, challenges challenge.Store, users storage.UserStore, credentials storage.PasskeyStore) (*Coordinator, error) {
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Coordinator{
		relyingParty: webAuthn,
		parser:       defaultCredentialParser{},
		challenges:   challenges,
		users:        users,
		credentials:  credentials,
		cfg:          cfg,
		clock:        time.Now,
		idGenerator:  id.NewID,
	}, nil
}

// BeginResult carries the ceremony handle and the options the client feeds
// to the WebAuthn browser API.
type BeginResult struct {
	RequestID string
	Options   json.RawMessage
}

// ceremonyState is the payload parked in the challenge store between the
// two ceremony phases.
type ceremonyState struct {
	UserID  string               `json:"user_id,omitempty"`
	Session webauthn.SessionData `json:"session"`
}

// BeginRegistration starts a registration ceremony for a signed-in user.
// Already-registered descriptors are excluded so the same authenticator
// cannot be enrolled twice.
func (c *Coordinator) BeginRegistration(ctx context.Context, userID string, displayName string) (BeginResult, error) {
	if err := c.ready(); err != nil {
		return BeginResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return BeginResult{}, apperrors.New(apperrors.CodeUnauthenticated, "user is required")
	}
	baseUser, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return BeginResult{}, fmt.Errorf("get user: %w", err)
	}
	webAuthnUser, err := c.loadWebAuthnUser(ctx, baseUser, displayName)
	if err != nil {
		return BeginResult{}, fmt.Errorf("load passkey user: %w", err)
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.VerificationPreferred,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
	}
	if len(webAuthnUser.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(webAuthnUser.credentials).CredentialDescriptors()))
	}

	creation, session, err := c.relyingParty.BeginRegistration(webAuthnUser, options...)
	if err != nil {
		return BeginResult{}, fmt.Errorf("begin passkey registration: %w", err)
	}
	return c.parkCeremony(ctx, challenge.NamespaceRegistration, baseUser.ID, session, creation)
}

// CompleteRegistration verifies the authenticator's attestation response and
// persists the new credential. The registry insert happens only after the
// verifier succeeds.
func (c *Coordinator) CompleteRegistration(ctx context.Context, userID string, requestID string, response []byte, displayName string) (storage.PasskeyCredential, error) {
	if err := c.ready(); err != nil {
		return storage.PasskeyCredential{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.PasskeyCredential{}, apperrors.New(apperrors.CodeUnauthenticated, "user is required")
	}
	if len(response) == 0 {
		return storage.PasskeyCredential{}, apperrors.New(apperrors.CodeInvalidArgument, "credential response is required")
	}

	state, err := c.takeCeremony(ctx, challenge.NamespaceRegistration, requestID)
	if err != nil {
		return storage.PasskeyCredential{}, err
	}
	if state.UserID != userID {
		return storage.PasskeyCredential{}, ErrCeremonyExpired
	}

	baseUser, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return storage.PasskeyCredential{}, fmt.Errorf("get user: %w", err)
	}
	webAuthnUser, err := c.loadWebAuthnUser(ctx, baseUser, displayName)
	if err != nil {
		return storage.PasskeyCredential{}, fmt.Errorf("load passkey user: %w", err)
	}

	parsed, err := c.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return storage.PasskeyCredential{}, ErrVerificationFailed
	}
	credential, err := c.relyingParty.CreateCredential(webAuthnUser, state.Session, parsed)
	if err != nil {
		return storage.PasskeyCredential{}, ErrVerificationFailed
	}

	descriptorID := EncodeDescriptorID(credential.ID)
	if _, err := c.credentials.GetPasskeyCredential(ctx, descriptorID); err == nil {
		return storage.PasskeyCredential{}, ErrDuplicateCredential
	} else if err != storage.ErrNotFound {
		return storage.PasskeyCredential{}, fmt.Errorf("check passkey credential: %w", err)
	}

	record := storage.PasskeyCredential{
		DescriptorID:     descriptorID,
		UserID:           baseUser.ID,
		PublicKey:        credential.PublicKey,
		CredentialType:   string(protocol.PublicKeyCredentialType),
		SignatureCounter: uint64(credential.Authenticator.SignCount),
		AAGUID:           credential.Authenticator.AAGUID,
		UserHandle:       webAuthnUser.WebAuthnID(),
		DisplayName:      credentialLabel(displayName),
		CreatedAt:        c.clock().UTC(),
	}
	if err := c.credentials.InsertPasskeyCredential(ctx, record); err != nil {
		if err == storage.ErrDuplicate {
			return storage.PasskeyCredential{}, ErrDuplicateCredential
		}
		return storage.PasskeyCredential{}, fmt.Errorf("insert passkey credential: %w", err)
	}
	return record, nil
}

// BeginAssertion starts a login ceremony. A known email scopes the allowed
// credentials to that user; otherwise the allow list stays empty and any
// resident credential may respond. The two cases produce the same response
// shape so the email is never confirmed to exist.
func (c *Coordinator) BeginAssertion(ctx context.Context, email string) (BeginResult, error) {
	if err := c.ready(); err != nil {
		return BeginResult{}, err
	}

	var (
		assertion    *protocol.CredentialAssertion
		session      *webauthn.SessionData
		scopedUserID string
	)
	loginOptions := []webauthn.LoginOption{
		webauthn.WithUserVerification(protocol.VerificationPreferred),
	}

	if normalized, err := user.NormalizeEmail(email); err == nil {
		if baseUser, err := c.users.GetUserByEmail(ctx, normalized); err == nil {
			if webAuthnUser, err := c.loadWebAuthnUser(ctx, baseUser, ""); err == nil && len(webAuthnUser.credentials) > 0 {
				assertion, session, err = c.relyingParty.BeginLogin(webAuthnUser, loginOptions...)
				if err != nil {
					return BeginResult{}, fmt.Errorf("begin passkey login: %w", err)
				}
				scopedUserID = baseUser.ID
			}
		}
	}
	if session == nil {
		var err error
		assertion, session, err = c.relyingParty.BeginDiscoverableLogin(loginOptions...)
		if err != nil {
			return BeginResult{}, fmt.Errorf("begin passkey login: %w", err)
		}
	}
	return c.parkCeremony(ctx, challenge.NamespaceAssertion, scopedUserID, session, assertion)
}

// CompleteAssertion verifies the authenticator's assertion response and
// returns the owning user. The stored signature counter and last-used
// timestamp advance only after the verifier succeeds, through a conditional
// update guarded by the previously observed counter.
func (c *Coordinator) CompleteAssertion(ctx context.Context, requestID string, response []byte) (user.User, error) {
	if err := c.ready(); err != nil {
		return user.User{}, err
	}
	if len(response) == 0 {
		return user.User{}, apperrors.New(apperrors.CodeInvalidArgument, "credential response is required")
	}

	state, err := c.takeCeremony(ctx, challenge.NamespaceAssertion, requestID)
	if err != nil {
		return user.User{}, err
	}

	parsed, err := c.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return user.User{}, ErrVerificationFailed
	}

	stored, err := c.credentials.GetPasskeyCredential(ctx, EncodeDescriptorID(parsed.RawID))
	if err != nil {
		if err == storage.ErrNotFound {
			return user.User{}, ErrCredentialNotRecognized
		}
		return user.User{}, fmt.Errorf("get passkey credential: %w", err)
	}
	if handle := parsed.Response.UserHandle; len(handle) > 0 && !bytes.Equal(handle, stored.UserHandle) {
		return user.User{}, ErrVerificationFailed
	}

	validated, err := c.verifyAssertion(ctx, state, stored, parsed)
	if err != nil {
		return user.User{}, err
	}
	if validated.Authenticator.CloneWarning {
		return user.User{}, ErrVerificationFailed
	}
	nextCounter := uint64(validated.Authenticator.SignCount)
	if stored.SignatureCounter > 0 && nextCounter <= stored.SignatureCounter {
		return user.User{}, ErrVerificationFailed
	}

	if err := c.credentials.UpdatePasskeyCounter(ctx, stored.DescriptorID, stored.SignatureCounter, nextCounter, c.clock().UTC()); err != nil {
		if err == storage.ErrNotFound {
			// A concurrent assertion advanced the counter first.
			return user.User{}, ErrVerificationFailed
		}
		return user.User{}, fmt.Errorf("update passkey counter: %w", err)
	}

	owner, err := c.users.GetUser(ctx, stored.UserID)
	if err != nil {
		return user.User{}, fmt.Errorf("get credential owner: %w", err)
	}
	return owner, nil
}

func (c *Coordinator) verifyAssertion(ctx context.Context, state ceremonyState, stored storage.PasskeyCredential, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	if state.UserID != "" {
		if state.UserID != stored.UserID {
			return nil, ErrVerificationFailed
		}
		baseUser, err := c.users.GetUser(ctx, state.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		webAuthnUser, err := c.loadWebAuthnUser(ctx, baseUser, "")
		if err != nil {
			return nil, fmt.Errorf("load passkey user: %w", err)
		}
		validated, err := c.relyingParty.ValidateLogin(webAuthnUser, state.Session, parsed)
		if err != nil {
			return nil, ErrVerificationFailed
		}
		return validated, nil
	}

	validatedUser, validated, err := c.relyingParty.ValidatePasskeyLogin(c.discoverableUserHandler(ctx), state.Session, parsed)
	if err != nil {
		return nil, ErrVerificationFailed
	}
	resolved, ok := validatedUser.(*webAuthnUser)
	if !ok || resolved.user.ID != stored.UserID {
		return nil, ErrVerificationFailed
	}
	return validated, nil
}

func (c *Coordinator) discoverableUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		userID := strings.TrimSpace(string(userHandle))
		if userID == "" {
			return nil, fmt.Errorf("user handle is required")
		}
		baseUser, err := c.users.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return c.loadWebAuthnUser(ctx, baseUser, "")
	}
}

func (c *Coordinator) parkCeremony(ctx context.Context, namespace string, userID string, session *webauthn.SessionData, options any) (BeginResult, error) {
	if session == nil {
		return BeginResult{}, fmt.Errorf("session data is required")
	}
	requestID, err := c.idGenerator()
	if err != nil {
		return BeginResult{}, fmt.Errorf("generate request id: %w", err)
	}
	payload, err := json.Marshal(ceremonyState{UserID: userID, Session: *session})
	if err != nil {
		return BeginResult{}, fmt.Errorf("encode ceremony state: %w", err)
	}
	if err := c.challenges.Put(ctx, namespace, requestID, payload, c.cfg.SessionTTL); err != nil {
		return BeginResult{}, fmt.Errorf("store ceremony state: %w", err)
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return BeginResult{}, fmt.Errorf("encode ceremony options: %w", err)
	}
	return BeginResult{RequestID: requestID, Options: optionsJSON}, nil
}

func (c *Coordinator) takeCeremony(ctx context.Context, namespace string, requestID string) (ceremonyState, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ceremonyState{}, apperrors.New(apperrors.CodeInvalidArgument, "request id is required")
	}
	payload, err := c.challenges.Take(ctx, namespace, requestID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeCeremonyExpired {
			return ceremonyState{}, ErrCeremonyExpired
		}
		return ceremonyState{}, fmt.Errorf("take ceremony state: %w", err)
	}
	var state ceremonyState
	if err := json.Unmarshal(payload, &state); err != nil {
		return ceremonyState{}, fmt.Errorf("decode ceremony state: %w", err)
	}
	return state, nil
}

type webAuthnUser struct {
	user        user.User
	displayName string
	credentials []webauthn.Credential
}

func (u *webAuthnUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	if u.displayName != "" {
		return u.displayName
	}
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnIcon() string {
	return ""
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (c *Coordinator) loadWebAuthnUser(ctx context.Context, base user.User, displayName string) (*webAuthnUser, error) {
	records, err := c.credentials.ListPasskeyCredentials(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		credentials = append(credentials, decodeStoredCredential(record))
	}
	return &webAuthnUser{user: base, displayName: strings.TrimSpace(displayName), credentials: credentials}, nil
}

func decodeStoredCredential(record storage.PasskeyCredential) webauthn.Credential {
	return webauthn.Credential{
		ID:        DecodeDescriptorID(record.DescriptorID),
		PublicKey: record.PublicKey,
		Authenticator: webauthn.Authenticator{
			AAGUID:    record.AAGUID,
			SignCount: uint32(record.SignatureCounter),
		},
	}
}

func credentialLabel(displayName string) string {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "Passkey"
	}
	return displayName
}

func (c *Coordinator) ready() error {
	if c == nil || c.relyingParty == nil || c.parser == nil || c.challenges == nil || c.users == nil || c.credentials == nil {
		return fmt.Errorf("passkey coordinator is not configured")
	}
	return nil
}

// EncodeDescriptorID renders a raw credential id as the registry key.
func EncodeDescriptorID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeDescriptorID reverses EncodeDescriptorID, returning nil on garbage.
func DecodeDescriptorID(descriptorID string) []byte {
	raw, err := base64.RawURLEncoding.DecodeString(descriptorID)
	if err != nil {
		return nil
	}
	return raw
}
