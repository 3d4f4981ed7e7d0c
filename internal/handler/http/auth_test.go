package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/identity/internal/auth"
	"github.com/ecomstack/identity/internal/domain"
	"github.com/ecomstack/identity/internal/service"
	apperrors "github.com/ecomstack/identity/pkg/errors"
	"github.com/ecomstack/identity/pkg/health"
	"github.com/ecomstack/identity/pkg/middleware"
)

// --- In-memory fakes ---

type memAccountRepo struct {
	byID    map[string]*domain.Account
	byEmail map[string]*domain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]*domain.Account),
	}
}

// byEmail is keyed on the lowercase form, mirroring the unique index on
// LOWER(email).
func (r *memAccountRepo) Create(_ context.Context, a *domain.Account) error {
	if _, ok := r.byEmail[strings.ToLower(a.Email)]; ok {
		return domain.ErrDuplicateEmail
	}
	r.byID[a.ID] = a
	r.byEmail[strings.ToLower(a.Email)] = a
	return nil
}

func (r *memAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (r *memAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	a, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (r *memAccountRepo) Update(_ context.Context, a *domain.Account) error {
	if _, ok := r.byID[a.ID]; !ok {
		return apperrors.NotFound("account", a.ID)
	}
	r.byID[a.ID] = a
	r.byEmail[strings.ToLower(a.Email)] = a
	return nil
}

type memTokenRepo struct {
	byHash map[string]*domain.RefreshTokenRecord
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{byHash: make(map[string]*domain.RefreshTokenRecord)}
}

func (r *memTokenRepo) Create(_ context.Context, rec *domain.RefreshTokenRecord) error {
	r.byHash[rec.TokenHash] = rec
	return nil
}

func (r *memTokenRepo) GetByHash(_ context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	rec, ok := r.byHash[tokenHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rec, nil
}

func (r *memTokenRepo) RevokeActive(_ context.Context, id string, now time.Time, replacedBy *string) (bool, error) {
	for _, rec := range r.byHash {
		if rec.ID == id {
			if rec.RevokedAt != nil {
				return false, nil
			}
			rec.RevokedAt = &now
			rec.ReplacedBy = replacedBy
			return true, nil
		}
	}
	return false, nil
}

func (r *memTokenRepo) RevokeAllByAccountID(_ context.Context, accountID string, now time.Time) error {
	for _, rec := range r.byHash {
		if rec.AccountID == accountID && rec.RevokedAt == nil {
			rec.RevokedAt = &now
		}
	}
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubCartCreator struct {
	err error
}

func (s *stubCartCreator) CreateCart(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "cart-1", nil
}

type capturingProducer struct {
	verificationCodes map[string]string // email -> last code
	resetLinks        map[string]string // email -> last link
}

func newCapturingProducer() *capturingProducer {
	return &capturingProducer{
		verificationCodes: make(map[string]string),
		resetLinks:        make(map[string]string),
	}
}

func (p *capturingProducer) PublishEmailVerificationRequested(_ context.Context, _, email, code string, _ time.Time) error {
	p.verificationCodes[email] = code
	return nil
}

func (p *capturingProducer) PublishPasswordResetRequested(_ context.Context, _, email, resetLink string) error {
	p.resetLinks[email] = resetLink
	return nil
}

// --- Test fixture ---

type handlerFixture struct {
	server   *httptest.Server
	accounts *memAccountRepo
	producer *capturingProducer
	issuer   *auth.TokenIssuer
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	accounts := newMemAccountRepo()
	tokens := newMemTokenRepo()
	producer := newCapturingProducer()

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		Secret:   "test-secret-key-for-testing",
		Issuer:   "identity-service",
		Audience: "ecomstack",
		Expiry:   15 * time.Minute,
	})

	svc := service.NewIdentityService(service.IdentityServiceDeps{
		Accounts:    accounts,
		Tokens:      tokens,
		Tx:          passthroughTx{},
		Codes:       auth.NewCodeGenerator(),
		RefreshFact: auth.NewRefreshTokenFactory(240 * time.Hour),
		Issuer:      issuer,
		ResetTokens: auth.NewResetTokenProvider("test-secret-key-for-testing", time.Hour),
		Hasher:      auth.NewPasswordHasher(4),
		Carts:       &stubCartCreator{},
		Producer:    producer,
		ResetLinks: service.ResetLinkConfig{
			WebBaseURL:   "https://shop.example.com",
			MobileScheme: "ecomstack",
			Page:         "reset-password",
		},
		Logger: logger,
	})

	router := NewRouter(svc, issuer, health.NewHandler(),
		CookieConfig{Secure: false, MaxAge: 240 * time.Hour},
		middleware.DefaultCORSConfig(), logger)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &handlerFixture{server: server, accounts: accounts, producer: producer, issuer: issuer}
}

func (f *handlerFixture) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// registerAndVerify walks a fresh account through registration and email
// verification and returns its email.
func (f *handlerFixture) registerAndVerify(t *testing.T, email string) {
	t.Helper()

	resp := f.postJSON(t, "/api/v1/auth/register", fmt.Sprintf(
		`{"email":%q,"username":"alice","password":"Sup3rSecret"}`, email))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	code := f.producer.verificationCodes[email]
	require.Len(t, code, 6, "verification code should have been published")

	resp = f.postJSON(t, "/api/v1/auth/verify-email", fmt.Sprintf(
		`{"email":%q,"code":%q}`, email, code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (f *handlerFixture) login(t *testing.T, email, password string) (*http.Response, map[string]any) {
	t.Helper()
	resp := f.postJSON(t, "/api/v1/auth/login", fmt.Sprintf(
		`{"email":%q,"password":%q}`, email, password))
	body := decodeBody(t, resp)
	return resp, body
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	return nil
}

// --- Register ---

func TestRegisterEndpoint_Success(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Contains(t, data["message"], "verification code")
	assert.NotContains(t, data, "verification_code", "the code must never appear in the response")
	assert.NotContains(t, data, "access_token")
}

func TestRegisterEndpoint_DuplicateEmail(t *testing.T) {
	f := newHandlerFixture(t)

	payload := `{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`
	resp := f.postJSON(t, "/api/v1/auth/register", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.postJSON(t, "/api/v1/auth/register", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_EMAIL", errObj["code"])
}

func TestRegisterEndpoint_ValidationError(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/register",
		`{"email":"not-an-email","username":"al","password":"weak"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	fields := errObj["fields"].(map[string]any)
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "Username")
	assert.Contains(t, fields, "Password")
}

func TestRegisterEndpoint_WrongContentType(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/auth/register", "text/plain",
		strings.NewReader("hello"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

// --- VerifyEmail ---

func TestVerifyEmailEndpoint_WrongCode(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	right := f.producer.verificationCodes["alice@example.com"]
	wrong := "000000"
	if wrong == right {
		wrong = "000001"
	}

	resp = f.postJSON(t, "/api/v1/auth/verify-email",
		fmt.Sprintf(`{"email":"alice@example.com","code":%q}`, wrong))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "CODE_MISMATCH", errObj["code"])
}

func TestVerifyEmailEndpoint_UnknownEmail(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/verify-email",
		`{"email":"nobody@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// --- Login ---

func TestLoginEndpoint_Success(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	resp, body := f.login(t, "alice@example.com", "Sup3rSecret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
	assert.Equal(t, "alice@example.com", data["email"])

	cookie := refreshCookie(resp)
	require.NotNil(t, cookie, "login should set the refresh cookie")
	assert.Equal(t, data["refresh_token"], cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/api/v1/auth", cookie.Path)
}

func TestLoginEndpoint_WrongPassword(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	resp, body := f.login(t, "alice@example.com", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_CREDENTIALS", errObj["code"])
}

func TestLoginEndpoint_CaseInsensitiveEmail(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/register",
		`{"email":"Alice@Example.com","username":"alice","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// The account is stored and published under the canonical lowercase form.
	code := f.producer.verificationCodes["alice@example.com"]
	require.Len(t, code, 6)

	resp = f.postJSON(t, "/api/v1/auth/verify-email",
		fmt.Sprintf(`{"email":"ALICE@EXAMPLE.COM","code":%q}`, code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, body := f.login(t, "alice@example.com", "Sup3rSecret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice@example.com", body["data"].(map[string]any)["email"])
}

func TestRegisterEndpoint_DuplicateEmailCaseVariant(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.postJSON(t, "/api/v1/auth/register",
		`{"email":"ALICE@Example.com","username":"alice2","password":"Sup3rSecret"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_EMAIL", errObj["code"])
}

func TestLoginEndpoint_UnknownEmailSameError(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	_, wrongPass := f.login(t, "alice@example.com", "wrong-password")
	_, unknown := f.login(t, "nobody@example.com", "wrong-password")

	// Wrong password and unknown account must be indistinguishable.
	assert.Equal(t, wrongPass["error"], unknown["error"])
}

func TestLoginEndpoint_UnverifiedEmail(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/register",
		`{"email":"alice@example.com","username":"alice","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, body := f.login(t, "alice@example.com", "Sup3rSecret")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "EMAIL_NOT_CONFIRMED", errObj["code"])
}

// --- Refresh ---

func TestRefreshEndpoint_WithBodyToken(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	_, loginBody := f.login(t, "alice@example.com", "Sup3rSecret")
	raw := loginBody["data"].(map[string]any)["refresh_token"].(string)

	resp := f.postJSON(t, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, raw))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEqual(t, raw, data["refresh_token"], "refresh must rotate the token")
}

func TestRefreshEndpoint_WithCookieOnly(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	loginResp, _ := f.login(t, "alice@example.com", "Sup3rSecret")
	cookie := refreshCookie(loginResp)
	require.NotNil(t, cookie)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/auth/refresh", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.NotEqual(t, cookie.Value, data["refresh_token"])
}

func TestRefreshEndpoint_ReusedTokenRejected(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	_, loginBody := f.login(t, "alice@example.com", "Sup3rSecret")
	raw := loginBody["data"].(map[string]any)["refresh_token"].(string)

	resp := f.postJSON(t, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, raw))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The rotated-out token must not work a second time.
	resp = f.postJSON(t, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, raw))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INACTIVE_TOKEN", errObj["code"])
}

func TestRefreshEndpoint_TokenFromEarlierLoginRejected(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	_, firstBody := f.login(t, "alice@example.com", "Sup3rSecret")
	firstToken := firstBody["data"].(map[string]any)["refresh_token"].(string)

	resp, _ := f.login(t, "alice@example.com", "Sup3rSecret")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The second login started a fresh session and revoked the first one.
	resp = f.postJSON(t, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, firstToken))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INACTIVE_TOKEN", errObj["code"])
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/refresh", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

// --- Revoke ---

func TestRevokeEndpoint_Success(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	_, loginBody := f.login(t, "alice@example.com", "Sup3rSecret")
	raw := loginBody["data"].(map[string]any)["refresh_token"].(string)

	resp := f.postJSON(t, "/api/v1/auth/revoke", fmt.Sprintf(`{"refresh_token":%q}`, raw))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := refreshCookie(resp)
	require.NotNil(t, cookie, "revoke should clear the refresh cookie")
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
	resp.Body.Close()

	// The revoked token is unusable.
	resp = f.postJSON(t, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, raw))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRevokeEndpoint_UnknownToken(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/revoke", `{"refresh_token":"never-issued"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_TOKEN", errObj["code"])
}

// --- Logout ---

func TestLogoutEndpoint_RequiresBearer(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/logout", `{"refresh_token":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLogoutEndpoint_RequiresCustomerRole(t *testing.T) {
	f := newHandlerFixture(t)

	// A valid token without the customer role must not reach the handler.
	token, _, err := f.issuer.Issue("acc-svc", "svc@example.com", "svc", []string{"service"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/auth/logout",
		strings.NewReader(`{"refresh_token":"whatever"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogoutEndpoint_Success(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	_, loginBody := f.login(t, "alice@example.com", "Sup3rSecret")
	data := loginBody["data"].(map[string]any)
	accessToken := data["access_token"].(string)
	raw := data["refresh_token"].(string)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/auth/logout",
		strings.NewReader(fmt.Sprintf(`{"refresh_token":%q}`, raw)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := refreshCookie(resp)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

// --- ForgotPassword / ResetPassword ---

func TestForgotPasswordEndpoint_UniformResponse(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	known := f.postJSON(t, "/api/v1/auth/forgot-password", `{"email":"alice@example.com","client":"web"}`)
	unknown := f.postJSON(t, "/api/v1/auth/forgot-password", `{"email":"nobody@example.com","client":"web"}`)

	assert.Equal(t, http.StatusOK, known.StatusCode)
	assert.Equal(t, http.StatusOK, unknown.StatusCode)

	knownBody := decodeBody(t, known)
	unknownBody := decodeBody(t, unknown)
	assert.Equal(t, knownBody, unknownBody, "responses must not reveal whether the email exists")

	assert.NotEmpty(t, f.producer.resetLinks["alice@example.com"])
	assert.Empty(t, f.producer.resetLinks["nobody@example.com"])
}

func TestResetPasswordEndpoint_FullFlow(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	resp := f.postJSON(t, "/api/v1/auth/forgot-password", `{"email":"alice@example.com","client":"web"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	link := f.producer.resetLinks["alice@example.com"]
	require.NotEmpty(t, link)

	parsed, err := parseResetLink(link)
	require.NoError(t, err)

	resp = f.postJSON(t, "/api/v1/auth/reset-password", fmt.Sprintf(
		`{"user_id":%q,"token":%q,"new_password":"N3wPassword"}`, parsed.userID, parsed.token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Old password out, new password in.
	resp, _ = f.login(t, "alice@example.com", "Sup3rSecret")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.login(t, "alice@example.com", "N3wPassword")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResetPasswordEndpoint_TokenSingleUse(t *testing.T) {
	f := newHandlerFixture(t)
	f.registerAndVerify(t, "alice@example.com")

	resp := f.postJSON(t, "/api/v1/auth/forgot-password", `{"email":"alice@example.com","client":"web"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	parsed, err := parseResetLink(f.producer.resetLinks["alice@example.com"])
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"user_id":%q,"token":%q,"new_password":"N3wPassword"}`, parsed.userID, parsed.token)

	resp = f.postJSON(t, "/api/v1/auth/reset-password", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The stamp rotated, so the same token is dead.
	resp = f.postJSON(t, "/api/v1/auth/reset-password", payload)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

type resetLinkParts struct {
	userID string
	token  string
}

func parseResetLink(link string) (resetLinkParts, error) {
	u, err := url.Parse(link)
	if err != nil {
		return resetLinkParts{}, err
	}
	return resetLinkParts{
		userID: u.Query().Get("userId"),
		token:  u.Query().Get("token"),
	}, nil
}
