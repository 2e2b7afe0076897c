package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletgate/adapters/events"
	"github.com/layer-3/walletgate/adapters/identity"
	"github.com/layer-3/walletgate/adapters/store"
	"github.com/layer-3/walletgate/adapters/tokenizer"
	"github.com/layer-3/walletgate/adapters/verifier"
	"github.com/layer-3/walletgate/config"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/internal/metrics"
	"github.com/layer-3/walletgate/internal/test"
	"github.com/layer-3/walletgate/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var testCookies = config.CookieConfig{
	Secure:      true,
	BindingName: "siwe",
	SessionName: "auth_token",
}

type testServerOptions struct {
	rateLimit      float64
	rateBurst      int
	trustedProxies []string
	service        []service.Option
}

func newTestRouter(t *testing.T, opts testServerOptions) *gin.Engine {
	t.Helper()
	if opts.rateLimit == 0 {
		opts.rateLimit, opts.rateBurst = 1000, 1000
	}

	tk, err := tokenizer.NewJWTTokenizer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	reg := prometheus.NewRegistry()
	mem := store.NewMemoryStore()
	svcOpts := append([]service.Option{service.WithMetrics(metrics.NewAuth(reg))}, opts.service...)
	authService := service.NewAuthService(
		tk,
		verifier.NewSiweVerifier(verifier.WithAllowedDomains(test.Domain)),
		mem,
		mem,
		identity.NewMemoryStore(),
		events.NewWatermillPublisher(pubSub),
		svcOpts...,
	)

	router, err := SetupRouter(authService, RouterConfig{
		Cookies:        testCookies,
		SessionTTL:     service.DefaultSessionTTL,
		RateLimit:      opts.rateLimit,
		RateBurst:      opts.rateBurst,
		TrustedProxies: opts.trustedProxies,
		Gatherer:       reg,
	})
	require.NoError(t, err)
	return router
}

// browser keeps cookies between requests the way a user agent does
type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, router *gin.Engine) *browser {
	return &browser{t: t, router: router, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	b.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (b *browser) nonce() string {
	b.t.Helper()
	rec, body := b.do(http.MethodGet, "/nonce", nil)
	require.Equal(b.t, http.StatusOK, rec.Code)
	return body["nonce"].(string)
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func loginBody(payload core.AuthPayload, nonce string) map[string]any {
	return map[string]any{"payload": payload, "nonce": nonce}
}

func TestNonceSetsBindingCookie(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))

	rec, body := b.do(http.MethodGet, "/nonce", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^[a-z0-9]+$`, body["nonce"])

	cookie := responseCookie(rec, "siwe")
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Zero(t, cookie.MaxAge)
}

func TestNonceOverwritesPreviousBinding(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	wallet := test.NewWallet(t)

	first := b.nonce()
	b.nonce()

	rec, body := b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, first), first))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["isValid"])
}

func TestLoginSetsSessionCookie(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	wallet := test.NewWallet(t)

	nonce := b.nonce()
	rec, body := b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, nonce), nonce))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["isValid"])
	user := body["user"].(map[string]any)
	assert.NotEmpty(t, user["id"])
	assert.Equal(t, wallet.Address, user["walletAddress"])
	assert.Equal(t, true, user["isNewUser"])
	assert.Contains(t, user, "username")
	assert.Contains(t, user, "profilePictureUrl")

	session := responseCookie(rec, "auth_token")
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.True(t, session.Secure)
	assert.Equal(t, "/", session.Path)
	assert.Equal(t, int(service.DefaultSessionTTL.Seconds()), session.MaxAge)

	binding := responseCookie(rec, "siwe")
	require.NotNil(t, binding)
	assert.Negative(t, binding.MaxAge)
}

func TestLoginMalformedBody(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	b.nonce()

	rec, body := b.do(http.MethodPost, "/auth/login", map[string]any{"payload": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, false, body["isValid"])
	assert.Nil(t, responseCookie(rec, "auth_token"))
}

func TestLoginWithoutBindingCookie(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	wallet := test.NewWallet(t)

	rec, body := b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, "abc123"), "abc123"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"status": "error", "isValid": false}, body)
}

func TestLoginClientDeclined(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	wallet := test.NewWallet(t)

	nonce := b.nonce()
	payload := wallet.SignIn(t, nonce)
	payload.Status = core.PayloadStatusError

	rec, body := b.do(http.MethodPost, "/auth/login", loginBody(payload, nonce))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"status": "error", "isValid": false}, body)
	assert.Nil(t, responseCookie(rec, "auth_token"))
}

func TestCompleteVerifiesWithoutSession(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	wallet := test.NewWallet(t)

	nonce := b.nonce()
	payload := wallet.SignIn(t, nonce)
	rec, body := b.do(http.MethodPost, "/auth/complete", loginBody(payload, nonce))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "success", "isValid": true}, body)
	assert.Nil(t, responseCookie(rec, "auth_token"))

	// The nonce was consumed by the verification
	rec, _ = b.do(http.MethodPost, "/auth/complete", loginBody(payload, nonce))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAndLogout(t *testing.T) {
	router := newTestRouter(t, testServerOptions{})
	b := newBrowser(t, router)
	wallet := test.NewWallet(t)

	rec, body := b.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"status": "error", "authenticated": false}, body)

	nonce := b.nonce()
	rec, _ = b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, nonce), nonce))
	require.Equal(t, http.StatusOK, rec.Code)
	token := b.cookies["auth_token"].Value

	rec, body = b.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, wallet.Address, body["user"].(map[string]any)["walletAddress"])

	rec, body = b.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, b.cookies, "auth_token")

	// The revoked token is rejected even when presented as a bearer token
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeAcceptsBearerToken(t *testing.T) {
	router := newTestRouter(t, testServerOptions{})
	b := newBrowser(t, router)
	wallet := test.NewWallet(t)

	nonce := b.nonce()
	rec, _ := b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, nonce), nonce))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+b.cookies["auth_token"].Value)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMeRejectsExpiredSession(t *testing.T) {
	now := time.Now()
	router := newTestRouter(t, testServerOptions{
		service: []service.Option{service.WithClock(func() time.Time { return now })},
	})
	b := newBrowser(t, router)
	wallet := test.NewWallet(t)

	nonce := b.nonce()
	rec, _ := b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, nonce), nonce))
	require.Equal(t, http.StatusOK, rec.Code)

	now = now.Add(service.DefaultSessionTTL + time.Minute)
	rec, _ = b.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithoutSession(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	b.cookies["auth_token"] = &http.Cookie{Name: "auth_token", Value: "garbage"}

	rec, body := b.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, b.cookies, "auth_token")
}

func TestRateLimit(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{rateLimit: 0.001, rateBurst: 2}))

	for i := 0; i < 2; i++ {
		rec, _ := b.do(http.MethodGet, "/nonce", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := b.do(http.MethodGet, "/nonce", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, map[string]any{"status": "error", "isValid": false}, body)
}

func countForwardedNonces(router *gin.Engine, remoteAddr string, n int) int {
	allowed := 0
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/nonce", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	return allowed
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	router := newTestRouter(t, testServerOptions{rateLimit: 0.001, rateBurst: 1})

	assert.Equal(t, 1, countForwardedNonces(router, "192.0.2.1:40000", 20))
}

func TestRateLimitHonorsForwardedForFromTrustedProxy(t *testing.T) {
	router := newTestRouter(t, testServerOptions{
		rateLimit:      0.001,
		rateBurst:      1,
		trustedProxies: []string{"192.0.2.1"},
	})

	assert.Equal(t, 20, countForwardedNonces(router, "192.0.2.1:40000", 20))
}

func TestSetupRouterRejectsInvalidTrustedProxy(t *testing.T) {
	_, err := SetupRouter(nil, RouterConfig{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}

func TestLoginRejectsOversizedBody(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	nonce := b.nonce()

	rec, body := b.do(http.MethodPost, "/auth/login", map[string]any{
		"nonce":   nonce,
		"payload": map[string]any{"message": strings.Repeat("a", maxRequestBody)},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"status": "error", "isValid": false}, body)
	assert.Contains(t, b.cookies, "siwe")
}

func TestMetricsEndpoint(t *testing.T) {
	b := newBrowser(t, newTestRouter(t, testServerOptions{}))
	b.nonce()

	rec, _ := b.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "walletgate_nonces_issued_total 1")
}

// Scenario: the client is issued "abc123", submits a payload for "xyz999",
// then one with an expired window, then a valid one, then replays it.
func TestLoginScenario(t *testing.T) {
	router := newTestRouter(t, testServerOptions{
		service: []service.Option{service.WithNonceSource(func() (string, error) { return "abc123", nil })},
	})
	b := newBrowser(t, router)
	wallet := test.NewWallet(t)

	require.Equal(t, "abc123", b.nonce())
	rec, body := b.do(http.MethodPost, "/auth/login", loginBody(wallet.SignIn(t, "xyz999"), "xyz999"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["isValid"])
	assert.Nil(t, responseCookie(rec, "auth_token"))

	// Every failure consumes the nonce, so the client restarts the handshake
	nonce := b.nonce()
	expired := wallet.Sign(t, wallet.Message(nonce, time.Now().Add(-30*24*time.Hour)))
	rec, body = b.do(http.MethodPost, "/auth/login", loginBody(expired, nonce))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["isValid"])
	assert.Nil(t, responseCookie(rec, "auth_token"))

	nonce = b.nonce()
	binding := b.cookies["siwe"]
	payload := wallet.SignIn(t, nonce)
	rec, body = b.do(http.MethodPost, "/auth/login", loginBody(payload, nonce))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["isValid"])
	require.NotNil(t, responseCookie(rec, "auth_token"))

	// Replaying the same payload with the same binding cookie
	b.cookies["siwe"] = binding
	delete(b.cookies, "auth_token")
	rec, body = b.do(http.MethodPost, "/auth/login", loginBody(payload, nonce))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["isValid"])
	assert.Nil(t, responseCookie(rec, "auth_token"))
}

func TestIPLimiterForgetsIdleClients(t *testing.T) {
	now := time.Now()
	l := NewIPLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("198.51.100.7"))
	assert.False(t, l.Allow("198.51.100.7"))
	assert.True(t, l.Allow("203.0.113.9"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("203.0.113.9"))
	assert.Len(t, l.entries, 1)
}

func TestIPLimiterSweepsAtMostOncePerTTL(t *testing.T) {
	start := time.Now()
	now := start
	l := NewIPLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("198.51.100.7")
	now = start.Add(30 * time.Second)
	l.Allow("198.51.100.8")
	now = start.Add(61 * time.Second)
	l.Allow("203.0.113.9")
	require.Len(t, l.entries, 2)

	// 198.51.100.8 is idle past ttl, but the last sweep was under a ttl ago
	now = start.Add(101 * time.Second)
	l.Allow("203.0.113.9")
	assert.Len(t, l.entries, 2)

	now = start.Add(121 * time.Second)
	l.Allow("203.0.113.9")
	assert.Len(t, l.entries, 1)
}
