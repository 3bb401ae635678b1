package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/manga-web/internal/i18n"
	"finitefield.org/manga-web/internal/observability"
)

var testCodec = NewSessionCodec([]byte("test-signing-key"))

func encodeSession(t *testing.T, sd *SessionData) string {
	t.Helper()
	v, err := EncodeSession(sd, testCodec)
	require.NoError(t, err)
	return v
}

func sessionCookie(t *testing.T, res *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie", SessionCookieName)
	return nil
}

func TestSessionIssuesSignedCookieAndReadsItBack(t *testing.T) {
	var seen []*SessionData
	h := Session(SessionConfig{Codec: testCodec})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSession(r)
		s.EnsureCartID()
		seen = append(seen, s)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	c := sessionCookie(t, rec.Result())
	require.True(t, c.HttpOnly)
	require.NotEmpty(t, seen[0].CartID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, seen[0].ID, seen[1].ID)
	require.Equal(t, seen[0].CartID, seen[1].CartID, "cart id is stable across requests")
	require.Empty(t, rec.Result().Cookies(), "unchanged session is not rewritten")
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	var got *SessionData
	h := Session(SessionConfig{Codec: testCodec})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r)
	}))
	forged, err := EncodeSession(&SessionData{ID: "victim", CartID: "victim-cart"}, NewSessionCodec([]byte("other-key")))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: forged})
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "victim", got.ID)
	require.Empty(t, got.CartID)
}

func TestSessionIgnoresUnsignedCookie(t *testing.T) {
	var got *SessionData
	h := Session(SessionConfig{Codec: testCodec})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "eyJpZCI6InZpY3RpbSJ9"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NotEqual(t, "victim", got.ID)
	require.NotEmpty(t, got.ID)

	var decoded SessionData
	require.NoError(t, testCodec.Decode(SessionCookieName, sessionCookie(t, rec.Result()).Value, &decoded))
	require.Equal(t, got.ID, decoded.ID, "replacement session is issued through the codec")
}

func TestSessionCookieWrittenWhenHandlerWritesNothing(t *testing.T) {
	h := Session(SessionConfig{Codec: testCodec, Secure: true})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	require.True(t, sessionCookie(t, rec.Result()).Secure)
}

func withSession(h http.Handler) http.Handler {
	return Session(SessionConfig{Codec: testCodec})(h)
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	sd := &SessionData{ID: "s1", CSRFToken: "tok"}
	h := withSession(CSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/cart/clear", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encodeSession(t, sd)})
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestCSRFAcceptsHeaderOrFormToken(t *testing.T) {
	sd := &SessionData{ID: "s1", CSRFToken: "tok"}
	h := withSession(CSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/cart/clear", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encodeSession(t, sd)})
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	req.Header.Set(CSRFHeader, "tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/cart/clear", strings.NewReader("csrf_token=tok"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encodeSession(t, sd)})
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTabIDFromHeaderOrQuery(t *testing.T) {
	var got string
	h := Tab(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = TabID(r.Context()) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TabIDHeader, "tab-01<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "tab-01script", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cart/events?tab=abc_1", nil))
	require.Equal(t, "abc_1", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, got)
}

func TestHTMXFlag(t *testing.T) {
	var got bool
	h := HTMX(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = IsHTMX(r.Context()) }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, got)
	require.Contains(t, rec.Header().Values("Vary"), "HX-Request")
}

func TestLoggerEmitsRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var ctxLogger *zap.Logger
	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = observability.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set(TabIDHeader, "t1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, ctxLogger)
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/cart/items", fields["path"])
	require.EqualValues(t, http.StatusTeapot, fields["status"])
	require.Equal(t, true, fields["htmx"])
	require.Equal(t, "t1", fields["tab_id"])
}

func TestLocalePrefersQueryThenCookieThenHeader(t *testing.T) {
	bundle, err := i18n.Load("../../locales", "ru", []string{"ru", "en"})
	require.NoError(t, err)
	var lang string
	h := withSession(Locale(bundle)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { lang = Lang(r) })))

	req := httptest.NewRequest(http.MethodGet, "/?hl=en", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "en", lang)
	require.Equal(t, "en", rec.Header().Get("Content-Language"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LangCookieName, Value: "en"})
	req.Header.Set("Accept-Language", "ru")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "en", lang)

	req = httptest.NewRequest(http.MethodGet, "/?hl=xx", nil)
	req.Header.Set("Accept-Language", "de, en;q=0.5")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "en", lang)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "ru", lang)
}

func TestLangWithoutMiddleware(t *testing.T) {
	require.Equal(t, "ru", Lang(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestAssetsETagAndNotModified(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o644))
	h := Assets("/assets", dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "body{}", rec.Body.String())
	etag := rec.Header().Get("ETag")
	require.True(t, strings.HasPrefix(etag, `W/"`))

	req := httptest.NewRequest(http.MethodGet, "/assets/app.css", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "r1")
	id, ok := RequestID(ctx)
	require.True(t, ok)
	require.Equal(t, "r1", id)
	require.Empty(t, TabID(ctx))
}

func TestResponseRecorderRunsHookOnce(t *testing.T) {
	calls := 0
	rec := httptest.NewRecorder()
	rw := NewResponseRecorder(rec)
	rw.SetBeforeWrite(func(w http.ResponseWriter) { calls++; w.Header().Set("X-Hook", "1") })
	_, _ = rw.Write([]byte("a"))
	_, _ = rw.Write([]byte("b"))
	require.Equal(t, 1, calls)
	require.Equal(t, "1", rec.Header().Get("X-Hook"))
	require.True(t, rw.Wrote())

	_, _, err := rw.Hijack()
	require.Error(t, err, "httptest recorder cannot be hijacked")
}
