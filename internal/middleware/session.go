package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
)

// SessionCookieName is the signed session cookie.
const SessionCookieName = "MANGA_WEB_SESSION"

const sessionTTL = 30 * 24 * time.Hour

// SessionData is everything the storefront keeps per browser. It travels in
// a signed cookie; the cart itself lives in the cart backend under CartID.
type SessionData struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale,omitempty"`
	CartID    string    `json:"cart,omitempty"`
	CSRFToken string    `json:"csrf,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	dirty bool
}

// SessionConfig configures Session. A nil Codec gets an ephemeral key.
type SessionConfig struct {
	Codec  *securecookie.SecureCookie
	Secure bool
}

// NewSessionCodec returns the cookie codec for hashKey. An empty key is
// replaced by a random one; sessions signed with it do not survive a restart.
func NewSessionCodec(hashKey []byte) *securecookie.SecureCookie {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(sessionTTL / time.Second))
	return codec
}

// Session loads or initializes the session and stores it in the request
// context. A new or modified session is written back before the first byte
// of the response.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	codec := cfg.Codec
	if codec == nil {
		codec = NewSessionCodec(nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sd, fromCookie := readSessionCookie(r, codec)
			if sd.ID == "" {
				now := time.Now().UTC()
				sd = &SessionData{
					ID:        ulid.Make().String(),
					CSRFToken: newCSRFToken(),
					CreatedAt: now,
					UpdatedAt: now,
					dirty:     true,
				}
			}
			rw := NewResponseRecorder(w)
			rw.SetBeforeWrite(func(w http.ResponseWriter) {
				if sd.dirty || !fromCookie {
					writeSessionCookie(w, sd, codec, cfg.Secure)
				}
			})
			ctx := context.WithValue(r.Context(), ctxKeySession, sd)
			next.ServeHTTP(rw, r.WithContext(ctx))
			if !rw.Wrote() {
				rw.WriteHeader(http.StatusOK)
			}
		})
	}
}

// GetSession returns the request session. Outside Session it returns a
// detached empty value.
func GetSession(r *http.Request) *SessionData {
	if sd, ok := r.Context().Value(ctxKeySession).(*SessionData); ok {
		return sd
	}
	return &SessionData{}
}

// MarkDirty flags the session to be written back.
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// EnsureCartID returns the cart id, allocating one on first use.
func (s *SessionData) EnsureCartID() string {
	if s.CartID == "" {
		s.CartID = ulid.Make().String()
		s.MarkDirty()
	}
	return s.CartID
}

func readSessionCookie(r *http.Request, codec *securecookie.SecureCookie) (*SessionData, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := codec.Decode(SessionCookieName, c.Value, &sd); err != nil {
		return &SessionData{}, false
	}
	return &sd, true
}

// EncodeSession produces a signed cookie value; tests use it to forge sessions.
func EncodeSession(sd *SessionData, codec *securecookie.SecureCookie) (string, error) {
	return codec.Encode(SessionCookieName, sd)
}

func writeSessionCookie(w http.ResponseWriter, sd *SessionData, codec *securecookie.SecureCookie, secure bool) {
	value, err := EncodeSession(sd, codec)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}
