package session

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CookieName is the browser cookie holding the session id and refresh token.
	CookieName = "citcs_session"

	sessionIDKey    = "sid"
	refreshTokenKey = "rt"
	entryContextKey    = "session_entry"
	registryContextKey = "session_registry"
)

// Middleware binds every request to its browser session entry, creating one
// on first visit, and rotates the access token when it is about to expire.
func Middleware(reg *Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := sessions.Default(c)

		id, _ := store.Get(sessionIDKey).(string)
		fresh := id == ""
		if fresh {
			id = uuid.NewString()
		}
		refreshToken, _ := store.Get(refreshTokenKey).(string)

		entry, err := reg.Acquire(id, refreshToken)
		if err != nil {
			logger.Error("Failed to acquire browser session", zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if err := entry.Client.RefreshIfNeeded(c.Request.Context()); err != nil {
			logger.Warn("Token refresh failed, keeping current session", zap.String("session_id", id), zap.Error(err))
		}

		Attach(c, entry)
		c.Set(registryContextKey, reg)
		if err := persist(c, fresh); err != nil {
			logger.Warn("Failed to persist session cookie", zap.Error(err))
		}
		c.Next()
	}
}

// Attach stores entry on the request context.
func Attach(c *gin.Context, entry *Entry) {
	c.Set(entryContextKey, entry)
}

// EntryFrom returns the entry bound by Middleware, or nil.
func EntryFrom(c *gin.Context) *Entry {
	v, ok := c.Get(entryContextKey)
	if !ok {
		return nil
	}
	entry, _ := v.(*Entry)
	return entry
}

// Persist writes the client's current refresh token into the cookie. It must
// run before the response body is written.
func Persist(c *gin.Context) error {
	return persist(c, false)
}

// Rotate moves the bound entry to a new session id and writes it to the
// cookie. Call it after the visitor's identity changes, before the response
// body is written. Without a registry on the request it only persists.
func Rotate(c *gin.Context) error {
	entry := EntryFrom(c)
	v, ok := c.Get(registryContextKey)
	reg, _ := v.(*Registry)
	if entry == nil || !ok || reg == nil {
		return Persist(c)
	}
	rotated, err := reg.Rotate(entry.ID)
	if err != nil {
		return err
	}
	Attach(c, rotated)
	return persist(c, true)
}

func persist(c *gin.Context, force bool) error {
	entry := EntryFrom(c)
	if entry == nil {
		return nil
	}
	store := sessions.Default(c)
	token := entry.Client.RefreshToken()

	current, _ := store.Get(refreshTokenKey).(string)
	if !force && current == token {
		return nil
	}
	store.Set(sessionIDKey, entry.ID)
	if token == "" {
		store.Delete(refreshTokenKey)
	} else {
		store.Set(refreshTokenKey, token)
	}
	return store.Save()
}
