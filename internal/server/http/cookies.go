package httpserver

import (
	"net/http"
	"time"

	"github.com/and161185/ctfarena/internal/token"
)

// CookieOptions describe the session cookie.
type CookieOptions struct {
	Name   string
	Domain string
	Secure bool
}

func (o CookieOptions) session(value string) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   int(token.TTL / time.Second),
		Secure:   o.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (o CookieOptions) cleared() *http.Cookie {
	c := o.session("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
