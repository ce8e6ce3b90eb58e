package tokengenerator

import (
	"net/http"
	"time"
)

// CookieSetter writes session tokens to cookies.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) error
	ClearCookie(w http.ResponseWriter, tokenName string) error
}

type BaseCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func (c *BaseCookieSetter) SetCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) error {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenName,
		Path:     c.Path,
		Value:    tokenValue,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

func (c *BaseCookieSetter) ClearCookie(w http.ResponseWriter, tokenName string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenName,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	})
	return nil
}

func NewCookieSetter(httpOnly, secure bool) CookieSetter {
	return &BaseCookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
