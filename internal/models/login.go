package models

import "time"

// SessionCookie is a browser cookie harvested after a successful login.
type SessionCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}

// LoginResult is the transient outcome of one automation login attempt.
// It is never persisted.
type LoginResult struct {
	Success             bool            `json:"success"`
	Message             string          `json:"message"`
	Cookies             []SessionCookie `json:"-"`
	RequiresManualLogin bool            `json:"requiresManualLogin,omitempty"`
}
