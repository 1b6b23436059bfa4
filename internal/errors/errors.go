package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Credential errors

type ErrDecryption struct {
	Reason string
}

func (e *ErrDecryption) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("decryption failed: %s", e.Reason)
	}
	return "decryption failed: invalid key or corrupted data"
}

type ErrUserNotFound struct {
	UserID string
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

type ErrInvalidMarketplace struct {
	Marketplace string
}

func (e *ErrInvalidMarketplace) Error() string {
	return fmt.Sprintf("invalid marketplace: %s", e.Marketplace)
}

// Automation errors surface the stage at which a login attempt failed.
// They are translated into a generic failure result at the call site and
// never crash the request path.

type ErrBrowserLaunch struct {
	Err error
}

func (e *ErrBrowserLaunch) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *ErrBrowserLaunch) Unwrap() error {
	return e.Err
}

type ErrNavigationTimeout struct {
	URL string
	Err error
}

func (e *ErrNavigationTimeout) Error() string {
	return fmt.Sprintf("navigation to %s timed out - the site might be slow or blocking automated access", e.URL)
}

func (e *ErrNavigationTimeout) Unwrap() error {
	return e.Err
}

type ErrFormNotFound struct {
	Marketplace string
}

func (e *ErrFormNotFound) Error() string {
	return fmt.Sprintf("login form not found on %s - the page layout may have changed", e.Marketplace)
}

type ErrSubmitControlMissing struct {
	Marketplace string
}

func (e *ErrSubmitControlMissing) Error() string {
	return fmt.Sprintf("submit button not found on %s", e.Marketplace)
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}
