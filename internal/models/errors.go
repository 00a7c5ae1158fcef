package models

import "errors"

// Ошибки бизнес-уровня. Сервисы оборачивают их через %w, вызывающая
// сторона различает случаи errors.Is.
var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrUsernameReserved     = errors.New("username is reserved")
	ErrUserNotFound         = errors.New("user not found")
	ErrTooManyAttempts      = errors.New("too many login attempts")
	ErrInvalidCode          = errors.New("invalid code")
	ErrCodeExhausted        = errors.New("activation limit reached")
	ErrDuplicateCode        = errors.New("code already exists")
	ErrPromocodeNotFound    = errors.New("promocode not found")
	ErrMuted                = errors.New("user is muted")
	ErrSelfTarget           = errors.New("operation cannot target yourself")
	ErrEmptyMessage         = errors.New("message has no content")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrProfileLocked        = errors.New("profile editing is locked")
	ErrPasswordMismatch     = errors.New("current password does not match")
	ErrPasswordConfirmation = errors.New("password confirmation does not match")
	ErrInvalidDays          = errors.New("days must be positive")
	ErrReportNotFound       = errors.New("report not found")
	ErrNoChanges            = errors.New("nothing to update")
)
