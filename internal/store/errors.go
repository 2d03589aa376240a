package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("email already in use")

// Field rule violations enforced on write. Their messages are user-facing.
var (
	ErrInvalidName     = errors.New("名字長度至少 2 個字")
	ErrInvalidGender   = errors.New("性別僅能為 male、female 或 other")
	ErrInvalidDocument = errors.New("使用者資料格式不正確")
	ErrEmptyUpdate     = errors.New("要修改的欄位未正確填寫")
)

// IsFieldError reports whether err is one of the field rule violations.
func IsFieldError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidGender) ||
		errors.Is(err, ErrInvalidDocument) ||
		errors.Is(err, ErrEmptyUpdate)
}
