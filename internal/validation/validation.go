// Package validation holds the pure input rules applied to account
// requests. Each Check* function reports only the first rule that fails,
// in the order presence, length, format, strength, equality.
package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	MinNameLength     = 2
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

// Rule violations. The messages are shown to end users as-is.
var (
	ErrMissingFields        = errors.New("欄位未正確填寫")
	ErrMissingCredentials   = errors.New("email 或 password 欄位未正確填寫")
	ErrMissingProfileFields = errors.New("要修改的欄位未正確填寫")
	ErrNameTooShort         = errors.New("名字長度至少 2 個字")
	ErrPasswordTooShort     = errors.New("密碼長度至少 8 個字")
	ErrPasswordTooLong      = errors.New("密碼長度不可超過 72 個字元")
	ErrInvalidEmail         = errors.New("請正確輸入 email 格式")
	ErrWeakPassword         = errors.New("密碼需包含英文及數字")
	ErrPasswordMismatch     = errors.New("請確認兩次輸入的密碼是否相同")
	ErrInvalidPhotoURL      = errors.New("請確認照片是否傳入網址")
)

var validate = validator.New()

// CheckRegistration validates a sign-up request.
func CheckRegistration(email, password, confirmPassword, name string) error {
	if !present(email, password, confirmPassword, name) {
		return ErrMissingFields
	}
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		return ErrNameTooShort
	}
	if !longEnough(password) || !longEnough(confirmPassword) {
		return ErrPasswordTooShort
	}
	if tooLong(password) || tooLong(confirmPassword) {
		return ErrPasswordTooLong
	}
	if !IsEmail(email) {
		return ErrInvalidEmail
	}
	if !StrongPassword(password) {
		return ErrWeakPassword
	}
	if password != confirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// CheckCredentials validates a sign-in request.
func CheckCredentials(email, password string) error {
	if !present(email, password) {
		return ErrMissingCredentials
	}
	return nil
}

// CheckPasswordChange validates a new password and its confirmation.
func CheckPasswordChange(password, confirmPassword string) error {
	if !present(password, confirmPassword) {
		return ErrMissingFields
	}
	if !longEnough(password) || !longEnough(confirmPassword) {
		return ErrPasswordTooShort
	}
	if tooLong(password) || tooLong(confirmPassword) {
		return ErrPasswordTooLong
	}
	if !StrongPassword(password) {
		return ErrWeakPassword
	}
	if password != confirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// CheckProfileUpdate validates a partial profile update. Empty strings
// count as absent.
func CheckProfileUpdate(name, photo, gender string) error {
	if name == "" && photo == "" && gender == "" {
		return ErrMissingProfileFields
	}
	if photo != "" && !IsURL(photo) {
		return ErrInvalidPhotoURL
	}
	return nil
}

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// IsURL reports whether s is a syntactically valid absolute URL.
func IsURL(s string) bool {
	return validate.Var(s, "required,url") == nil
}

// StrongPassword reports whether s mixes ASCII letters and digits.
func StrongPassword(s string) bool {
	var letter, digit bool
	for _, r := range s {
		if r > unicode.MaxASCII {
			continue
		}
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(s) >= MinPasswordLength
}

// tooLong counts bytes; bcrypt limits input bytes, not runes.
func tooLong(s string) bool {
	return len(s) > MaxPasswordBytes
}

func present(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}
