package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender values accepted on a user profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User represents an account in the system.
// It contains identity, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned at creation.
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`

	// Email is the user's login key. It is stored trimmed and lower-cased
	// and is unique across all users.
	Email string `json:"email" bson:"email"`

	// Password stores the bcrypt hash of the user's password.
	// It is excluded from the default store projection and never
	// exposed in API responses.
	Password string `json:"-" bson:"password,omitempty"`

	// Name is the user's display name.
	Name string `json:"name" bson:"name"`

	// Photo is an optional URL pointing at the user's avatar.
	Photo string `json:"photo,omitempty" bson:"photo,omitempty"`

	// Gender is optional and, when set, one of the Gender* constants.
	Gender string `json:"gender,omitempty" bson:"gender,omitempty"`

	// IsValidator marks accounts created through sign-up.
	IsValidator bool `json:"isValidator" bson:"isValidator"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched by the store.
type ProfileUpdate struct {
	Name   *string
	Photo  *string
	Gender *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Photo == nil && u.Gender == nil
}

// ValidGender reports whether g is an accepted gender value.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}
