package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/accounthub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"

	// codeDocumentValidationFailure is returned when a write violates the
	// collection's $jsonSchema validator.
	codeDocumentValidationFailure = 121

	minNameLength = 2
)

// withoutPassword is the default projection for user reads.
var withoutPassword = bson.M{"password": 0}

// UserRepository handles persistence for users in MongoDB.
type UserRepository struct {
	c   *mongo.Collection
	now func() time.Time
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{c: db.Collection(usersCollection), now: time.Now}
}

// GetByID loads a user by id without the password hash.
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(withoutPassword))
}

// GetByEmail loads a user by email without the password hash.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)}, options.FindOne().SetProjection(withoutPassword))
}

// GetByEmailWithPassword loads a user by email including the password hash.
// Only the authentication path should call it.
func (r *UserRepository) GetByEmailWithPassword(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)}, options.FindOne())
}

// Create inserts a new user. The password must already be hashed.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	name, err := normalizeName(user.Name)
	if err != nil {
		return types.User{}, err
	}
	user.ID = primitive.NewObjectID()
	user.Email = NormalizeEmail(user.Email)
	user.Name = name
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.c.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrDuplicateEmail
		}
		if isValidationFailure(err) {
			return types.User{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return types.User{}, err
	}
	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.updateOne(ctx, id, bson.M{
		"password":  passwordHash,
		"updatedAt": r.now().UTC(),
	})
}

// UpdateProfile applies the non-nil fields of upd.
func (r *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd types.ProfileUpdate) error {
	set, err := profileSet(upd)
	if err != nil {
		return err
	}
	set["updatedAt"] = r.now().UTC()
	return r.updateOne(ctx, id, set)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (types.User, error) {
	var user types.User
	if err := r.c.FindOne(ctx, filter, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) updateOne(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	result, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if isValidationFailure(err) {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// profileSet checks the field rules for upd and builds its $set document.
func profileSet(upd types.ProfileUpdate) (bson.M, error) {
	if upd.Empty() {
		return nil, ErrEmptyUpdate
	}
	set := bson.M{}
	if upd.Name != nil {
		name, err := normalizeName(*upd.Name)
		if err != nil {
			return nil, err
		}
		set["name"] = name
	}
	if upd.Photo != nil {
		set["photo"] = strings.TrimSpace(*upd.Photo)
	}
	if upd.Gender != nil {
		if !types.ValidGender(*upd.Gender) {
			return nil, ErrInvalidGender
		}
		set["gender"] = *upd.Gender
	}
	return set, nil
}

// normalizeName trims name and checks its length.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidationFailure(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeDocumentValidationFailure)
	}
	return false
}
