package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/store"
	"github.com/accounthub/apiserver/internal/validation"
	"github.com/accounthub/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	msgEmailTaken    = "此帳號已有人使用，請試試其他 Email 帳號"
	msgNoSuchEmail   = "無此使用者資訊請確認 email 帳號是否正確"
	msgNoSuchUser    = "無此使用者資訊"
	msgWrongPassword = "請確認密碼是否正確，請再嘗試輸入"
	msgPhotoType     = "請上傳 jpg、png、gif 或 webp 格式的圖片"
	msgPhotoSize     = "圖片大小不可超過 5MB"
	msgPhotoDisabled = "尚未設定圖片儲存空間"
	msgInternal      = "系統錯誤，請洽系統管理員"
)

// MaxPhotoBytes caps avatar uploads.
const MaxPhotoBytes = 5 << 20

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByEmailWithPassword(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd types.ProfileUpdate) error
}

// PasswordHasher hashes passwords and compares them against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// TokenIssuer signs tokens that identify a user.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// EventPublisher receives account events. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// PhotoStorage stores avatar images and maps keys to public URLs and back.
type PhotoStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Key(url string) (string, bool)
}

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// ProfileInput is a partial profile change. Empty fields are left untouched.
type ProfileInput struct {
	Name   string
	Photo  string
	Gender string
}

// PhotoUpload is an avatar image to store for a user.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AccountService implements the account use-cases: sign-up, sign-in,
// profile reads and updates, and password changes.
type AccountService struct {
	repo   UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	events EventPublisher
	photos PhotoStorage
	log    *zap.Logger
}

func NewAccountService(repo UserRepository, hasher PasswordHasher, tokens TokenIssuer, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		events: events.Nop{},
		log:    logger,
	}
}

// WithEvents sets the publisher that receives account events.
func (s *AccountService) WithEvents(p EventPublisher) *AccountService {
	if p != nil {
		s.events = p
	}
	return s
}

// WithPhotoStorage enables avatar uploads.
func (s *AccountService) WithPhotoStorage(p PhotoStorage) *AccountService {
	s.photos = p
	return s
}

// PhotoUploadsEnabled reports whether an avatar store is configured.
func (s *AccountService) PhotoUploadsEnabled() bool {
	return s.photos != nil
}

// CreateAccount registers a new user. The password is hashed here, before
// it reaches the store.
func (s *AccountService) CreateAccount(ctx context.Context, in RegisterInput) (types.User, error) {
	if err := validation.CheckRegistration(in.Email, in.Password, in.ConfirmPassword, in.Name); err != nil {
		return types.User{}, ValidationError(err.Error(), err)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ValidationError(msgEmailTaken, store.ErrDuplicateEmail)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, InternalError(fmt.Errorf("lookup email: %w", err))
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, InternalError(fmt.Errorf("hash password: %w", err))
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:       in.Email,
		Password:    hashed,
		Name:        in.Name,
		IsValidator: true,
	})
	if err != nil {
		// The unique email index catches sign-ups racing past the lookup above.
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, ValidationError(msgEmailTaken, err)
		}
		if store.IsFieldError(err) {
			return types.User{}, ValidationError(fieldMessage(err), err)
		}
		return types.User{}, InternalError(fmt.Errorf("create user: %w", err))
	}

	s.log.Info("account created", zap.String("user_id", user.ID.Hex()))
	s.events.Publish(ctx, events.New(events.AccountCreated, user))
	user.Password = ""
	return user, nil
}

// Authenticate verifies email and password and returns a signed token.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (string, error) {
	if err := validation.CheckCredentials(email, password); err != nil {
		return "", ValidationError(err.Error(), err)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		return "", s.lookupError(err, msgNoSuchEmail)
	}

	// The default projection omits the hash, so fetch it explicitly.
	user, err := s.repo.GetByEmailWithPassword(ctx, email)
	if err != nil {
		return "", s.lookupError(err, msgNoSuchEmail)
	}

	ok, err := s.hasher.Compare(user.Password, password)
	if err != nil {
		return "", InternalError(fmt.Errorf("compare password: %w", err))
	}
	if !ok {
		s.log.Info("sign-in rejected", zap.String("user_id", user.ID.Hex()))
		return "", AuthenticationError(msgWrongPassword)
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return "", InternalError(fmt.Errorf("issue token: %w", err))
	}

	s.events.Publish(ctx, events.New(events.LoginSucceeded, user))
	return token, nil
}

// GetProfile returns the caller's record without the password hash.
func (s *AccountService) GetProfile(ctx context.Context, userID primitive.ObjectID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, s.lookupError(err, msgNoSuchUser)
	}
	user.Password = ""
	return user, nil
}

// ChangePassword replaces the caller's password with a freshly hashed one.
func (s *AccountService) ChangePassword(ctx context.Context, userID primitive.ObjectID, password, confirmPassword string) error {
	if err := validation.CheckPasswordChange(password, confirmPassword); err != nil {
		return ValidationError(err.Error(), err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return InternalError(fmt.Errorf("hash password: %w", err))
	}

	if err := s.repo.UpdatePassword(ctx, userID, hashed); err != nil {
		return s.lookupError(err, msgNoSuchUser)
	}

	s.log.Info("password changed", zap.String("user_id", userID.Hex()))
	s.events.Publish(ctx, events.New(events.PasswordChanged, types.User{ID: userID}))
	return nil
}

// UpdateProfile applies the supplied fields and returns the updated record.
func (s *AccountService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (types.User, error) {
	if err := validation.CheckProfileUpdate(in.Name, in.Photo, in.Gender); err != nil {
		return types.User{}, ValidationError(err.Error(), err)
	}

	if err := s.repo.UpdateProfile(ctx, userID, in.update()); err != nil {
		if store.IsFieldError(err) {
			return types.User{}, ValidationError(fieldMessage(err), err)
		}
		return types.User{}, s.lookupError(err, msgNoSuchUser)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, s.lookupError(err, msgNoSuchUser)
	}

	s.events.Publish(ctx, events.New(events.ProfileUpdated, user))
	user.Password = ""
	return user, nil
}

// UploadPhoto stores an avatar image and points the caller's photo at it.
func (s *AccountService) UploadPhoto(ctx context.Context, userID primitive.ObjectID, upload PhotoUpload) (types.User, error) {
	if s.photos == nil {
		return types.User{}, NotFoundError(msgPhotoDisabled, nil)
	}

	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	ext, ok := photoExtensions[contentType]
	if !ok {
		return types.User{}, ValidationError(msgPhotoType, nil)
	}
	if upload.Size <= 0 || upload.Size > MaxPhotoBytes {
		return types.User{}, ValidationError(msgPhotoSize, nil)
	}

	previous, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, s.lookupError(err, msgNoSuchUser)
	}

	prefix := avatarPrefix(userID)
	key := prefix + uuid.NewString() + ext
	if err := s.photos.Put(ctx, key, upload.Body, upload.Size, contentType); err != nil {
		return types.User{}, InternalError(fmt.Errorf("store photo: %w", err))
	}
	s.log.Info("photo stored", zap.String("user_id", userID.Hex()), zap.String("key", key))

	user, err := s.UpdateProfile(ctx, userID, ProfileInput{Photo: s.photos.URL(key)})
	if err != nil {
		s.removePhoto(ctx, userID, key)
		return types.User{}, err
	}

	// Only avatars this service stored for the caller are removed.
	if old, ok := s.photos.Key(previous.Photo); ok && old != key && strings.HasPrefix(old, prefix) {
		s.removePhoto(ctx, userID, old)
	}
	return user, nil
}

// removePhoto deletes a stored avatar. Failures are logged and otherwise
// ignored.
func (s *AccountService) removePhoto(ctx context.Context, userID primitive.ObjectID, key string) {
	if err := s.photos.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("remove photo",
			zap.String("user_id", userID.Hex()),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	s.log.Info("photo removed", zap.String("user_id", userID.Hex()), zap.String("key", key))
}

func avatarPrefix(userID primitive.ObjectID) string {
	return "avatars/" + userID.Hex() + "/"
}

// lookupError maps a store failure to a not-found or internal error.
func (s *AccountService) lookupError(err error, notFoundMessage string) error {
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError(notFoundMessage, err)
	}
	return InternalError(err)
}

func (in ProfileInput) update() types.ProfileUpdate {
	var upd types.ProfileUpdate
	if in.Name != "" {
		upd.Name = &in.Name
	}
	if in.Photo != "" {
		upd.Photo = &in.Photo
	}
	if in.Gender != "" {
		upd.Gender = &in.Gender
	}
	return upd
}

// fieldMessage returns the user-facing part of a store field error.
func fieldMessage(err error) string {
	for _, known := range []error{store.ErrInvalidName, store.ErrInvalidGender, store.ErrInvalidDocument, store.ErrEmptyUpdate} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
