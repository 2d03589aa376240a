package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/accounthub/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgSignedUp        = "成功建立使用者帳號"
	msgSignedIn        = "登入成功"
	msgProfileFetched  = "成功取得使用者資訊"
	msgPasswordUpdated = "成功更新使用者密碼！"
	msgProfileUpdated  = "成功更新使用者資訊！"
	msgPhotoMissing    = "請選擇要上傳的圖片"
	msgPhotoTooLarge   = "圖片大小不可超過 5MB"

	formFieldPhoto     = "photo"
	maxMultipartMemory = 8 << 20
	sniffLen           = 512
)

// AccountHandler serves the /users endpoints.
type AccountHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, log: logger}
}

// AccountRouter registers account routes on the given router. The photo
// upload route exists only when the service has object storage.
func AccountRouter(
	r chi.Router,
	accounts *services.AccountService,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewAccountHandler(accounts, logger)

	r.Post("/sign_up", handler.SignUp)
	r.Post("/sign_in", handler.SignIn)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/profile", handler.GetProfile)
		r.Patch("/profile", handler.UpdateProfile)
		r.Post("/updatePassword", handler.UpdatePassword)
		if accounts.PhotoUploadsEnabled() {
			r.Post("/profile/photo", handler.UploadPhoto)
		}
	})
}

type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UpdatePasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name"`
	Photo  string `json:"photo"`
	Gender string `json:"gender"`
}

// SignUp creates an account.
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.NameValidation, msgBadRequest)
		return
	}

	if _, err := h.accounts.CreateAccount(r.Context(), services.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
	}); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgSignedUp, nil)
}

// SignIn exchanges credentials for a token.
func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.NameValidation, msgBadRequest)
		return
	}

	token, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgSignedIn, TokenResponse{Token: token})
}

// GetProfile returns the authenticated caller's profile.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
		return
	}

	user, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgProfileFetched, user)
}

// UpdatePassword replaces the caller's password.
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
		return
	}

	var req UpdatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.NameValidation, msgBadRequest)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), userID, req.Password, req.ConfirmPassword); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgPasswordUpdated, struct{}{})
}

// UpdateProfile applies a partial profile change.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, services.NameValidation, msgBadRequest)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, services.ProfileInput{
		Name:   req.Name,
		Photo:  req.Photo,
		Gender: req.Gender,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgProfileUpdated, user)
}

// UploadPhoto stores a multipart avatar image and sets it as the caller's photo.
func (h *AccountHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, nameAuthorization, msgNotLoggedIn)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, services.NameValidation, msgPhotoTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, services.NameValidation, msgBadRequest)
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldPhoto)
	if err != nil {
		writeError(w, http.StatusBadRequest, services.NameValidation, msgPhotoMissing)
		return
	}
	defer file.Close()

	// The declared part type is not trusted; sniff the leading bytes.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, services.NameValidation, msgBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	user, err := h.accounts.UploadPhoto(r.Context(), userID, services.PhotoUpload{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(head[:n]),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgProfileUpdated, user)
}
