package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
	"github.com/dmitrijs2005/channelhub/internal/server/services"
)

// Accounts is the session and profile surface served over HTTP.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshSession(ctx context.Context, token string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context) (*models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error)
}

// Media issues presigned URLs for profile images.
type Media interface {
	UpdateAvatar(ctx context.Context, userID string) (*models.MediaUpload, error)
	UpdateCoverImage(ctx context.Context, userID string) (*models.MediaUpload, error)
	MediaURL(ctx context.Context, key string) (string, error)
}

type UserHandler struct {
	accounts Accounts
	media    Media
	cookies  cookieJar
	logger   logging.Logger
}

type registerRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

type mediaURLResponse struct {
	Kind models.MediaKind `json:"kind"`
	URL  string           `json:"url"`
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.accounts.Register(r.Context(), services.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.fail(r, w, "register", err)
		return
	}
	writeOK(w, http.StatusCreated, u, "User registered successfully")
}

func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(r, w, "login", err)
		return
	}

	h.cookies.setTokens(w, res.Tokens)
	writeOK(w, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// refreshToken takes the token from the refreshToken cookie, falling back to
// the JSON body.
func (h *UserHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeError(w, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.accounts.RefreshSession(r.Context(), token)
	if err != nil {
		h.cookies.expire(w)
		h.fail(r, w, "refresh", err)
		return
	}

	h.cookies.setTokens(w, pair)
	writeOK(w, http.StatusOK, pair, "Access token refreshed")
}

func (h *UserHandler) logout(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	if err := h.accounts.Logout(r.Context(), u.ID); err != nil {
		h.fail(r, w, "logout", err)
		return
	}
	h.cookies.expire(w)
	writeOK(w, http.StatusOK, struct{}{}, "User logged out")
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	u := mustUser(r)
	if err := h.accounts.ChangePassword(r.Context(), u.ID, req.OldPassword, req.NewPassword); err != nil {
		h.fail(r, w, "change password", err)
		return
	}
	writeOK(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *UserHandler) currentUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.CurrentUser(r.Context())
	if err != nil {
		h.fail(r, w, "current user", err)
		return
	}
	writeOK(w, http.StatusOK, u, "Current user fetched successfully")
}

func (h *UserHandler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.accounts.UpdateAccount(r.Context(), mustUser(r).ID, req.FullName, req.Email)
	if err != nil {
		h.fail(r, w, "update account", err)
		return
	}
	writeOK(w, http.StatusOK, u, "Account details updated successfully")
}

func (h *UserHandler) avatar(w http.ResponseWriter, r *http.Request) {
	up, err := h.media.UpdateAvatar(r.Context(), mustUser(r).ID)
	if err != nil {
		h.fail(r, w, "avatar", err)
		return
	}
	writeOK(w, http.StatusOK, up, "Avatar upload issued")
}

func (h *UserHandler) coverImage(w http.ResponseWriter, r *http.Request) {
	up, err := h.media.UpdateCoverImage(r.Context(), mustUser(r).ID)
	if err != nil {
		h.fail(r, w, "cover image", err)
		return
	}
	writeOK(w, http.StatusOK, up, "Cover image upload issued")
}

func (h *UserHandler) mediaURL(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)

	var key string
	kind := models.MediaKind(chi.URLParam(r, "kind"))
	switch kind {
	case models.MediaAvatar:
		key = u.AvatarKey
	case models.MediaCoverImage:
		key = u.CoverImageKey
	default:
		writeError(w, common.NewError(common.ErrorNotFound, "unknown media kind"))
		return
	}
	if strings.TrimSpace(key) == "" {
		writeError(w, common.NewError(common.ErrorNotFound, "no "+string(kind)+" uploaded"))
		return
	}

	url, err := h.media.MediaURL(r.Context(), key)
	if err != nil {
		h.fail(r, w, "media url", err)
		return
	}
	writeOK(w, http.StatusOK, mediaURLResponse{Kind: kind, URL: url}, "Media URL issued")
}

func (h *UserHandler) fail(r *http.Request, w http.ResponseWriter, op string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error(r.Context(), op+" failed", "error", err)
	}
	writeError(w, err)
}

// mustUser returns the user set by RequireAuth.
func mustUser(r *http.Request) *models.PublicUser {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		panic("httpapi: handler mounted without RequireAuth")
	}
	return u
}
