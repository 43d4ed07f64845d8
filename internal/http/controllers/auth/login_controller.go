// Package auth contiene el controller del login classlink.
package auth

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/classlink/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/classlink/internal/http/errors"
	mw "github.com/dropDatabas3/classlink/internal/http/middlewares"
	"github.com/dropDatabas3/classlink/internal/loginflow"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

const maxBodyBytes = 64 << 10

// LoginController expone el login hook por HTTP.
type LoginController struct {
	flow loginflow.LoginFlow
}

func NewLoginController(flow loginflow.LoginFlow) *LoginController {
	return &LoginController{flow: flow}
}

// Login maneja POST /v1/auth/classlink/login
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		httperrors.WriteError(w, httperrors.ErrUnsupportedMediaType)
		return
	}

	var req dto.LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
		case stderrors.Is(err, io.EOF):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("username and password are required"))
		default:
			httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		}
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("username and password are required"))
		return
	}

	res, err := c.flow.LoginHook(ctx, &loginflow.LoginForm{
		Username:   req.Username,
		Password:   req.Password,
		RemoteAddr: mw.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		log.Error("login hook failed", logger.Username(req.Username), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}
	if !res.Continue {
		httperrors.WriteError(w, httperrors.ErrLoginRejected)
		return
	}

	resp := dto.LoginResponse{Continue: true}
	if res.User != nil {
		resp.User = &dto.UserSummary{ID: res.User.ID, Username: res.User.Username, Auth: res.User.Auth}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
