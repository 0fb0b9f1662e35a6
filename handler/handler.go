// Package handler exposes the app over API Gateway proxy events. The same
// router serves the local gin server through the adapter in gin.go.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"symptomai/internal/domain"
	"symptomai/internal/session"
	"symptomai/internal/settings"
	"symptomai/internal/usecase"
)

const (
	headerProfileID     = "X-Profile-Id"
	headerCorrelationID = "X-Correlation-Id"

	quickActionPrefix = "/api/quick-actions/"
)

type App interface {
	Enter(ctx context.Context, profileID string) (session.Decision, *usecase.ChatPage, error)
	Login(ctx context.Context, profileID string, in usecase.LoginInput) (session.Decision, error)
	Signup(ctx context.Context, profileID string, in usecase.SignupInput) error
	Logout(ctx context.Context, profileID string) (session.Decision, error)
	UpdateProfile(ctx context.Context, profileID string, p domain.Profile) (domain.Profile, error)
	Settings(profileID string) (*settings.Service, error)
}

type Handler struct {
	app    App
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(app App, opts ...Option) (*Handler, error) {
	if app == nil {
		return nil, errors.New("handler: app must not be nil")
	}
	h := &Handler{app: app, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type request struct {
	event         events.APIGatewayProxyRequest
	profileID     string
	correlationID string
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	User     *userResponse `json:"user,omitempty"`
	Redirect string        `json:"redirect,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type submitRequest struct {
	Content string `json:"content"`
}

// Handle routes one API Gateway proxy event. It never returns an error; every
// failure is rendered as a JSON error body.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req := request{
		event:         event,
		profileID:     strings.TrimSpace(header(event.Headers, headerProfileID)),
		correlationID: header(event.Headers, headerCorrelationID),
	}
	if req.correlationID == "" {
		req.correlationID = uuid.NewString()
	}
	if req.profileID == "" {
		return h.fail(req, &usecase.Error{
			Code:    usecase.ErrorInvalidInput,
			Reason:  "missing_profile",
			Message: "Missing " + headerProfileID + " header.",
		}), nil
	}

	path := strings.TrimSuffix(event.Path, "/")
	switch {
	case event.HTTPMethod == http.MethodPost && path == "/api/signup":
		return h.signup(ctx, req), nil
	case event.HTTPMethod == http.MethodPost && path == "/api/login":
		return h.login(ctx, req), nil
	case event.HTTPMethod == http.MethodPost && path == "/api/logout":
		return h.logout(ctx, req), nil
	case event.HTTPMethod == http.MethodGet && path == "/api/session":
		return h.session(ctx, req), nil
	case path == "/api/conversations":
		return h.conversations(ctx, req), nil
	case event.HTTPMethod == http.MethodPut && path == "/api/conversations/active":
		return h.selectConversation(ctx, req), nil
	case event.HTTPMethod == http.MethodPost && path == "/api/messages":
		return h.submit(ctx, req), nil
	case event.HTTPMethod == http.MethodPost && strings.HasPrefix(path, quickActionPrefix):
		return h.quickAction(ctx, req, strings.TrimPrefix(path, quickActionPrefix)), nil
	case path == "/api/settings":
		return h.settings(ctx, req), nil
	case event.HTTPMethod == http.MethodPut && path == "/api/profile":
		return h.updateProfile(ctx, req), nil
	case event.HTTPMethod == http.MethodGet && path == "/api/export":
		return h.export(ctx, req), nil
	}
	return h.respond(req, http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Message: "No route for " + event.HTTPMethod + " " + event.Path}), nil
}

func (h *Handler) signup(ctx context.Context, req request) events.APIGatewayProxyResponse {
	var in signupRequest
	if err := decode(req, &in); err != nil {
		return h.fail(req, err)
	}
	err := h.app.Signup(ctx, req.profileID, usecase.SignupInput{Username: in.Username, Email: in.Email, Password: in.Password})
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusCreated, messageResponse{Message: "Account created. Please log in."})
}

func (h *Handler) login(ctx context.Context, req request) events.APIGatewayProxyResponse {
	var in loginRequest
	if err := decode(req, &in); err != nil {
		return h.fail(req, err)
	}
	d, err := h.app.Login(ctx, req.profileID, usecase.LoginInput{Username: in.Username, Password: in.Password})
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, sessionResponse{User: toUser(d)})
}

func (h *Handler) logout(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, err := h.app.Logout(ctx, req.profileID)
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, sessionResponse{Redirect: d.Redirect})
}

func (h *Handler) session(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, _, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	return h.respond(req, http.StatusOK, sessionResponse{User: toUser(d)})
}

func (h *Handler) conversations(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, page, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	switch req.event.HTTPMethod {
	case http.MethodGet:
		return h.respond(req, http.StatusOK, page.View())
	case http.MethodPost:
		return h.respond(req, http.StatusCreated, page.NewConversation(ctx))
	case http.MethodDelete:
		confirm := strings.EqualFold(req.event.QueryStringParameters["confirm"], "true")
		view, err := page.ClearHistory(ctx, confirm)
		if err != nil {
			return h.fail(req, err)
		}
		return h.respond(req, http.StatusOK, view)
	}
	return h.methodNotAllowed(req)
}

func (h *Handler) selectConversation(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, page, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	var in selectRequest
	if err := decode(req, &in); err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, page.SelectConversation(in.ID))
}

func (h *Handler) submit(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, page, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	var in submitRequest
	if err := decode(req, &in); err != nil {
		return h.fail(req, err)
	}
	out, err := page.Submit(ctx, in.Content)
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, out)
}

func (h *Handler) quickAction(ctx context.Context, req request, kind string) events.APIGatewayProxyResponse {
	d, page, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	var form usecase.QuickActionForm
	if err := decode(req, &form); err != nil {
		return h.fail(req, err)
	}
	out, err := page.QuickAction(ctx, usecase.QuickActionKind(kind), form)
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, out)
}

func (h *Handler) settings(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, _, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	svc, err := h.app.Settings(req.profileID)
	if err != nil {
		return h.fail(req, err)
	}
	switch req.event.HTTPMethod {
	case http.MethodGet:
		return h.respond(req, http.StatusOK, svc.Load(ctx))
	case http.MethodPut:
		in := svc.Load(ctx)
		if err := decode(req, &in); err != nil {
			return h.fail(req, err)
		}
		out, err := svc.Update(ctx, in)
		if errors.Is(err, settings.ErrInvalidTheme) {
			return h.fail(req, &usecase.Error{
				Code:    usecase.ErrorInvalidInput,
				Reason:  "invalid_theme",
				Message: "Theme must be light, dark or auto.",
				Err:     err,
			})
		}
		if err != nil {
			return h.fail(req, &usecase.Error{Code: usecase.ErrorInternal, Reason: "settings_write", Err: err})
		}
		return h.respond(req, http.StatusOK, out)
	}
	return h.methodNotAllowed(req)
}

func (h *Handler) updateProfile(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, _, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	var in domain.Profile
	if err := decode(req, &in); err != nil {
		return h.fail(req, err)
	}
	p, err := h.app.UpdateProfile(ctx, req.profileID, in)
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, userResponse{ID: d.UserID, Username: p.Username, Email: p.Email})
}

func (h *Handler) export(ctx context.Context, req request) events.APIGatewayProxyResponse {
	d, page, err := h.app.Enter(ctx, req.profileID)
	if err != nil {
		return h.failWithRedirect(req, err, d.Redirect)
	}
	// The open page may hold writes that have not been flushed yet.
	if err := page.Save(ctx); err != nil {
		h.logger.Error("failed to save conversations before export", "correlation_id", req.correlationID, "err", err)
	}
	svc, err := h.app.Settings(req.profileID)
	if err != nil {
		return h.fail(req, err)
	}
	return h.respond(req, http.StatusOK, svc.Export(ctx, d.UserID))
}

func (h *Handler) methodNotAllowed(req request) events.APIGatewayProxyResponse {
	return h.respond(req, http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"})
}

func (h *Handler) fail(req request, err error) events.APIGatewayProxyResponse {
	return h.failWithRedirect(req, err, "")
}

func (h *Handler) failWithRedirect(req request, err error, redirect string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		ucErr = &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected", Err: err}
	}
	status := statusFor(ucErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"correlation_id", req.correlationID,
			"path", req.event.Path,
			"code", ucErr.Code,
			"reason", ucErr.Reason,
			"err", ucErr.Err,
		)
	} else {
		h.logger.Info("request rejected",
			"correlation_id", req.correlationID,
			"path", req.event.Path,
			"code", ucErr.Code,
			"reason", ucErr.Reason,
		)
	}
	return h.respond(req, status, errorResponse{
		Error:    string(ucErr.Code),
		Message:  ucErr.Message,
		Redirect: redirect,
	})
}

func (h *Handler) respond(req request, status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("failed to encode response", "correlation_id", req.correlationID, "err", err)
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: req.correlationID,
		},
		Body: string(raw),
	}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorConfirmationRequired:
		return http.StatusBadRequest
	case usecase.ErrorUnauthenticated, usecase.ErrorAuthFailed:
		return http.StatusUnauthorized
	case usecase.ErrorConflict, usecase.ErrorBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(req request, v any) error {
	body := strings.TrimSpace(req.event.Body)
	if body == "" {
		body = "{}"
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &usecase.Error{
			Code:    usecase.ErrorInvalidInput,
			Reason:  "invalid_body",
			Message: "Request body must be valid JSON.",
			Err:     err,
		}
	}
	return nil
}

func toUser(d session.Decision) *userResponse {
	return &userResponse{ID: d.UserID, Username: d.Profile.Username, Email: d.Profile.Email}
}

// header looks a name up case-insensitively; API Gateway passes headers through
// with whatever casing the client used.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
