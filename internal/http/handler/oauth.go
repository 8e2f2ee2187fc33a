package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/conduithq/conduit/internal/http/middleware"
	"github.com/conduithq/conduit/internal/oauth"
	"github.com/gin-gonic/gin"
)

// OAuthHandler is the HTTP face of the flow controller. The callback
// always answers with a redirect to the bare dashboard URL: the
// authorization query parameters must never survive in the address the
// user ends up on, whatever the outcome.
type OAuthHandler struct {
	controller   *oauth.Controller
	dashboardURL string
	callbackURL  string
}

func NewOAuthHandler(controller *oauth.Controller, dashboardURL, callbackURL string) *OAuthHandler {
	return &OAuthHandler{
		controller:   controller,
		dashboardURL: dashboardURL,
		callbackURL:  callbackURL,
	}
}

// Start begins the authorization flow and sends the browser to the
// provider.
func (h *OAuthHandler) Start(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	sessionID, ok := middleware.SessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	connectorID, err := strconv.ParseInt(c.Param("connectorID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connector id"})
		return
	}

	result, err := h.controller.Start(c.Request.Context(), user.ID, sessionKey(sessionID), connectorID, h.callbackURL)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to start authorization", "error", err, "connector_id", connectorID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start authorization"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, result.AuthorizationURL)
}

// Callback resumes the flow after the provider redirect. Every branch
// ends in a 303 to the dashboard; only user-facing failure categories
// carry an error code in the query. A state mismatch redirects bare:
// it must not confirm that a transaction existed.
func (h *OAuthHandler) Callback(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, h.dashboardURL)
		return
	}
	sessionID, ok := middleware.SessionID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, h.dashboardURL)
		return
	}

	result, err := h.controller.HandleCallback(c.Request.Context(), user.ID, sessionKey(sessionID), oauth.Callback{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		ErrorParam:       c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrNotCallback), errors.Is(err, oauth.ErrStateMismatch):
			// Silent outcomes: no error surface at all.
			c.Redirect(http.StatusSeeOther, h.dashboardURL)
		case errors.Is(err, oauth.ErrTransactionExpired):
			c.Redirect(http.StatusSeeOther, h.dashboardURL+"?connect_error=session_expired")
		case errors.Is(err, oauth.ErrProviderDenied):
			c.Redirect(http.StatusSeeOther, h.dashboardURL+"?connect_error=provider_denied")
		case errors.Is(err, oauth.ErrExchangeFailed):
			c.Redirect(http.StatusSeeOther, h.dashboardURL+"?connect_error=exchange_failed")
		default:
			slog.ErrorContext(c.Request.Context(), "callback processing failed", "error", err)
			c.Redirect(http.StatusSeeOther, h.dashboardURL+"?connect_error=internal")
		}
		return
	}

	c.Redirect(http.StatusSeeOther, h.dashboardURL+"?connected="+strconv.FormatInt(result.Connection.ConnectorID, 10))
}

func sessionKey(sessionID int64) string {
	return strconv.FormatInt(sessionID, 10)
}
