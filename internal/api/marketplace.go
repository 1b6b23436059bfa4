package api

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relistr/relistr/internal/automation"
	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/models"
)

// ConnectRequest is the body of POST /api/auth/marketplace.
type ConnectRequest struct {
	Marketplace string `json:"marketplace"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// DisconnectRequest is the body of the disconnect endpoints. The
// marketplace may come from the body or the query string.
type DisconnectRequest struct {
	Marketplace string `json:"marketplace"`
}

// handleConnectMarketplace runs the full connect flow: validate, rate-limit,
// drive the marketplace login, persist credentials on success.
func (s *Server) handleConnectMarketplace(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Marketplace == "" || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: marketplace, username, and password"})
		return
	}

	marketplace, err := models.ParseMarketplace(req.Marketplace)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid marketplace"})
		return
	}

	if s.limiter != nil {
		if res := s.limiter.CheckMarketplaceLimit(ctx, marketplace, userID); !res.Allowed {
			s.logger.Audit(logging.NewAuditEvent(logging.RateLimitExceeded, logging.StatusFailure).
				WithUser(userID).
				WithIP(c.ClientIP()).
				WithMarketplace(string(marketplace)))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": time.Until(res.Reset).Round(time.Second).String(),
			})
			return
		}
	}

	driver, err := s.drivers.Get(marketplace)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	result, err := driver.Login(ctx, automation.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	s.metrics.RecordLoginDuration(string(marketplace), time.Since(start).Seconds())

	if err != nil {
		s.metrics.RecordLoginAttempt(string(marketplace), "error")
		s.notifier.LoginFailure(marketplace, err.Error())
		s.loginAudit(c, userID, marketplace, false)

		if isDriverError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.ErrorWithContext(ctx, "login flow failed",
			"marketplace", marketplace, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !result.Success {
		s.metrics.RecordLoginAttempt(string(marketplace), "rejected")
		s.loginAudit(c, userID, marketplace, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": result.Message})
		return
	}

	if _, err := s.credentials.StoreCredentials(ctx, userID, marketplace, req.Username, req.Password); err != nil {
		s.metrics.RecordCredentialOperation("store", "failure")
		s.notifier.StoreFailure("store_credentials", err)
		s.logger.ErrorWithContext(ctx, "credential persistence failed",
			"marketplace", marketplace, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	s.metrics.RecordCredentialOperation("store", "success")
	s.metrics.RecordLoginAttempt(string(marketplace), "success")
	s.loginAudit(c, userID, marketplace, true)
	s.logger.Audit(logging.NewAuditEvent(logging.MarketplaceConnect, logging.StatusSuccess).
		WithUser(userID).
		WithIP(c.ClientIP()).
		WithMarketplace(string(marketplace)))

	resp := gin.H{
		"success": true,
		"message": result.Message,
	}
	if result.RequiresManualLogin {
		resp["requiresManualLogin"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// handleMarketplaceStatus returns the connection state for one marketplace.
func (s *Server) handleMarketplaceStatus(c *gin.Context) {
	userID := currentUserID(c)

	marketplace, ok := s.marketplaceParam(c)
	if !ok {
		return
	}

	status, err := s.credentials.ConnectionStatus(c.Request.Context(), userID, marketplace)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "status lookup failed",
			"marketplace", marketplace, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleDisconnectMarketplace removes stored credentials for one marketplace.
func (s *Server) handleDisconnectMarketplace(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	raw := c.Query("marketplace")
	if raw == "" {
		var req DisconnectRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			raw = req.Marketplace
		}
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: marketplace"})
		return
	}
	marketplace, err := models.ParseMarketplace(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid marketplace"})
		return
	}

	if err := s.credentials.RemoveCredentials(ctx, userID, marketplace); err != nil {
		s.metrics.RecordCredentialOperation("remove", "failure")
		s.notifier.StoreFailure("remove_credentials", err)
		s.logger.ErrorWithContext(ctx, "credential removal failed",
			"marketplace", marketplace, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	s.metrics.RecordCredentialOperation("remove", "success")

	s.logger.Audit(logging.NewAuditEvent(logging.MarketplaceDisconnect, logging.StatusSuccess).
		WithUser(userID).
		WithIP(c.ClientIP()).
		WithMarketplace(string(marketplace)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Disconnected from %s", marketplace.Info().DisplayName),
	})
}

// handleListConnections returns the connection state for every supported
// marketplace. Secrets never appear in this response.
func (s *Server) handleListConnections(c *gin.Context) {
	userID := currentUserID(c)

	statuses, err := s.credentials.ListStatuses(c.Request.Context(), userID)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "connection listing failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "credentials": statuses})
}

func (s *Server) marketplaceParam(c *gin.Context) (models.Marketplace, bool) {
	raw := c.Query("marketplace")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameter: marketplace"})
		return "", false
	}
	marketplace, err := models.ParseMarketplace(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid marketplace"})
		return "", false
	}
	return marketplace, true
}

func (s *Server) loginAudit(c *gin.Context, userID string, marketplace models.Marketplace, success bool) {
	status := logging.StatusSuccess
	if !success {
		status = logging.StatusFailure
	}
	s.logger.Audit(logging.NewAuditEvent(logging.LoginAttempt, status).
		WithUser(userID).
		WithIP(c.ClientIP()).
		WithMarketplace(string(marketplace)))
}

// isDriverError reports whether err belongs to the automation failure
// taxonomy whose message is safe to show the user.
func isDriverError(err error) bool {
	var (
		nav    *errors.ErrNavigationTimeout
		form   *errors.ErrFormNotFound
		submit *errors.ErrSubmitControlMissing
		launch *errors.ErrBrowserLaunch
	)
	return stderrors.As(err, &nav) ||
		stderrors.As(err, &form) ||
		stderrors.As(err, &submit) ||
		stderrors.As(err, &launch)
}
