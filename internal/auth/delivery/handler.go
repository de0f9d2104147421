package delivery

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"locum-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// OAuthHandler serves the Google connect flow.
type OAuthHandler struct {
	oauthUsecase usecase.OAuthUsecase
	appBaseURL   string
}

func NewOAuthHandler(oauthUsecase usecase.OAuthUsecase, appBaseURL string) *OAuthHandler {
	return &OAuthHandler{oauthUsecase: oauthUsecase, appBaseURL: strings.TrimRight(appBaseURL, "/")}
}

// Start redirects to the Google consent screen.
// GET /api/auth/google/start
func (h *OAuthHandler) Start(c *gin.Context) {
	authURL, err := h.oauthUsecase.AuthURL()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback finishes the code exchange and returns to the settings page.
// GET /api/auth/google/callback?code=...&state=...
func (h *OAuthHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.redirectSettings(c, url.Values{"error": {errParam}})
		return
	}

	account, err := h.oauthUsecase.Connect(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		log.Printf("[OAuth] connect failed: %v", err)
		h.redirectSettings(c, url.Values{"error": {"connect_failed"}})
		return
	}

	log.Printf("[OAuth] callback complete for %s", account.Email)
	h.redirectSettings(c, url.Values{"connected": {"1"}})
}

func (h *OAuthHandler) redirectSettings(c *gin.Context, q url.Values) {
	c.Redirect(http.StatusFound, h.appBaseURL+"/settings?"+q.Encode())
}
