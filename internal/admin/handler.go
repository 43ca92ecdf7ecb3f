package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/lasedigital/lasechat/internal/httpx"
	"github.com/lasedigital/lasechat/internal/utils"
)

// CookieName holds the short-lived admin session token. HTTP-only so a
// compromised page script cannot lift it.
const CookieName = "admin_session"

type Service struct {
	PIN    string
	Secret string
	TTLMin int
}

type loginReq struct {
	PIN string `json:"pin" binding:"required"`
}

func Register(rg *gin.RouterGroup, pin, secret string, ttlmin int) {
	s := Service{PIN: pin, Secret: secret, TTLMin: ttlmin}
	rg.POST("/admin/login", s.login)
	rg.POST("/admin/logout", s.logout)
}

// login verifies the PIN server-side and issues the session cookie. The PIN
// never gates anything by itself; privileged routes check the cookie.
func (s Service) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	if s.PIN == "" || s.Secret == "" {
		httpx.Err(c, http.StatusInternalServerError, "admin login not configured")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.PIN), []byte(s.PIN)) != 1 {
		httpx.Err(c, http.StatusUnauthorized, "invalid pin")
		return
	}

	token, err := NewToken(s.Secret, s.TTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "token error")
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, s.TTLMin*60, "/", "", false, true)
	httpx.OK(c, gin.H{"message": "ok"})
}

func (s Service) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	httpx.OK(c, gin.H{"message": "ok"})
}
