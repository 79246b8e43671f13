package handler

import (
	"net/http"
	"time"

	"supplychain/internal/middleware"
	"supplychain/internal/policy"
	"supplychain/internal/service"
	"supplychain/pkg/pagination"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

// CookieConfig controls the auth cookies set on login and refresh
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AccountHandler struct {
	accountService service.AccountService
	engine         *policy.Engine
	cookies        CookieConfig
}

func NewAccountHandler(accountService service.AccountService, engine *policy.Engine, cookies CookieConfig) *AccountHandler {
	return &AccountHandler{accountService: accountService, engine: engine, cookies: cookies}
}

// RegisterPublicRoutes binds the endpoints that need no access token
func (h *AccountHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
	}
}

func (h *AccountHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/auth/me", h.Me)

	members := router.Group("/api/members", middleware.RequireAction(h.engine, policy.AccountManage))
	{
		members.GET("", h.ListMembers)
		members.POST("", h.CreateMember)
	}
}

func (h *AccountHandler) setCookies(c *gin.Context, tokens *service.TokenResponse) {
	middleware.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken,
		int(h.cookies.AccessTTL.Seconds()), int(h.cookies.RefreshTTL.Seconds()), h.cookies.Secure)
}

// refreshToken reads the refresh token from the cookie, falling back to the body
func (h *AccountHandler) refreshToken(c *gin.Context) (service.RefreshRequest, bool) {
	if token := middleware.RefreshTokenCookie(c); token != "" {
		return service.RefreshRequest{RefreshToken: token}, true
	}
	var req service.RefreshRequest
	return req, bindJSON(c, &req)
}

// Signup registers a new account
// @Summary      Sign up
// @Description  Creates an administrator account without organization
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SignupRequest  true  "Signup payload"
// @Success      201      {object}  response.Response{data=service.AccountResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/auth/signup [post]
func (h *AccountHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	acc, err := h.accountService.Signup(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, acc)
}

// Login authenticates and returns access and refresh tokens
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AccountHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := h.accountService.Login(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	h.setCookies(c, tokens)
	response.OK(c, http.StatusOK, tokens)
}

// Refresh issues new access and refresh tokens
// @Summary      Refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  false  "Refresh token, when no cookie is sent"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/refresh [post]
func (h *AccountHandler) Refresh(c *gin.Context) {
	req, ok := h.refreshToken(c)
	if !ok {
		return
	}
	tokens, err := h.accountService.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	h.setCookies(c, tokens)
	response.OK(c, http.StatusOK, tokens)
}

// Logout revokes the refresh token and clears auth cookies
// @Summary      Logout
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AccountHandler) Logout(c *gin.Context) {
	req, ok := h.refreshToken(c)
	if !ok {
		return
	}
	if err := h.accountService.Logout(c.Request.Context(), req); err != nil {
		response.Abort(c, err)
		return
	}
	middleware.ClearTokenCookies(c, h.cookies.Secure)
	response.OK(c, http.StatusOK, "Logged out")
}

// Me returns the authenticated account
// @Summary      Current account
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.AccountResponse}
// @Router       /api/auth/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	acc, err := h.accountService.Me(c.Request.Context(), p)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, acc)
}

// ListMembers returns the accounts of the caller's organization
// @Summary      List members
// @Tags         members
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/members [get]
func (h *AccountHandler) ListMembers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.accountService.ListMembers(c.Request.Context(), p, params)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

// CreateMember adds an account to the caller's organization
// @Summary      Create member
// @Tags         members
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateMemberRequest  true  "Member payload"
// @Success      201      {object}  response.Response{data=service.AccountResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/members [post]
func (h *AccountHandler) CreateMember(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	acc, err := h.accountService.CreateMember(c.Request.Context(), p, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, acc)
}
