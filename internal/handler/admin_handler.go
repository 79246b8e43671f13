package handler

import (
	"net/http"

	"supplychain/internal/middleware"
	"supplychain/internal/policy"
	"supplychain/internal/service"
	"supplychain/pkg/pagination"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the organization, dashboard and audit endpoints
type AdminHandler struct {
	orgService       service.OrganizationService
	dashboardService service.DashboardService
	auditService     service.AuditService
	engine           *policy.Engine
}

func NewAdminHandler(orgService service.OrganizationService, dashboardService service.DashboardService, auditService service.AuditService, engine *policy.Engine) *AdminHandler {
	return &AdminHandler{
		orgService:       orgService,
		dashboardService: dashboardService,
		auditService:     auditService,
		engine:           engine,
	}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	allow := func(a policy.Action) gin.HandlerFunc { return middleware.RequireAction(h.engine, a) }

	org := router.Group("/api/organization")
	{
		org.GET("", allow(policy.OrganizationRead), h.GetOrganization)
		org.POST("", allow(policy.OrganizationCreate), h.CreateOrganization)
		org.PUT("", allow(policy.OrganizationUpdate), h.UpdateOrganization)
	}
	router.GET("/api/dashboard", allow(policy.DashboardView), h.Dashboard)
	router.GET("/api/audit-logs", allow(policy.AuditView), h.GetAuditLogs)
}

// GetOrganization returns the caller's organization
// @Summary      Get own organization
// @Tags         organization
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.Organization}
// @Router       /api/organization [get]
func (h *AdminHandler) GetOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	org, err := h.orgService.Get(c.Request.Context(), p)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, org)
}

// CreateOrganization registers an organization owned by the caller
// @Summary      Create organization
// @Description  The caller becomes owner and joins it when it has no organization yet; refresh the token to see the membership
// @Tags         organization
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.OrganizationRequest  true  "Organization payload"
// @Success      201      {object}  response.Response{data=model.Organization}
// @Router       /api/organization [post]
func (h *AdminHandler) CreateOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.OrganizationRequest
	if !bindJSON(c, &req) {
		return
	}
	org, err := h.orgService.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, org)
}

// UpdateOrganization updates the caller's organization
// @Summary      Update organization
// @Tags         organization
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.OrganizationRequest  true  "Organization payload"
// @Success      200      {object}  response.Response{data=model.Organization}
// @Router       /api/organization [put]
func (h *AdminHandler) UpdateOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.OrganizationRequest
	if !bindJSON(c, &req) {
		return
	}
	org, err := h.orgService.Update(c.Request.Context(), p, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, org)
}

// Dashboard returns the organization totals
// @Summary      Dashboard totals
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Router       /api/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	res, err := h.dashboardService.Totals(c.Request.Context(), p)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, res)
}

// GetAuditLogs returns the organization's audit trail, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/audit-logs [get]
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.auditService.List(c.Request.Context(), p, params)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}
