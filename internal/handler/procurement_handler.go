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

type ProcurementHandler struct {
	procurementService service.ProcurementService
	engine             *policy.Engine
}

func NewProcurementHandler(procurementService service.ProcurementService, engine *policy.Engine) *ProcurementHandler {
	return &ProcurementHandler{procurementService: procurementService, engine: engine}
}

func (h *ProcurementHandler) RegisterRoutes(router *gin.RouterGroup) {
	allow := func(a policy.Action) gin.HandlerFunc { return middleware.RequireAction(h.engine, a) }

	rfqs := router.Group("/api/rfqs")
	{
		rfqs.GET("", allow(policy.RFQRead), h.ListRFQs)
		rfqs.POST("", allow(policy.RFQWrite), h.CreateRFQ)
		rfqs.GET("/:id", allow(policy.RFQRead), h.GetRFQ)
		rfqs.POST("/:id/close", allow(policy.RFQWrite), h.CloseRFQ)
		rfqs.GET("/:id/quotations", allow(policy.QuotationRead), h.ListQuotations)
		rfqs.POST("/:id/quotations", allow(policy.QuotationSubmit), h.SubmitQuotation)
		rfqs.POST("/:id/quotations/:quotationId/select", allow(policy.QuotationSelect), h.SelectQuotation)
	}
}

// ListRFQs returns a paginated list of requests for quotation
// @Summary      List RFQs
// @Tags         procurement
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (Open, Closed)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/rfqs [get]
func (h *ProcurementHandler) ListRFQs(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.procurementService.ListRFQs(c.Request.Context(), p, params, c.Query("status"))
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

// CreateRFQ opens a request for quotation
// @Summary      Create RFQ
// @Tags         procurement
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRFQRequest  true  "RFQ payload"
// @Success      201      {object}  response.Response{data=model.RFQ}
// @Failure      400      {object}  response.Response
// @Router       /api/rfqs [post]
func (h *ProcurementHandler) CreateRFQ(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateRFQRequest
	if !bindJSON(c, &req) {
		return
	}
	rfq, err := h.procurementService.CreateRFQ(c.Request.Context(), p, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, rfq)
}

// GetRFQ returns one RFQ
// @Summary      Get RFQ
// @Tags         procurement
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "RFQ ID"
// @Success      200  {object}  response.Response{data=model.RFQ}
// @Router       /api/rfqs/{id} [get]
func (h *ProcurementHandler) GetRFQ(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rfq, err := h.procurementService.GetRFQ(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, rfq)
}

// CloseRFQ closes an RFQ without selecting a quotation
// @Summary      Close RFQ
// @Tags         procurement
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "RFQ ID"
// @Success      200  {object}  response.Response{data=model.RFQ}
// @Router       /api/rfqs/{id}/close [post]
func (h *ProcurementHandler) CloseRFQ(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rfq, err := h.procurementService.CloseRFQ(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, rfq)
}

// ListQuotations returns the quotations of an RFQ
// @Summary      List quotations
// @Tags         procurement
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      int  true   "RFQ ID"
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/rfqs/{id}/quotations [get]
func (h *ProcurementHandler) ListQuotations(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.procurementService.ListQuotations(c.Request.Context(), p, id, params)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

// SubmitQuotation records a supplier offer on an open RFQ
// @Summary      Submit quotation
// @Tags         procurement
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                             true  "RFQ ID"
// @Param        payload  body      service.SubmitQuotationRequest  true  "Quotation payload"
// @Success      201      {object}  response.Response{data=model.Quotation}
// @Failure      400      {object}  response.Response
// @Router       /api/rfqs/{id}/quotations [post]
func (h *ProcurementHandler) SubmitQuotation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.SubmitQuotationRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.procurementService.SubmitQuotation(c.Request.Context(), p, id, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, q)
}

// SelectQuotation picks the winning quotation and closes the RFQ
// @Summary      Select quotation
// @Description  Selects one quotation per RFQ. A second selection answers 409. A failed supplier email is reported in notification_error.
// @Tags         procurement
// @Security     BearerAuth
// @Produce      json
// @Param        id           path      int  true  "RFQ ID"
// @Param        quotationId  path      int  true  "Quotation ID"
// @Success      200          {object}  response.Response{data=service.SelectionResult}
// @Failure      409          {object}  response.Response
// @Router       /api/rfqs/{id}/quotations/{quotationId}/select [post]
func (h *ProcurementHandler) SelectQuotation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	quotationID, ok := idParam(c, "quotationId")
	if !ok {
		return
	}
	res, err := h.procurementService.SelectQuotation(c.Request.Context(), p, id, quotationID)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, res)
}
