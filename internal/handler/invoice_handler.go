package handler

import (
	"fmt"
	"net/http"

	"supplychain/internal/middleware"
	"supplychain/internal/policy"
	"supplychain/internal/service"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	engine         *policy.Engine
}

func NewInvoiceHandler(invoiceService service.InvoiceService, engine *policy.Engine) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, engine: engine}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/orders/:id/invoice", middleware.RequireAction(h.engine, policy.InvoiceView))
	{
		invoices.GET("", h.GetInvoice)
		invoices.GET("/pdf", h.GetInvoicePDF)
	}
}

// GetInvoice computes the invoice of an order
// @Summary      Get invoice
// @Description  Subtotal of price x quantity; Distributor clients pay 90%
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Invoice}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/invoice [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoiceService.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, inv)
}

// GetInvoicePDF renders the invoice as PDF
// @Summary      Invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  int  true  "Order ID"
// @Success      200  {file}  file
// @Router       /api/orders/{id}/invoice/pdf [get]
func (h *InvoiceHandler) GetInvoicePDF(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pdf, err := h.invoiceService.PDF(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=invoice-%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
