package handler

import (
	"fmt"
	"net/http"

	"supplychain/internal/apperror"
	"supplychain/internal/middleware"
	"supplychain/internal/policy"
	"supplychain/internal/service"
	"supplychain/pkg/pagination"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxSignatureSize = 5 << 20

type DeliveryHandler struct {
	deliveryService service.DeliveryService
	engine          *policy.Engine
}

func NewDeliveryHandler(deliveryService service.DeliveryService, engine *policy.Engine) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService, engine: engine}
}

func (h *DeliveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	allow := func(a policy.Action) gin.HandlerFunc { return middleware.RequireAction(h.engine, a) }

	deliveries := router.Group("/api/deliveries")
	{
		deliveries.GET("", allow(policy.DeliveryList), h.ListDeliveries)
		deliveries.POST("", allow(policy.DeliveryCreate), h.CreateDelivery)
		deliveries.GET("/:id", allow(policy.DeliveryView), h.GetDelivery)
		deliveries.PUT("/:id", allow(policy.DeliveryUpdate), h.UpdateDelivery)
		deliveries.DELETE("/:id", allow(policy.DeliveryDelete), h.DeleteDelivery)
		deliveries.GET("/:id/status", allow(policy.DeliveryStatusView), h.StatusLog)
		deliveries.POST("/:id/status", allow(policy.DeliveryStatusAppend), h.AppendStatus)
		deliveries.POST("/:id/signature", allow(policy.DeliveryStatusAppend), h.UploadSignature)
		deliveries.GET("/:id/label", allow(policy.DeliveryView), h.Label)
	}
	router.GET("/api/drivers/:id/deliveries", allow(policy.DeliveryListByDriver), h.ListByDriver)
}

// ListDeliveries returns a paginated list of deliveries
// @Summary      List deliveries
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/deliveries [get]
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.deliveryService.List(c.Request.Context(), p, params)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

// ListByDriver returns the deliveries assigned to one driver
// @Summary      List deliveries of a driver
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      int  true   "Driver ID"
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/drivers/{id}/deliveries [get]
func (h *DeliveryHandler) ListByDriver(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	driverID, ok := idParam(c, "id")
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.deliveryService.ListByDriver(c.Request.Context(), p, driverID, params)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

// CreateDelivery opens a delivery for a paid order without one
// @Summary      Create delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateDeliveryRequest  true  "Delivery payload"
// @Success      201      {object}  response.Response{data=model.Delivery}
// @Failure      409      {object}  response.Response
// @Router       /api/deliveries [post]
func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateDeliveryRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.deliveryService.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, d)
}

// GetDelivery returns one delivery
// @Summary      Get delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Delivery ID"
// @Success      200  {object}  response.Response{data=model.Delivery}
// @Failure      404  {object}  response.Response
// @Router       /api/deliveries/{id} [get]
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	d, err := h.deliveryService.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, d)
}

// UpdateDelivery changes driver and destination
// @Summary      Update delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                            true  "Delivery ID"
// @Param        payload  body      service.UpdateDeliveryRequest  true  "Update payload"
// @Success      200      {object}  response.Response{data=model.Delivery}
// @Router       /api/deliveries/{id} [put]
func (h *DeliveryHandler) UpdateDelivery(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateDeliveryRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.deliveryService.Update(c.Request.Context(), p, id, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, d)
}

// DeleteDelivery deletes a delivery that is still Pending
// @Summary      Delete delivery
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Delivery ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/deliveries/{id} [delete]
func (h *DeliveryHandler) DeleteDelivery(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.deliveryService.Delete(c.Request.Context(), p, id); err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": id})
}

// StatusLog returns the status history, oldest first
// @Summary      Delivery status log
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Delivery ID"
// @Success      200  {object}  response.Response{data=[]model.DeliveryStatusUpdate}
// @Router       /api/deliveries/{id}/status [get]
func (h *DeliveryHandler) StatusLog(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	log, err := h.deliveryService.StatusLog(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, log)
}

// AppendStatus records a new delivery status. Packed decrements stock once.
// @Summary      Append delivery status
// @Tags         deliveries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                          true  "Delivery ID"
// @Param        payload  body      service.AppendStatusRequest  true  "Status payload"
// @Success      201      {object}  response.Response{data=model.DeliveryStatusUpdate}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/deliveries/{id}/status [post]
func (h *DeliveryHandler) AppendStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.AppendStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.deliveryService.AppendStatus(c.Request.Context(), p, id, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, entry)
}

// UploadSignature stores the client's signature image
// @Summary      Upload client signature
// @Tags         deliveries
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id         path      int   true  "Delivery ID"
// @Param        signature  formData  file  true  "Signature image (png, jpeg, webp)"
// @Success      200        {object}  response.Response{data=model.Delivery}
// @Failure      400        {object}  response.Response
// @Failure      503        {object}  response.Response
// @Router       /api/deliveries/{id}/signature [post]
func (h *DeliveryHandler) UploadSignature(c *gin.Context) {
	const op = "delivery.UploadSignature"
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("signature")
	if err != nil {
		response.Abort(c, apperror.Invalid(op, "signature file is required"))
		return
	}
	if fh.Size > maxSignatureSize {
		response.Abort(c, apperror.Invalid(op, "signature file is too large"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Abort(c, apperror.Invalid(op, "signature file cannot be read"))
		return
	}
	defer f.Close()

	d, err := h.deliveryService.UploadSignature(c.Request.Context(), p, id, fh.Header.Get("Content-Type"), f)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, d)
}

// Label renders the delivery label as PDF
// @Summary      Delivery label
// @Tags         deliveries
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  int  true  "Delivery ID"
// @Success      200  {file}  file
// @Router       /api/deliveries/{id}/label [get]
func (h *DeliveryHandler) Label(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pdf, err := h.deliveryService.Label(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=delivery-%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
