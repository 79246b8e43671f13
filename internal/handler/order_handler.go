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

type OrderHandler struct {
	orderService service.OrderService
	engine       *policy.Engine
}

func NewOrderHandler(orderService service.OrderService, engine *policy.Engine) *OrderHandler {
	return &OrderHandler{orderService: orderService, engine: engine}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireAction(h.engine, policy.OrderRead)
	write := middleware.RequireAction(h.engine, policy.OrderWrite)

	orders := router.Group("/api/orders")
	{
		orders.GET("", read, h.ListOrders)
		orders.POST("", write, h.CreateOrder)
		orders.GET("/:id", read, h.GetOrder)
		orders.PUT("/:id", write, h.UpdateOrder)
		orders.DELETE("/:id", write, h.DeleteOrder)
		orders.POST("/:id/mark-paid", middleware.RequireAction(h.engine, policy.OrderMarkPaid), h.MarkPaid)

		orders.GET("/:id/items", read, h.ListItems)
		orders.POST("/:id/items", write, h.AddItem)
		orders.PUT("/:id/items/:itemId", write, h.UpdateItem)
		orders.DELETE("/:id/items/:itemId", write, h.DeleteItem)
	}
}

// ListOrders returns a paginated list of orders
// @Summary      List orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (Pending, Succeeded)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.orderService.List(c.Request.Context(), p, params, c.Query("status"))
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

// CreateOrder creates a Pending order with its items
// @Summary      Create order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Order payload"
// @Success      201      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Router       /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orderService.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, order)
}

// GetOrder returns one order with its items
// @Summary      Get order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, order)
}

// UpdateOrder changes client or date of a Pending order
// @Summary      Update order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                         true  "Order ID"
// @Param        payload  body      service.UpdateOrderRequest  true  "Update payload"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Router       /api/orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orderService.Update(c.Request.Context(), p, id, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, order)
}

// DeleteOrder deletes a Pending order
// @Summary      Delete order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.orderService.Delete(c.Request.Context(), p, id); err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": id})
}

// MarkPaid moves the order to Succeeded and opens its delivery
// @Summary      Mark order paid
// @Description  Succeeds a Pending order and creates its delivery with an initial Pending status. A second call answers 409.
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.MarkPaidResult}
// @Failure      409  {object}  response.Response
// @Router       /api/orders/{id}/mark-paid [post]
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.orderService.MarkPaid(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, res)
}

// ListItems returns the items of an order
// @Summary      List order items
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]model.OrderItem}
// @Router       /api/orders/{id}/items [get]
func (h *OrderHandler) ListItems(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	items, err := h.orderService.ListItems(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, items)
}

// AddItem adds a product line priced at the current product price
// @Summary      Add order item
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                       true  "Order ID"
// @Param        payload  body      service.OrderItemRequest  true  "Item payload"
// @Success      201      {object}  response.Response{data=model.OrderItem}
// @Failure      400      {object}  response.Response
// @Router       /api/orders/{id}/items [post]
func (h *OrderHandler) AddItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.OrderItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.orderService.AddItem(c.Request.Context(), p, id, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, item)
}

// UpdateItem changes product or quantity of an item
// @Summary      Update order item
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                       true  "Order ID"
// @Param        itemId   path      int                       true  "Item ID"
// @Param        payload  body      service.OrderItemRequest  true  "Item payload"
// @Success      200      {object}  response.Response{data=model.OrderItem}
// @Failure      400      {object}  response.Response
// @Router       /api/orders/{id}/items/{itemId} [put]
func (h *OrderHandler) UpdateItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := idParam(c, "itemId")
	if !ok {
		return
	}
	var req service.OrderItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.orderService.UpdateItem(c.Request.Context(), p, id, itemID, req)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, item)
}

// DeleteItem removes an item from a Pending order
// @Summary      Delete order item
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      int  true  "Order ID"
// @Param        itemId  path      int  true  "Item ID"
// @Success      200     {object}  response.Response
// @Router       /api/orders/{id}/items/{itemId} [delete]
func (h *OrderHandler) DeleteItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := idParam(c, "itemId")
	if !ok {
		return
	}
	if err := h.orderService.DeleteItem(c.Request.Context(), p, id, itemID); err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": itemID})
}
