package handler

import (
	"net/http"

	"supplychain/internal/middleware"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/service"
	"supplychain/pkg/pagination"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

// Applier copies a request payload onto a record
type Applier[PT any] interface {
	Apply(PT)
}

// ResourceHandler serves list/get/create/update/delete for one plain
// tenant-owned resource. R is the request payload type.
type ResourceHandler[T any, PT model.ScopedPtr[T], R Applier[PT]] struct {
	svc    *service.ResourceService[T, PT]
	engine *policy.Engine
	path   string
	read   policy.Action
	write  policy.Action
}

func NewResourceHandler[T any, PT model.ScopedPtr[T], R Applier[PT]](
	svc *service.ResourceService[T, PT],
	engine *policy.Engine,
	path string,
	read, write policy.Action,
) *ResourceHandler[T, PT, R] {
	return &ResourceHandler[T, PT, R]{svc: svc, engine: engine, path: path, read: read, write: write}
}

func (h *ResourceHandler[T, PT, R]) RegisterRoutes(router *gin.RouterGroup) {
	g := router.Group(h.path)
	{
		g.GET("", middleware.RequireAction(h.engine, h.read), h.List)
		g.GET("/:id", middleware.RequireAction(h.engine, h.read), h.Get)
		g.POST("", middleware.RequireAction(h.engine, h.write), h.Create)
		g.PUT("/:id", middleware.RequireAction(h.engine, h.write), h.Update)
		g.DELETE("/:id", middleware.RequireAction(h.engine, h.write), h.Delete)
	}
}

// List returns one page; ?search= matches the resource's name column
func (h *ResourceHandler[T, PT, R]) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	res, err := h.svc.List(c.Request.Context(), p, params, c.Query("search"))
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, page(params, res))
}

func (h *ResourceHandler[T, PT, R]) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, rec)
}

func (h *ResourceHandler[T, PT, R]) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req R
	if !bindJSON(c, &req) {
		return
	}
	rec := PT(new(T))
	req.Apply(rec)
	created, err := h.svc.Create(c.Request.Context(), p, rec)
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusCreated, created)
}

func (h *ResourceHandler[T, PT, R]) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req R
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.svc.Update(c.Request.Context(), p, id, func(rec PT) error {
		req.Apply(rec)
		return nil
	})
	if err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, updated)
}

func (h *ResourceHandler[T, PT, R]) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), p, id); err != nil {
		response.Abort(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": id})
}
