package handler

import (
	"strconv"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/middleware"
	"supplychain/internal/service"
	"supplychain/pkg/pagination"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
)

// principal returns the authenticated caller or aborts with 401
func principal(c *gin.Context) (identity.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Abort(c, apperror.Unauthenticated("authorization is missing"))
	}
	return p, ok
}

// idParam parses a positive integer path parameter or aborts with 400
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Abort(c, apperror.Invalid("http.param", name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body or aborts with 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Abort(c, apperror.Invalid("http.bind", "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

func page[T any](params pagination.Params, p service.Page[T]) response.Page {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return response.Page{Items: items, Total: p.Total, Page: params.Page, Limit: params.Limit}
}
