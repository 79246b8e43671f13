package handler

// Route documentation for the generic resource handlers. ResourceHandler is
// shared by every plain resource, so each route is described here once per
// resource.

// @Summary      List warehouses
// @Tags         warehouses
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Substring of the name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      403     {object}  response.Response
// @Router       /api/warehouses [get]
func _() {}

// @Summary      Get warehouse
// @Tags         warehouses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Warehouse ID"
// @Success      200  {object}  response.Response{data=model.Warehouse}
// @Failure      404  {object}  response.Response
// @Router       /api/warehouses/{id} [get]
func _() {}

// @Summary      Create warehouse
// @Tags         warehouses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.WarehouseRequest  true  "Warehouse payload"
// @Success      201      {object}  response.Response{data=model.Warehouse}
// @Failure      400      {object}  response.Response
// @Router       /api/warehouses [post]
func _() {}

// @Summary      Update warehouse
// @Tags         warehouses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int  true  "Warehouse ID"
// @Param        payload  body      service.WarehouseRequest  true  "Warehouse payload"
// @Success      200      {object}  response.Response{data=model.Warehouse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/warehouses/{id} [put]
func _() {}

// @Summary      Delete warehouse
// @Tags         warehouses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Warehouse ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/warehouses/{id} [delete]
func _() {}

// @Summary      List products
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Substring of the name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      403     {object}  response.Response
// @Router       /api/products [get]
func _() {}

// @Summary      Get product
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  response.Response{data=model.Product}
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id} [get]
func _() {}

// @Summary      Create product
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ProductRequest  true  "Product payload"
// @Success      201      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Router       /api/products [post]
func _() {}

// @Summary      Update product
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int  true  "Product ID"
// @Param        payload  body      service.ProductRequest  true  "Product payload"
// @Success      200      {object}  response.Response{data=model.Product}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/products/{id} [put]
func _() {}

// @Summary      Delete product
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id} [delete]
func _() {}

// @Summary      List clients
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Substring of the company name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      403     {object}  response.Response
// @Router       /api/clients [get]
func _() {}

// @Summary      Get client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Client ID"
// @Success      200  {object}  response.Response{data=model.Client}
// @Failure      404  {object}  response.Response
// @Router       /api/clients/{id} [get]
func _() {}

// @Summary      Create client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ClientRequest  true  "Client payload"
// @Success      201      {object}  response.Response{data=model.Client}
// @Failure      400      {object}  response.Response
// @Router       /api/clients [post]
func _() {}

// @Summary      Update client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int  true  "Client ID"
// @Param        payload  body      service.ClientRequest  true  "Client payload"
// @Success      200      {object}  response.Response{data=model.Client}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/clients/{id} [put]
func _() {}

// @Summary      Delete client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Client ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/clients/{id} [delete]
func _() {}

// @Summary      List suppliers
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Substring of the company name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      403     {object}  response.Response
// @Router       /api/suppliers [get]
func _() {}

// @Summary      Get supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=model.Supplier}
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id} [get]
func _() {}

// @Summary      Create supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SupplierRequest  true  "Supplier payload"
// @Success      201      {object}  response.Response{data=model.Supplier}
// @Failure      400      {object}  response.Response
// @Router       /api/suppliers [post]
func _() {}

// @Summary      Update supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int  true  "Supplier ID"
// @Param        payload  body      service.SupplierRequest  true  "Supplier payload"
// @Success      200      {object}  response.Response{data=model.Supplier}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/suppliers/{id} [put]
func _() {}

// @Summary      Delete supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Supplier ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/suppliers/{id} [delete]
func _() {}

// @Summary      List drivers
// @Tags         drivers
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Substring of the name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      403     {object}  response.Response
// @Router       /api/drivers [get]
func _() {}

// @Summary      Get driver
// @Tags         drivers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Driver ID"
// @Success      200  {object}  response.Response{data=model.Driver}
// @Failure      404  {object}  response.Response
// @Router       /api/drivers/{id} [get]
func _() {}

// @Summary      Create driver
// @Tags         drivers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.DriverRequest  true  "Driver payload"
// @Success      201      {object}  response.Response{data=model.Driver}
// @Failure      400      {object}  response.Response
// @Router       /api/drivers [post]
func _() {}

// @Summary      Update driver
// @Tags         drivers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int  true  "Driver ID"
// @Param        payload  body      service.DriverRequest  true  "Driver payload"
// @Success      200      {object}  response.Response{data=model.Driver}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/drivers/{id} [put]
func _() {}

// @Summary      Delete driver
// @Tags         drivers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Driver ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/drivers/{id} [delete]
func _() {}
