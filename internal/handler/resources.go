package handler

import (
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/service"
)

// NewWarehouseHandler serves /api/warehouses
func NewWarehouseHandler(svc *service.WarehouseService, engine *policy.Engine) *ResourceHandler[model.Warehouse, *model.Warehouse, service.WarehouseRequest] {
	return NewResourceHandler[model.Warehouse, *model.Warehouse, service.WarehouseRequest](svc, engine, "/api/warehouses", policy.WarehouseRead, policy.WarehouseWrite)
}

// NewProductHandler serves /api/products, searchable by name
func NewProductHandler(svc *service.ProductService, engine *policy.Engine) *ResourceHandler[model.Product, *model.Product, service.ProductRequest] {
	return NewResourceHandler[model.Product, *model.Product, service.ProductRequest](svc, engine, "/api/products", policy.ProductRead, policy.ProductWrite)
}

// NewClientHandler serves /api/clients
func NewClientHandler(svc *service.ClientService, engine *policy.Engine) *ResourceHandler[model.Client, *model.Client, service.ClientRequest] {
	return NewResourceHandler[model.Client, *model.Client, service.ClientRequest](svc, engine, "/api/clients", policy.ClientRead, policy.ClientWrite)
}

func NewSupplierHandler(svc *service.SupplierService, engine *policy.Engine) *ResourceHandler[model.Supplier, *model.Supplier, service.SupplierRequest] {
	return NewResourceHandler[model.Supplier, *model.Supplier, service.SupplierRequest](svc, engine, "/api/suppliers", policy.SupplierRead, policy.SupplierWrite)
}

func NewDriverHandler(svc *service.DriverService, engine *policy.Engine) *ResourceHandler[model.Driver, *model.Driver, service.DriverRequest] {
	return NewResourceHandler[model.Driver, *model.Driver, service.DriverRequest](svc, engine, "/api/drivers", policy.DriverRead, policy.DriverWrite)
}
