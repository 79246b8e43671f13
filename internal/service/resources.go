package service

import (
	"context"
	"errors"
	"strings"

	"supplychain/internal/apperror"
	"supplychain/internal/model"
	"supplychain/internal/policy"
	"supplychain/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	WarehouseService = ResourceService[model.Warehouse, *model.Warehouse]
	ProductService   = ResourceService[model.Product, *model.Product]
	ClientService    = ResourceService[model.Client, *model.Client]
	SupplierService  = ResourceService[model.Supplier, *model.Supplier]
	DriverService    = ResourceService[model.Driver, *model.Driver]
)

// DTOs

type WarehouseRequest struct {
	Name      string   `json:"name" binding:"required"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

func (r WarehouseRequest) Apply(w *model.Warehouse) {
	w.Name = r.Name
	w.Longitude = r.Longitude
	w.Latitude = r.Latitude
}

type ProductRequest struct {
	WarehouseID       *int64          `json:"warehouse_id"`
	Name              string          `json:"name" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitOfMeasurement string          `json:"unit_of_measurement"`
	Price             decimal.Decimal `json:"price"`
	Weight            *float64        `json:"weight"`
	Dimensions        string          `json:"dimensions"`
	Location          string          `json:"location"`
	BatchNumber       string          `json:"batch_number"`
	Origin            string          `json:"origin"`
}

func (r ProductRequest) Apply(p *model.Product) {
	p.WarehouseID = r.WarehouseID
	p.Name = r.Name
	p.Quantity = r.Quantity
	p.UnitOfMeasurement = r.UnitOfMeasurement
	p.Price = r.Price
	p.Weight = r.Weight
	p.Dimensions = r.Dimensions
	p.Location = r.Location
	p.BatchNumber = r.BatchNumber
	p.Origin = r.Origin
}

type ClientRequest struct {
	CompanyName   string `json:"company_name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone"`
	ClientType    string `json:"client_type" binding:"omitempty,oneof=Shop Distributor"`
}

func (r ClientRequest) Apply(c *model.Client) {
	c.CompanyName = r.CompanyName
	c.ContactPerson = r.ContactPerson
	c.Email = r.Email
	c.Phone = r.Phone
	c.ClientType = r.ClientType
}

type SupplierRequest struct {
	UserID        *uuid.UUID `json:"user_id"`
	CompanyName   string     `json:"company_name" binding:"required"`
	ContactPerson string     `json:"contact_person"`
	Email         string     `json:"email" binding:"omitempty,email"`
	Phone         string     `json:"phone"`
}

func (r SupplierRequest) Apply(s *model.Supplier) {
	s.UserID = r.UserID
	s.CompanyName = r.CompanyName
	s.ContactPerson = r.ContactPerson
	s.Email = r.Email
	s.Phone = r.Phone
}

type DriverRequest struct {
	UserID          *uuid.UUID `json:"user_id"`
	Name            string     `json:"name" binding:"required"`
	Email           string     `json:"email" binding:"omitempty,email"`
	Phone           string     `json:"phone"`
	CarLicensePlate string     `json:"car_license_plate"`
	DriverLicenseID string     `json:"driver_license_id"`
}

func (r DriverRequest) Apply(d *model.Driver) {
	d.UserID = r.UserID
	d.Name = r.Name
	d.Email = r.Email
	d.Phone = r.Phone
	d.CarLicensePlate = r.CarLicensePlate
	d.DriverLicenseID = r.DriverLicenseID
}

// Constructors

func NewWarehouseService(store repository.Store[model.Warehouse], tx repository.TransactionManager, engine *policy.Engine, audit repository.AuditRepository) *WarehouseService {
	return NewResourceService(store, tx, engine, audit, ResourceConfig[model.Warehouse, *model.Warehouse]{
		Entity:       "warehouse",
		Read:         policy.WarehouseRead,
		Write:        policy.WarehouseWrite,
		SearchColumn: "name",
		Validate: func(_ context.Context, _ int64, w *model.Warehouse) error {
			if strings.TrimSpace(w.Name) == "" {
				return apperror.Invalid("warehouse.Validate", "name is required")
			}
			return nil
		},
	})
}

func NewProductService(store repository.Store[model.Product], warehouses repository.Store[model.Warehouse], tx repository.TransactionManager, engine *policy.Engine, audit repository.AuditRepository) *ProductService {
	return NewResourceService(store, tx, engine, audit, ResourceConfig[model.Product, *model.Product]{
		Entity:       "product",
		Read:         policy.ProductRead,
		Write:        policy.ProductWrite,
		SearchColumn: "name",
		Validate: func(ctx context.Context, orgID int64, p *model.Product) error {
			const op = "product.Validate"
			if strings.TrimSpace(p.Name) == "" {
				return apperror.Invalid(op, "name is required")
			}
			if p.Quantity.IsNegative() {
				return apperror.Invalid(op, "quantity cannot be negative")
			}
			if p.Price.IsNegative() {
				return apperror.Invalid(op, "price cannot be negative")
			}
			if p.WarehouseID != nil {
				return requireExists(ctx, warehouses, orgID, *p.WarehouseID, op, "warehouse")
			}
			return nil
		},
	})
}

func NewClientService(store repository.Store[model.Client], tx repository.TransactionManager, engine *policy.Engine, audit repository.AuditRepository) *ClientService {
	return NewResourceService(store, tx, engine, audit, ResourceConfig[model.Client, *model.Client]{
		Entity:       "client",
		Read:         policy.ClientRead,
		Write:        policy.ClientWrite,
		SearchColumn: "company_name",
		Validate: func(_ context.Context, _ int64, c *model.Client) error {
			switch c.ClientType {
			case "":
				c.ClientType = model.ClientTypeShop
			case model.ClientTypeShop, model.ClientTypeDistributor:
			default:
				return apperror.Invalid("client.Validate", "client_type must be Shop or Distributor")
			}
			return nil
		},
	})
}

func NewSupplierService(store repository.Store[model.Supplier], tx repository.TransactionManager, engine *policy.Engine, audit repository.AuditRepository) *SupplierService {
	return NewResourceService(store, tx, engine, audit, ResourceConfig[model.Supplier, *model.Supplier]{
		Entity:       "supplier",
		Read:         policy.SupplierRead,
		Write:        policy.SupplierWrite,
		SearchColumn: "company_name",
	})
}

func NewDriverService(store repository.Store[model.Driver], tx repository.TransactionManager, engine *policy.Engine, audit repository.AuditRepository) *DriverService {
	return NewResourceService(store, tx, engine, audit, ResourceConfig[model.Driver, *model.Driver]{
		Entity:       "driver",
		Read:         policy.DriverRead,
		Write:        policy.DriverWrite,
		SearchColumn: "name",
	})
}

// requireExists checks that a referenced record lives in orgID
func requireExists[T any](ctx context.Context, store repository.Store[T], orgID, id int64, op, entity string) error {
	if _, err := store.Get(ctx, orgID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Invalid(op, entity+" does not exist")
		}
		return apperror.FromStore(op, entity, err)
	}
	return nil
}
