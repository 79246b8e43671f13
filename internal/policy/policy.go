package policy

import (
	"fmt"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/internal/model"
)

// Action names a protected operation
type Action string

const (
	OrganizationRead   Action = "organization.read"
	OrganizationCreate Action = "organization.create"
	OrganizationUpdate Action = "organization.update"
	AccountManage      Action = "account.manage"

	WarehouseRead  Action = "warehouse.read"
	WarehouseWrite Action = "warehouse.write"
	ProductRead    Action = "product.read"
	ProductWrite   Action = "product.write"
	ClientRead     Action = "client.read"
	ClientWrite    Action = "client.write"
	SupplierRead   Action = "supplier.read"
	SupplierWrite  Action = "supplier.write"
	DriverRead     Action = "driver.read"
	DriverWrite    Action = "driver.write"

	OrderRead     Action = "order.read"
	OrderWrite    Action = "order.write"
	OrderMarkPaid Action = "order.mark_paid"

	DeliveryList         Action = "delivery.list"
	DeliveryListByDriver Action = "delivery.list_by_driver"
	DeliveryView         Action = "delivery.view"
	DeliveryCreate       Action = "delivery.create"
	DeliveryUpdate       Action = "delivery.update"
	DeliveryDelete       Action = "delivery.delete"
	DeliveryStatusView   Action = "delivery.status.view"
	DeliveryStatusAppend Action = "delivery.status.append"

	RFQRead         Action = "rfq.read"
	RFQWrite        Action = "rfq.write"
	QuotationRead   Action = "quotation.read"
	QuotationSubmit Action = "quotation.submit"
	QuotationSelect Action = "quotation.select"

	InvoiceView   Action = "invoice.view"
	DashboardView Action = "dashboard.view"
	AuditView     Action = "audit.view"
)

// Rule lists the roles allowed to perform an action. Scoped actions also
// require the resource to belong to the caller's organization.
type Rule struct {
	Roles  []model.Role
	Scoped bool
}

func (r Rule) allows(role model.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func roles(rs ...model.Role) []model.Role { return rs }

// Default is the permission table of the service
func Default() map[Action]Rule {
	const (
		admin       = model.RoleAdmin
		sales       = model.RoleSales
		procurement = model.RoleProcurement
		warehouse   = model.RoleWarehouse
		driver      = model.RoleDriver
		supplier    = model.RoleSupplier
		delivery    = model.RoleDelivery
	)
	scoped := func(rs ...model.Role) Rule { return Rule{Roles: rs, Scoped: true} }

	return map[Action]Rule{
		OrganizationRead:   scoped(model.AllRoles...),
		OrganizationCreate: {Roles: roles(admin)},
		OrganizationUpdate: scoped(admin),
		AccountManage:      scoped(admin),

		WarehouseRead:  scoped(admin, warehouse, procurement),
		WarehouseWrite: scoped(admin, warehouse),
		ProductRead:    scoped(model.AllRoles...),
		ProductWrite:   scoped(admin, warehouse),
		ClientRead:     scoped(admin, sales),
		ClientWrite:    scoped(admin),
		SupplierRead:   scoped(admin, procurement),
		SupplierWrite:  scoped(admin),
		DriverRead:     scoped(admin, delivery, warehouse),
		DriverWrite:    scoped(admin),

		OrderRead:     scoped(admin, sales),
		OrderWrite:    scoped(admin, sales),
		OrderMarkPaid: scoped(admin, sales),

		DeliveryList:         scoped(admin, warehouse, sales),
		DeliveryListByDriver: scoped(admin, warehouse, sales, driver),
		DeliveryView:         scoped(admin, driver, warehouse, sales),
		DeliveryCreate:       scoped(admin, warehouse),
		DeliveryUpdate:       scoped(admin, warehouse),
		DeliveryDelete:       scoped(admin, warehouse),
		DeliveryStatusView:   scoped(admin, driver, warehouse),
		DeliveryStatusAppend: scoped(admin, driver, warehouse),

		RFQRead:         scoped(admin, procurement),
		RFQWrite:        scoped(admin, procurement),
		QuotationRead:   scoped(admin, procurement),
		QuotationSubmit: scoped(admin, procurement, supplier),
		QuotationSelect: scoped(admin, procurement),

		InvoiceView:   scoped(admin, sales),
		DashboardView: scoped(admin),
		AuditView:     scoped(admin),
	}
}

// Engine evaluates the permission table
type Engine struct {
	rules map[Action]Rule
}

func NewEngine(rules map[Action]Rule) *Engine {
	return &Engine{rules: rules}
}

// Rule returns the rule registered for action
func (e *Engine) Rule(action Action) (Rule, bool) {
	r, ok := e.rules[action]
	return r, ok
}

// AllowRole runs only the role gate. Route middleware uses it before the
// resource is known.
func (e *Engine) AllowRole(p identity.Principal, action Action) error {
	op := "policy." + string(action)
	rule, ok := e.rules[action]
	if !ok {
		return apperror.Forbidden(op, fmt.Sprintf("unknown action %q", action))
	}
	if !rule.allows(p.Role) {
		return apperror.Forbidden(op, "Access denied: insufficient permissions")
	}
	return nil
}

// Authorize decides whether p may perform action on a resource owned by
// resourceOrg. A nil resourceOrg targets the caller's own organization.
func (e *Engine) Authorize(p identity.Principal, action Action, resourceOrg *int64) error {
	if err := e.AllowRole(p, action); err != nil {
		return err
	}
	rule := e.rules[action]
	if !rule.Scoped {
		return nil
	}

	op := "policy." + string(action)
	if p.OrganizationID == nil {
		return apperror.Forbidden(op, "Access denied: user has no organization")
	}
	if resourceOrg != nil && *resourceOrg != *p.OrganizationID {
		return apperror.Forbidden(op, "Access denied: resource belongs to another organization")
	}
	return nil
}

// Org is a helper for passing a known organization id to Authorize
func Org(id int64) *int64 { return &id }
