package shared

import "strings"

// ModuleCode identifies a business capability area subject to permission control.
type ModuleCode string

// Business modules known to this build. New modules may appear in stored
// permission rows before a given binary knows about them.
const (
	ModuleProducts   ModuleCode = "products"
	ModuleCategories ModuleCode = "categories"
	ModuleSales      ModuleCode = "sales"
	ModuleClients    ModuleCode = "clients"
	ModuleSuppliers  ModuleCode = "suppliers"
	ModuleInventory  ModuleCode = "inventory"
	ModuleFinance    ModuleCode = "finance"
	ModulePriceLists ModuleCode = "price_lists"
	ModuleEmployees  ModuleCode = "employees"
	ModuleRoles      ModuleCode = "roles"
	ModuleDashboard  ModuleCode = "dashboard"
)

// Module describes a catalogue entry.
type Module struct {
	Code ModuleCode `json:"code"`
	Name string     `json:"name"`
}

var moduleCatalogue = []Module{
	{Code: ModuleProducts, Name: "Products"},
	{Code: ModuleCategories, Name: "Categories"},
	{Code: ModuleSales, Name: "Sales"},
	{Code: ModuleClients, Name: "Clients"},
	{Code: ModuleSuppliers, Name: "Suppliers"},
	{Code: ModuleInventory, Name: "Inventory"},
	{Code: ModuleFinance, Name: "Finance"},
	{Code: ModulePriceLists, Name: "Price lists"},
	{Code: ModuleEmployees, Name: "Employees"},
	{Code: ModuleRoles, Name: "Roles"},
	{Code: ModuleDashboard, Name: "Dashboard"},
}

// Modules lists the static module catalogue.
func Modules() []Module {
	out := make([]Module, len(moduleCatalogue))
	copy(out, moduleCatalogue)
	return out
}

// KnownModule reports whether code is part of the catalogue.
func KnownModule(code ModuleCode) bool {
	for _, m := range moduleCatalogue {
		if m.Code == code {
			return true
		}
	}
	return false
}

// Capability is the finest grain of permission.
type Capability string

const (
	CapView   Capability = "view"
	CapCreate Capability = "create"
	CapEdit   Capability = "edit"
	CapDelete Capability = "delete"
)

// ParseCapability normalises a capability name. ok is false for unknown values.
func ParseCapability(raw string) (Capability, bool) {
	switch c := Capability(strings.ToLower(strings.TrimSpace(raw))); c {
	case CapView, CapCreate, CapEdit, CapDelete:
		return c, true
	default:
		return "", false
	}
}

// RoleKind tags how a role is authorised.
type RoleKind string

const (
	// RoleKindNone marks an employee without a role.
	RoleKindNone RoleKind = ""
	// RoleKindScoped roles are governed exclusively by their permission matrix.
	RoleKindScoped RoleKind = "scoped"
	// RoleKindSystemAdmin roles bypass the permission matrix entirely.
	RoleKindSystemAdmin RoleKind = "system_admin"
)

// Valid reports whether k can be stored on a role.
func (k RoleKind) Valid() bool {
	return k == RoleKindScoped || k == RoleKindSystemAdmin
}

// ModulePermission is one flattened row of a role's permission matrix.
type ModulePermission struct {
	Module    ModuleCode `json:"module"`
	CanView   bool       `json:"can_view"`
	CanCreate bool       `json:"can_create"`
	CanEdit   bool       `json:"can_edit"`
	CanDelete bool       `json:"can_delete"`
}

// Allows reports whether the row grants the capability.
func (p ModulePermission) Allows(c Capability) bool {
	switch c {
	case CapView:
		return p.CanView
	case CapCreate:
		return p.CanCreate
	case CapEdit:
		return p.CanEdit
	case CapDelete:
		return p.CanDelete
	default:
		return false
	}
}

// Access is the resolved authorisation of a role: either SystemAdmin or Scoped
// with an explicit permission list.
type Access struct {
	Kind        RoleKind           `json:"kind"`
	Permissions []ModulePermission `json:"permissions"`
}

// IsSystemAdmin reports whether the access bypasses the permission matrix.
func (a Access) IsSystemAdmin() bool {
	return a.Kind == RoleKindSystemAdmin
}

// Permission returns the row for module, if any.
func (a Access) Permission(module ModuleCode) (ModulePermission, bool) {
	for _, p := range a.Permissions {
		if p.Module == module {
			return p, true
		}
	}
	return ModulePermission{}, false
}

// Clone returns a deep copy so snapshots never share backing arrays.
func (a Access) Clone() Access {
	perms := make([]ModulePermission, len(a.Permissions))
	copy(perms, a.Permissions)
	return Access{Kind: a.Kind, Permissions: perms}
}
