// Package auth - permissions.go publishes the module and permission catalog that permission grants
// are stored against. Both sets are closed: grants and callers must match these strings exactly.
package auth

import (
	"fmt"
)

// Module is a functional area of the shop application that permissions are granted on
type Module string

const (
	ModuleProductManagement   Module = "PRODUCT_MANAGEMENT"
	ModuleInventoryManagement Module = "INVENTORY_MANAGEMENT"
	ModulePOSSystem           Module = "POS_SYSTEM"
	ModulePurchaseManagement  Module = "PURCHASE_MANAGEMENT"
	ModuleSalesManagement     Module = "SALES_MANAGEMENT"
	ModuleSupplierManagement  Module = "SUPPLIER_MANAGEMENT"
	ModuleCustomerManagement  Module = "CUSTOMER_MANAGEMENT"
	ModuleReports             Module = "REPORTS"
	ModuleUserManagement      Module = "USER_MANAGEMENT"
	ModuleSettings            Module = "SETTINGS"
)

// Permission is an action on a module
type Permission string

const (
	PermissionView   Permission = "VIEW"
	PermissionCreate Permission = "CREATE"
	PermissionEdit   Permission = "EDIT"
	PermissionDelete Permission = "DELETE"
	// PermissionManage subsumes the other four permissions of the same module.
	PermissionManage Permission = "MANAGE"
)

// AllModules returns all valid modules in display order
func AllModules() []Module {
	return []Module{
		ModuleProductManagement,
		ModuleInventoryManagement,
		ModulePOSSystem,
		ModulePurchaseManagement,
		ModuleSalesManagement,
		ModuleSupplierManagement,
		ModuleCustomerManagement,
		ModuleReports,
		ModuleUserManagement,
		ModuleSettings,
	}
}

// AllPermissions returns all valid permissions
func AllPermissions() []Permission {
	return []Permission{
		PermissionView,
		PermissionCreate,
		PermissionEdit,
		PermissionDelete,
		PermissionManage,
	}
}

// Valid reports whether m is part of the module catalog
func (m Module) Valid() bool {
	for _, known := range AllModules() {
		if m == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is part of the permission catalog
func (p Permission) Valid() bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

// ParseModule validates a module string
func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid module: %s", s)
	}
	return m, nil
}

// ParsePermission validates a permission string
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid permission: %s", s)
	}
	return p, nil
}

// Implies reports whether holding granted satisfies required on the same module.
// MANAGE satisfies every permission; any other permission only satisfies itself.
func (granted Permission) Implies(required Permission) bool {
	if granted == required {
		return true
	}
	return granted == PermissionManage
}

// CatalogEntry is one module with the permissions that can be granted on it
type CatalogEntry struct {
	Module      Module       `json:"module"`
	Permissions []Permission `json:"permissions"`
}

// Catalog returns the published module × permission contract
func Catalog() []CatalogEntry {
	modules := AllModules()
	entries := make([]CatalogEntry, 0, len(modules))
	for _, m := range modules {
		entries = append(entries, CatalogEntry{Module: m, Permissions: AllPermissions()})
	}
	return entries
}
