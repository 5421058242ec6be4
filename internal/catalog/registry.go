// Package catalog is the schema registry for approval payloads. Each registered table maps the
// (type, table) of a proposed mutation to a typed payload, validates it before it is stored and again
// before it is applied, and knows how to apply it to the shop's records. Only registered tables can be
// mutated through the access layer.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownTable is returned for a table name that has no registered schema
	ErrUnknownTable = errors.New("catalog: unknown table")
	// ErrInvalidPayload is returned when request data does not match the table schema
	ErrInvalidPayload = errors.New("catalog: invalid payload")
	// ErrRecordNotFound is returned when the target record is missing, soft-deleted or in another shop
	ErrRecordNotFound = errors.New("catalog: record not found")
)

// Records is the persistence surface the registered tables write through
type Records interface {
	InsertProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, shopID, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) (bool, error)
	SoftDeleteProduct(ctx context.Context, shopID, id uuid.UUID) (bool, error)

	InsertSupplier(ctx context.Context, s *models.Supplier) error
	GetSupplier(ctx context.Context, shopID, id uuid.UUID) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, s *models.Supplier) (bool, error)
	SoftDeleteSupplier(ctx context.Context, shopID, id uuid.UUID) (bool, error)
}

// Mutation is a fully specified change against one table of one shop
type Mutation struct {
	ShopID   uuid.UUID
	Type     models.ApprovalType
	RecordID *uuid.UUID
	Data     json.RawMessage
}

// Result reports the record a mutation touched and its field-level diff
type Result struct {
	RecordID uuid.UUID
	Changes  []models.FieldChange
}

// Table is the schema and apply logic of one mutable entity
type Table interface {
	Name() string
	Module() auth.Module
	Validate(typ models.ApprovalType, data json.RawMessage) error
	// Load returns the live record, or nil when it is missing, soft-deleted or in another shop
	Load(ctx context.Context, r Records, shopID, id uuid.UUID) (any, error)
	Apply(ctx context.Context, r Records, m Mutation) (*Result, error)
}

// Registry maps logical table names to their schema
type Registry struct {
	tables map[string]Table
}

// NewRegistry returns a registry with the Product and Supplier tables registered
func NewRegistry() *Registry {
	v := newValidator()
	r := &Registry{tables: make(map[string]Table)}
	r.Register(&productTable{validate: v})
	r.Register(&supplierTable{validate: v})
	return r
}

// Register adds or replaces a table
func (r *Registry) Register(t Table) {
	r.tables[t.Name()] = t
}

// Lookup returns the table registered under name
func (r *Registry) Lookup(name string) (Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// Names returns the registered table names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredPermission maps a mutation type to the permission that lets a worker apply it directly
func RequiredPermission(typ models.ApprovalType) (auth.Permission, error) {
	switch typ {
	case models.ApprovalTypeCreate:
		return auth.PermissionCreate, nil
	case models.ApprovalTypeUpdate:
		return auth.PermissionEdit, nil
	case models.ApprovalTypeDelete:
		return auth.PermissionDelete, nil
	}
	return "", fmt.Errorf("%w: unknown mutation type %q", ErrInvalidPayload, typ)
}

func newValidator() *validator.Validate {
	v := validator.New()
	// decimal.Decimal is a struct; validate it by its numeric value so gte/gt tags apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("money", validMoney)
	return v
}

// maxMoney is the largest value a NUMERIC(12,2) column holds.
var maxMoney = decimal.RequireFromString("9999999999.99")

// validMoney accepts non-negative amounts that fit NUMERIC(12,2) without rounding. It reads the
// field from its parent because the custom type func hands tags a float64.
func validMoney(fl validator.FieldLevel) bool {
	field := reflect.Indirect(fl.Parent()).FieldByName(fl.StructFieldName())
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	return !d.IsNegative() && d.LessThanOrEqual(maxMoney) && d.Equal(d.Round(2))
}

// decodeStrict unmarshals data into dst rejecting unknown fields and trailing content, then runs
// struct validation.
func decodeStrict(v *validator.Validate, data json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after payload", ErrInvalidPayload)
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// requireEmpty accepts an absent, null or empty-object payload, as sent with deletes
func requireEmpty(data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil || len(m) != 0 {
		return fmt.Errorf("%w: delete takes no fields", ErrInvalidPayload)
	}
	return nil
}

// diff helpers

type fieldDiff struct {
	changes []models.FieldChange
}

func (d *fieldDiff) add(field string, oldValue, newValue any) {
	d.changes = append(d.changes, models.FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
}

func setString(d *fieldDiff, field string, dst *string, patch *string) {
	if patch != nil && *patch != *dst {
		d.add(field, *dst, *patch)
		*dst = *patch
	}
}

func setOptString(d *fieldDiff, field string, dst **string, patch *string) {
	if patch == nil {
		return
	}
	var old any
	if *dst != nil {
		if **dst == *patch {
			return
		}
		old = **dst
	}
	d.add(field, old, *patch)
	v := *patch
	*dst = &v
}

func setDecimal(d *fieldDiff, field string, dst *decimal.Decimal, patch *decimal.Decimal) {
	if patch != nil && !patch.Equal(*dst) {
		d.add(field, dst.String(), patch.String())
		*dst = *patch
	}
}

func setInt(d *fieldDiff, field string, dst *int, patch *int) {
	if patch != nil && *patch != *dst {
		d.add(field, *dst, *patch)
		*dst = *patch
	}
}

func optValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
