package catalog_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access/accesstest"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/catalog"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	r := catalog.NewRegistry()
	assert.Equal(t, []string{models.TableProduct, models.TableSupplier}, r.Names())

	table, err := r.Lookup(models.TableProduct)
	require.NoError(t, err)
	assert.Equal(t, auth.ModuleProductManagement, table.Module())

	table, err = r.Lookup(models.TableSupplier)
	require.NoError(t, err)
	assert.Equal(t, auth.ModuleSupplierManagement, table.Module())

	_, err = r.Lookup("product")
	assert.ErrorIs(t, err, catalog.ErrUnknownTable)
}

func TestRequiredPermission(t *testing.T) {
	tests := map[models.ApprovalType]auth.Permission{
		models.ApprovalTypeCreate: auth.PermissionCreate,
		models.ApprovalTypeUpdate: auth.PermissionEdit,
		models.ApprovalTypeDelete: auth.PermissionDelete,
	}
	for typ, want := range tests {
		got, err := catalog.RequiredPermission(typ)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := catalog.RequiredPermission("MERGE")
	assert.ErrorIs(t, err, catalog.ErrInvalidPayload)
}

func TestProduct_Validate(t *testing.T) {
	table, err := catalog.NewRegistry().Lookup(models.TableProduct)
	require.NoError(t, err)

	tests := []struct {
		name    string
		typ     models.ApprovalType
		data    string
		wantErr bool
	}{
		{"create", models.ApprovalTypeCreate, `{"name":"Galaxy S25","price":"999.99","cost_price":"700","stock_quantity":3}`, false},
		{"create numeric price", models.ApprovalTypeCreate, `{"name":"Cable","price":5.5}`, false},
		{"create without name", models.ApprovalTypeCreate, `{"price":"1"}`, true},
		{"create negative stock", models.ApprovalTypeCreate, `{"name":"x","stock_quantity":-1}`, true},
		{"create negative cost", models.ApprovalTypeCreate, `{"name":"x","cost_price":"-0.01"}`, true},
		{"create unknown field", models.ApprovalTypeCreate, `{"name":"x","imei":"123"}`, true},
		{"create trailing data", models.ApprovalTypeCreate, `{"name":"x"}{"name":"y"}`, true},
		{"create not json", models.ApprovalTypeCreate, `name=x`, true},
		{"create price at column maximum", models.ApprovalTypeCreate, `{"name":"x","price":"9999999999.99"}`, false},
		{"create price overflows column", models.ApprovalTypeCreate, `{"name":"x","price":"1e400"}`, true},
		{"create price above column maximum", models.ApprovalTypeCreate, `{"name":"x","price":"10000000000"}`, true},
		{"create cost with sub-cent digits", models.ApprovalTypeCreate, `{"name":"x","cost_price":"0.001"}`, true},
		{"update", models.ApprovalTypeUpdate, `{"price":"10"}`, false},
		{"update trailing zeros", models.ApprovalTypeUpdate, `{"price":"10.500"}`, false},
		{"update price overflows column", models.ApprovalTypeUpdate, `{"price":"1e11"}`, true},
		{"update price with sub-cent digits", models.ApprovalTypeUpdate, `{"price":"0.001"}`, true},
		{"update negative cost", models.ApprovalTypeUpdate, `{"cost_price":"-1"}`, true},
		{"update empty", models.ApprovalTypeUpdate, `{}`, true},
		{"update empty name", models.ApprovalTypeUpdate, `{"name":""}`, true},
		{"delete empty object", models.ApprovalTypeDelete, `{}`, false},
		{"delete null", models.ApprovalTypeDelete, `null`, false},
		{"delete with fields", models.ApprovalTypeDelete, `{"name":"x"}`, true},
		{"unknown type", models.ApprovalType("PATCH"), `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.Validate(tt.typ, json.RawMessage(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, catalog.ErrInvalidPayload)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSupplier_Validate(t *testing.T) {
	table, err := catalog.NewRegistry().Lookup(models.TableSupplier)
	require.NoError(t, err)

	assert.NoError(t, table.Validate(models.ApprovalTypeCreate, json.RawMessage(`{"name":"Acme","phone":"+44 20 7946 0000"}`)))
	assert.ErrorIs(t, table.Validate(models.ApprovalTypeCreate, json.RawMessage(`{"name":"Acme","email":"not-an-email"}`)), catalog.ErrInvalidPayload)
	assert.ErrorIs(t, table.Validate(models.ApprovalTypeUpdate, json.RawMessage(`{}`)), catalog.ErrInvalidPayload)
}

func TestProduct_Apply(t *testing.T) {
	ctx := context.Background()
	store := accesstest.New()
	records := store.Reader()
	table, err := catalog.NewRegistry().Lookup(models.TableProduct)
	require.NoError(t, err)
	shopID := uuid.New()

	created, err := table.Apply(ctx, records, catalog.Mutation{
		ShopID: shopID,
		Type:   models.ApprovalTypeCreate,
		Data:   json.RawMessage(`{"name":"Nokia 3310","brand":"Nokia","price":"59.00","cost_price":"30","stock_quantity":12}`),
	})
	require.NoError(t, err)
	assert.Len(t, created.Changes, 7)
	assert.Equal(t, models.FieldChange{Field: "brand", OldValue: nil, NewValue: "Nokia"}, created.Changes[1])

	t.Run("update diffs only changed fields", func(t *testing.T) {
		res, err := table.Apply(ctx, records, catalog.Mutation{
			ShopID:   shopID,
			Type:     models.ApprovalTypeUpdate,
			RecordID: &created.RecordID,
			Data:     json.RawMessage(`{"name":"Nokia 3310","price":"49.00","brand":"HMD"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, []models.FieldChange{
			{Field: "brand", OldValue: "Nokia", NewValue: "HMD"},
			{Field: "price", OldValue: "59", NewValue: "49"},
		}, res.Changes)
		assert.True(t, store.Product(created.RecordID).Price.Equal(decimal.NewFromInt(49)))
	})

	t.Run("record of another shop", func(t *testing.T) {
		_, err := table.Apply(ctx, records, catalog.Mutation{
			ShopID:   uuid.New(),
			Type:     models.ApprovalTypeUpdate,
			RecordID: &created.RecordID,
			Data:     json.RawMessage(`{"price":"1"}`),
		})
		assert.ErrorIs(t, err, catalog.ErrRecordNotFound)

		rec, err := table.Load(ctx, records, uuid.New(), created.RecordID)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("delete then load", func(t *testing.T) {
		res, err := table.Apply(ctx, records, catalog.Mutation{ShopID: shopID, Type: models.ApprovalTypeDelete, RecordID: &created.RecordID})
		require.NoError(t, err)
		assert.Equal(t, created.RecordID, res.RecordID)

		rec, err := table.Load(ctx, records, shopID, created.RecordID)
		require.NoError(t, err)
		assert.Nil(t, rec)

		_, err = table.Apply(ctx, records, catalog.Mutation{ShopID: shopID, Type: models.ApprovalTypeDelete, RecordID: &created.RecordID})
		assert.ErrorIs(t, err, catalog.ErrRecordNotFound)
	})

	t.Run("update without record id", func(t *testing.T) {
		_, err := table.Apply(ctx, records, catalog.Mutation{ShopID: shopID, Type: models.ApprovalTypeUpdate, Data: json.RawMessage(`{"price":"1"}`)})
		assert.ErrorIs(t, err, catalog.ErrInvalidPayload)
	})
}

func TestSupplier_Apply(t *testing.T) {
	ctx := context.Background()
	records := accesstest.New().Reader()
	table, err := catalog.NewRegistry().Lookup(models.TableSupplier)
	require.NoError(t, err)
	shopID := uuid.New()

	created, err := table.Apply(ctx, records, catalog.Mutation{
		ShopID: shopID,
		Type:   models.ApprovalTypeCreate,
		Data:   json.RawMessage(`{"name":"Acme","phone":"555-0100"}`),
	})
	require.NoError(t, err)

	res, err := table.Apply(ctx, records, catalog.Mutation{
		ShopID:   shopID,
		Type:     models.ApprovalTypeUpdate,
		RecordID: &created.RecordID,
		Data:     json.RawMessage(`{"phone":"555-0100","email":"orders@acme.test"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.FieldChange{{Field: "email", OldValue: nil, NewValue: "orders@acme.test"}}, res.Changes)

	rec, err := table.Load(ctx, records, shopID, created.RecordID)
	require.NoError(t, err)
	s := rec.(*models.Supplier)
	require.NotNil(t, s.Email)
	assert.Equal(t, "orders@acme.test", *s.Email)
}
