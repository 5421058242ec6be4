package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopspring/decimal"
)

// ProductCreate is the payload of a Product CREATE
type ProductCreate struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Brand         *string         `json:"brand" validate:"omitempty,max=128"`
	Model         *string         `json:"model" validate:"omitempty,max=128"`
	SKU           *string         `json:"sku" validate:"omitempty,max=64"`
	Price         decimal.Decimal `json:"price" validate:"money"`
	CostPrice     decimal.Decimal `json:"cost_price" validate:"money"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

// ProductUpdate is the payload of a Product UPDATE; absent fields are left unchanged
type ProductUpdate struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Brand         *string          `json:"brand" validate:"omitempty,max=128"`
	Model         *string          `json:"model" validate:"omitempty,max=128"`
	SKU           *string          `json:"sku" validate:"omitempty,max=64"`
	Price         *decimal.Decimal `json:"price" validate:"omitempty,money"`
	CostPrice     *decimal.Decimal `json:"cost_price" validate:"omitempty,money"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
}

func (u *ProductUpdate) empty() bool {
	return u.Name == nil && u.Brand == nil && u.Model == nil && u.SKU == nil &&
		u.Price == nil && u.CostPrice == nil && u.StockQuantity == nil
}

type productTable struct {
	validate *validator.Validate
}

func (t *productTable) Name() string        { return models.TableProduct }
func (t *productTable) Module() auth.Module { return auth.ModuleProductManagement }

func (t *productTable) Validate(typ models.ApprovalType, data json.RawMessage) error {
	switch typ {
	case models.ApprovalTypeCreate:
		var p ProductCreate
		return decodeStrict(t.validate, data, &p)
	case models.ApprovalTypeUpdate:
		_, err := t.decodeUpdate(data)
		return err
	case models.ApprovalTypeDelete:
		return requireEmpty(data)
	}
	return fmt.Errorf("%w: unknown mutation type %q", ErrInvalidPayload, typ)
}

func (t *productTable) decodeUpdate(data json.RawMessage) (*ProductUpdate, error) {
	var u ProductUpdate
	if err := decodeStrict(t.validate, data, &u); err != nil {
		return nil, err
	}
	if u.empty() {
		return nil, fmt.Errorf("%w: update has no fields", ErrInvalidPayload)
	}
	return &u, nil
}

func (t *productTable) Load(ctx context.Context, r Records, shopID, id uuid.UUID) (any, error) {
	rec, err := r.GetProduct(ctx, shopID, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

func (t *productTable) Apply(ctx context.Context, r Records, m Mutation) (*Result, error) {
	switch m.Type {
	case models.ApprovalTypeCreate:
		var in ProductCreate
		if err := decodeStrict(t.validate, m.Data, &in); err != nil {
			return nil, err
		}
		p := &models.Product{
			ShopID:        m.ShopID,
			Name:          in.Name,
			Brand:         in.Brand,
			Model:         in.Model,
			SKU:           in.SKU,
			Price:         in.Price,
			CostPrice:     in.CostPrice,
			StockQuantity: in.StockQuantity,
		}
		if err := r.InsertProduct(ctx, p); err != nil {
			return nil, err
		}
		d := &fieldDiff{}
		d.add("name", nil, p.Name)
		d.add("brand", nil, optValue(p.Brand))
		d.add("model", nil, optValue(p.Model))
		d.add("sku", nil, optValue(p.SKU))
		d.add("price", nil, p.Price.String())
		d.add("cost_price", nil, p.CostPrice.String())
		d.add("stock_quantity", nil, p.StockQuantity)
		return &Result{RecordID: p.ID, Changes: d.changes}, nil

	case models.ApprovalTypeUpdate:
		if m.RecordID == nil {
			return nil, fmt.Errorf("%w: update requires a record id", ErrInvalidPayload)
		}
		patch, err := t.decodeUpdate(m.Data)
		if err != nil {
			return nil, err
		}
		p, err := r.GetProduct(ctx, m.ShopID, *m.RecordID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrRecordNotFound
		}
		d := &fieldDiff{}
		setString(d, "name", &p.Name, patch.Name)
		setOptString(d, "brand", &p.Brand, patch.Brand)
		setOptString(d, "model", &p.Model, patch.Model)
		setOptString(d, "sku", &p.SKU, patch.SKU)
		setDecimal(d, "price", &p.Price, patch.Price)
		setDecimal(d, "cost_price", &p.CostPrice, patch.CostPrice)
		setInt(d, "stock_quantity", &p.StockQuantity, patch.StockQuantity)
		if len(d.changes) > 0 {
			ok, err := r.UpdateProduct(ctx, p)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrRecordNotFound
			}
		}
		return &Result{RecordID: p.ID, Changes: d.changes}, nil

	case models.ApprovalTypeDelete:
		if m.RecordID == nil {
			return nil, fmt.Errorf("%w: delete requires a record id", ErrInvalidPayload)
		}
		if err := requireEmpty(m.Data); err != nil {
			return nil, err
		}
		p, err := r.GetProduct(ctx, m.ShopID, *m.RecordID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrRecordNotFound
		}
		ok, err := r.SoftDeleteProduct(ctx, m.ShopID, p.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRecordNotFound
		}
		d := &fieldDiff{}
		d.add("name", p.Name, nil)
		d.add("stock_quantity", p.StockQuantity, nil)
		return &Result{RecordID: p.ID, Changes: d.changes}, nil
	}
	return nil, fmt.Errorf("%w: unknown mutation type %q", ErrInvalidPayload, m.Type)
}
