package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// SupplierCreate is the payload of a Supplier CREATE
type SupplierCreate struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address" validate:"omitempty,max=1024"`
}

// SupplierUpdate is the payload of a Supplier UPDATE; absent fields are left unchanged
type SupplierUpdate struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address" validate:"omitempty,max=1024"`
}

type supplierTable struct {
	validate *validator.Validate
}

func (t *supplierTable) Name() string        { return models.TableSupplier }
func (t *supplierTable) Module() auth.Module { return auth.ModuleSupplierManagement }

func (t *supplierTable) Validate(typ models.ApprovalType, data json.RawMessage) error {
	switch typ {
	case models.ApprovalTypeCreate:
		var s SupplierCreate
		return decodeStrict(t.validate, data, &s)
	case models.ApprovalTypeUpdate:
		_, err := t.decodeUpdate(data)
		return err
	case models.ApprovalTypeDelete:
		return requireEmpty(data)
	}
	return fmt.Errorf("%w: unknown mutation type %q", ErrInvalidPayload, typ)
}

func (t *supplierTable) decodeUpdate(data json.RawMessage) (*SupplierUpdate, error) {
	var u SupplierUpdate
	if err := decodeStrict(t.validate, data, &u); err != nil {
		return nil, err
	}
	if u.Name == nil && u.Phone == nil && u.Email == nil && u.Address == nil {
		return nil, fmt.Errorf("%w: update has no fields", ErrInvalidPayload)
	}
	return &u, nil
}

func (t *supplierTable) Load(ctx context.Context, r Records, shopID, id uuid.UUID) (any, error) {
	rec, err := r.GetSupplier(ctx, shopID, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

func (t *supplierTable) Apply(ctx context.Context, r Records, m Mutation) (*Result, error) {
	switch m.Type {
	case models.ApprovalTypeCreate:
		var in SupplierCreate
		if err := decodeStrict(t.validate, m.Data, &in); err != nil {
			return nil, err
		}
		s := &models.Supplier{ShopID: m.ShopID, Name: in.Name, Phone: in.Phone, Email: in.Email, Address: in.Address}
		if err := r.InsertSupplier(ctx, s); err != nil {
			return nil, err
		}
		d := &fieldDiff{}
		d.add("name", nil, s.Name)
		d.add("phone", nil, optValue(s.Phone))
		d.add("email", nil, optValue(s.Email))
		d.add("address", nil, optValue(s.Address))
		return &Result{RecordID: s.ID, Changes: d.changes}, nil

	case models.ApprovalTypeUpdate:
		if m.RecordID == nil {
			return nil, fmt.Errorf("%w: update requires a record id", ErrInvalidPayload)
		}
		patch, err := t.decodeUpdate(m.Data)
		if err != nil {
			return nil, err
		}
		s, err := r.GetSupplier(ctx, m.ShopID, *m.RecordID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ErrRecordNotFound
		}
		d := &fieldDiff{}
		setString(d, "name", &s.Name, patch.Name)
		setOptString(d, "phone", &s.Phone, patch.Phone)
		setOptString(d, "email", &s.Email, patch.Email)
		setOptString(d, "address", &s.Address, patch.Address)
		if len(d.changes) > 0 {
			ok, err := r.UpdateSupplier(ctx, s)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrRecordNotFound
			}
		}
		return &Result{RecordID: s.ID, Changes: d.changes}, nil

	case models.ApprovalTypeDelete:
		if m.RecordID == nil {
			return nil, fmt.Errorf("%w: delete requires a record id", ErrInvalidPayload)
		}
		if err := requireEmpty(m.Data); err != nil {
			return nil, err
		}
		s, err := r.GetSupplier(ctx, m.ShopID, *m.RecordID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ErrRecordNotFound
		}
		ok, err := r.SoftDeleteSupplier(ctx, m.ShopID, s.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRecordNotFound
		}
		d := &fieldDiff{}
		d.add("name", s.Name, nil)
		return &Result{RecordID: s.ID, Changes: d.changes}, nil
	}
	return nil, fmt.Errorf("%w: unknown mutation type %q", ErrInvalidPayload, m.Type)
}
