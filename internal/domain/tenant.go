package domain

// Tenant is the business entity being onboarded. It owns its attributes
// (name, plan, config blob) independent of registration bookkeeping.
type Tenant struct {
	ID         string
	Active     bool
	Attributes Attributes
}

// NewTenant creates an active tenant. Caller-supplied id and active flags
// are discarded.
func NewTenant(id string, attrs Attributes) Tenant {
	return Tenant{
		ID:         id,
		Active:     true,
		Attributes: attrs.Without(FieldTenantID, FieldActive),
	}
}

// Item flattens the tenant into a single attribute map.
func (t Tenant) Item() Attributes {
	item := t.Attributes.Clone()
	item[FieldTenantID] = t.ID
	item[FieldActive] = t.Active
	return item
}

// TenantFromItem is the inverse of Item.
func TenantFromItem(item Attributes) Tenant {
	t := Tenant{
		ID:         item.String(FieldTenantID),
		Attributes: item.Without(FieldTenantID, FieldActive),
	}
	t.Active, _ = item[FieldActive].(bool)
	return t
}

// Patched returns a copy of t with patch merged in. A tenantId in the patch
// is ignored.
func (t Tenant) Patched(patch Attributes) (Tenant, error) {
	out := t
	out.Attributes = t.Attributes.Clone()
	for k, v := range patch {
		switch k {
		case FieldTenantID:
		case FieldActive:
			b, ok := v.(bool)
			if !ok {
				return Tenant{}, &ValidationError{Field: FieldActive, Reason: "must be a boolean"}
			}
			out.Active = b
		default:
			out.Attributes[k] = v
		}
	}
	return out, nil
}
