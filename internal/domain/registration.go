package domain

// Registration field names as they appear in stored items, HTTP bodies and
// event details.
const (
	FieldRegistrationID = "tenantRegistrationId"
	FieldTenantID       = "tenantId"
	FieldActive         = "active"
	FieldStatus         = "status"
	FieldJobOutput      = "jobOutput"
	FieldTimestamp      = "timestamp"
)

// Status represents the lifecycle state of a tenant registration.
type Status string

const (
	StatusRegistering Status = "registering"
	StatusOnboarding  Status = "onboarding"
	StatusOffboarded  Status = "offboarded"
)

// LifecycleEvent represents an orchestrator step that moves a registration
// between states.
type LifecycleEvent string

const (
	EventTenantLinked LifecycleEvent = "tenant_linked"
	EventOffboard     LifecycleEvent = "offboard"
)

// Transition defines a valid state change: an event moves a registration from Src to Dst.
type Transition struct {
	Event LifecycleEvent
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the registration lifecycle.
// Offboarding an already offboarded registration is a self-transition: the
// orchestrator does not detect repeated deletes.
var Transitions = []Transition{
	{Event: EventTenantLinked, Src: StatusRegistering, Dst: StatusOnboarding},
	{Event: EventOffboard, Src: StatusRegistering, Dst: StatusOffboarded},
	{Event: EventOffboard, Src: StatusOnboarding, Dst: StatusOffboarded},
	{Event: EventOffboard, Src: StatusOffboarded, Dst: StatusOffboarded},
}

// Registration is the control-plane record tracking a tenant's onboarding
// and offboarding, distinct from the tenant record itself.
type Registration struct {
	ID         string
	Active     bool
	TenantID   string
	Status     Status
	Attributes Attributes
}

// NewRegistration creates an active registration in the "registering" state.
func NewRegistration(id string, attrs Attributes) Registration {
	return Registration{
		ID:         id,
		Active:     true,
		Status:     StatusRegistering,
		Attributes: attrs.Clone(),
	}
}

// LifecycleStatus returns the stored status, inferring one for records
// written without it.
func (r Registration) LifecycleStatus() Status {
	if r.Status != "" {
		return r.Status
	}
	switch {
	case !r.Active:
		return StatusOffboarded
	case r.TenantID != "":
		return StatusOnboarding
	default:
		return StatusRegistering
	}
}

// Item flattens the registration into a single attribute map. Known fields
// take precedence over open attributes with the same name.
func (r Registration) Item() Attributes {
	item := r.Attributes.Clone()
	item[FieldRegistrationID] = r.ID
	item[FieldActive] = r.Active
	if r.TenantID != "" {
		item[FieldTenantID] = r.TenantID
	} else {
		delete(item, FieldTenantID)
	}
	if r.Status != "" {
		item[FieldStatus] = string(r.Status)
	}
	return item
}

// RegistrationFromItem is the inverse of Item.
func RegistrationFromItem(item Attributes) Registration {
	r := Registration{
		ID:         item.String(FieldRegistrationID),
		TenantID:   item.String(FieldTenantID),
		Status:     Status(item.String(FieldStatus)),
		Attributes: item.Without(FieldRegistrationID, FieldActive, FieldTenantID, FieldStatus),
	}
	r.Active, _ = item[FieldActive].(bool)
	return r
}

// Patched returns a copy of r with patch applied. Known field names update
// the typed fields; everything else lands in Attributes.
func (r Registration) Patched(patch Attributes) (Registration, error) {
	if err := validateFieldTypes(patch); err != nil {
		return Registration{}, err
	}
	if _, ok := patch[FieldRegistrationID]; ok {
		return Registration{}, &ValidationError{Field: FieldRegistrationID, Reason: "cannot be changed"}
	}

	out := r
	out.Attributes = r.Attributes.Clone()
	for k, v := range patch {
		switch k {
		case FieldActive:
			out.Active = v.(bool)
		case FieldTenantID:
			out.TenantID = v.(string)
		case FieldStatus:
			out.Status = Status(v.(string))
		default:
			out.Attributes[k] = v
		}
	}
	return out, nil
}

// ValidateRegistrationData checks caller-supplied metadata for a new
// registration. System-managed fields may not be set by callers.
func ValidateRegistrationData(data Attributes) error {
	for _, k := range []string{FieldRegistrationID, FieldActive, FieldTenantID, FieldStatus} {
		if _, ok := data[k]; ok {
			return &ValidationError{Field: k, Reason: "is managed by the control plane"}
		}
	}
	return nil
}

// ValidateRegistrationPatch checks a caller-supplied registration patch.
func ValidateRegistrationPatch(patch Attributes) error {
	for _, k := range []string{FieldRegistrationID, FieldStatus} {
		if _, ok := patch[k]; ok {
			return &ValidationError{Field: k, Reason: "is managed by the control plane"}
		}
	}
	return validateFieldTypes(patch)
}

func validateFieldTypes(patch Attributes) error {
	if v, ok := patch[FieldActive]; ok {
		if _, isBool := v.(bool); !isBool {
			return &ValidationError{Field: FieldActive, Reason: "must be a boolean"}
		}
	}
	for _, k := range []string{FieldTenantID, FieldStatus} {
		if v, ok := patch[k]; ok {
			if _, isString := v.(string); !isString {
				return &ValidationError{Field: k, Reason: "must be a string"}
			}
		}
	}
	return nil
}
