package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

const registrationsTag = "Tenant registrations"

// --- Create ---

type CreateRegistrationInput struct {
	Body struct {
		TenantData             domain.Attributes `json:"tenantData,omitempty" doc:"Attributes of the tenant to create"`
		TenantRegistrationData domain.Attributes `json:"tenantRegistrationData,omitempty" doc:"Extra attributes stored on the registration"`
	}
}

type CreatedRegistration struct {
	TenantRegistrationID string `json:"tenantRegistrationId"`
	TenantID             string `json:"tenantId"`
	Message              string `json:"message"`
}

// --- Get ---

type RegistrationPathInput struct {
	ID string `path:"tenantRegistrationId" doc:"Registration ID"`
}

// --- Update ---

type UpdateRegistrationInput struct {
	ID   string `path:"tenantRegistrationId" doc:"Registration ID"`
	Body struct {
		TenantRegistrationData domain.Attributes `json:"tenantRegistrationData,omitempty" doc:"Patch for the registration record"`
		TenantData             domain.Attributes `json:"tenantData,omitempty" doc:"Patch forwarded to the tenant"`
		JobOutput              any               `json:"jobOutput,omitempty" doc:"Result of an application plane job"`
		Timestamp              string            `json:"timestamp,omitempty" doc:"When the job result was reported"`
	}
}

type UpdatedRegistration struct {
	TenantRegistration domain.Attributes `json:"tenantRegistration"`
	Tenant             domain.Attributes `json:"tenant,omitempty"`
	Message            string            `json:"message"`
}

func registerRegistrations(api huma.API, svc *app.RegistrationService, internal huma.Middlewares) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant-registration",
		Method:        http.MethodPost,
		Path:          "/tenant-registrations",
		Summary:       "Register and onboard a tenant",
		Tags:          []string{registrationsTag},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateRegistrationInput) (*DataOutput[CreatedRegistration], error) {
		created, err := svc.Create(ctx, input.Body.TenantRegistrationData, input.Body.TenantData)
		if err != nil {
			return nil, toHumaError(ctx, err, "Error creating tenant registration")
		}
		return dataOf(CreatedRegistration{
			TenantRegistrationID: created.RegistrationID,
			TenantID:             created.TenantID,
			Message:              "Tenant registration initiated",
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenant-registrations",
		Method:      http.MethodGet,
		Path:        "/tenant-registrations",
		Summary:     "List tenant registrations",
		Tags:        []string{registrationsTag},
	}, func(ctx context.Context, input *PageInput) (*PageOutput, error) {
		page, err := svc.List(ctx, input.request())
		if err != nil {
			return nil, toHumaError(ctx, err, "Error listing tenant registrations")
		}

		out := &PageOutput{}
		out.Body.Data = make([]domain.Attributes, len(page.Items))
		for i, reg := range page.Items {
			out.Body.Data[i] = reg.Item()
		}
		out.Body.NextToken = page.NextToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant-registration",
		Method:      http.MethodGet,
		Path:        "/tenant-registrations/{tenantRegistrationId}",
		Summary:     "Get a tenant registration",
		Tags:        []string{registrationsTag},
	}, func(ctx context.Context, input *RegistrationPathInput) (*DataOutput[domain.Attributes], error) {
		reg, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, registrationError(ctx, err, input.ID, "Error retrieving tenant registration")
		}
		return dataOf(reg.Item()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant-registration",
		Method:      http.MethodPatch,
		Path:        "/tenant-registrations/{tenantRegistrationId}",
		Summary:     "Update a tenant registration and its tenant",
		Tags:        []string{registrationsTag},
		Middlewares: internal,
	}, func(ctx context.Context, input *UpdateRegistrationInput) (*DataOutput[UpdatedRegistration], error) {
		updated, err := svc.Update(ctx, input.ID, registrationPatch(input))
		if err != nil {
			return nil, registrationError(ctx, err, input.ID, "Error updating tenant registration")
		}
		return dataOf(UpdatedRegistration{
			TenantRegistration: updated.Registration.Item(),
			Tenant:             updated.Tenant,
			Message:            "Tenant registration updated successfully",
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant-registration",
		Method:      http.MethodDelete,
		Path:        "/tenant-registrations/{tenantRegistrationId}",
		Summary:     "Offboard a tenant",
		Description: "Deletes the tenant and marks the registration inactive. The registration record is kept.",
		Tags:        []string{registrationsTag},
	}, func(ctx context.Context, input *RegistrationPathInput) (*DataOutput[MessageBody], error) {
		if err := svc.Delete(ctx, input.ID); err != nil {
			return nil, registrationError(ctx, err, input.ID, "Error deleting tenant registration")
		}
		return dataOf(MessageBody{Message: "Tenant registration deletion initiated"}), nil
	})
}

// registrationPatch folds a job result reported at the top level of the
// body into the registration patch.
func registrationPatch(input *UpdateRegistrationInput) app.Patch {
	reg := input.Body.TenantRegistrationData.Clone()
	if input.Body.JobOutput != nil {
		reg[domain.FieldJobOutput] = input.Body.JobOutput
	}
	if input.Body.Timestamp != "" {
		reg[domain.FieldTimestamp] = input.Body.Timestamp
	}
	if len(reg) == 0 {
		reg = nil
	}
	return app.Patch{Registration: reg, Tenant: input.Body.TenantData}
}

func registrationError(ctx context.Context, err error, id, fallback string) error {
	if errors.Is(err, domain.ErrRegistrationNotFound) {
		return huma.Error404NotFound("Tenant registration not found for id " + id)
	}
	return toHumaError(ctx, err, fallback)
}
