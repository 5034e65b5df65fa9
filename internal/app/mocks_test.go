package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// --- Registration store ---

type mockRegistrations struct {
	mu   sync.Mutex
	regs map[string]domain.Registration
}

func newMockRegistrations() *mockRegistrations {
	return &mockRegistrations{regs: make(map[string]domain.Registration)}
}

func (m *mockRegistrations) Create(_ context.Context, reg domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[reg.ID]; ok {
		return domain.ErrRegistrationExists
	}
	m.regs[reg.ID] = reg
	return nil
}

func (m *mockRegistrations) Get(_ context.Context, id string) (domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return reg, nil
}

func (m *mockRegistrations) List(_ context.Context, page domain.PageRequest) (domain.Page[domain.Registration], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.regs))
	for id := range m.regs {
		if id > page.Token {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var out domain.Page[domain.Registration]
	for i, id := range ids {
		if i == page.Limit {
			out.NextToken = ids[i-1]
			break
		}
		out.Items = append(out.Items, m.regs[id])
	}
	return out, nil
}

func (m *mockRegistrations) Update(_ context.Context, id string, patch domain.Attributes) (domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	next, err := reg.Patched(patch)
	if err != nil {
		return domain.Registration{}, err
	}
	m.regs[id] = next
	return next, nil
}

// --- Tenant store ---

type mockTenants struct {
	tenants map[string]domain.Tenant
}

func newMockTenants() *mockTenants {
	return &mockTenants{tenants: make(map[string]domain.Tenant)}
}

func (m *mockTenants) Create(_ context.Context, t domain.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenants) Get(_ context.Context, id string) (domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockTenants) FindByName(_ context.Context, name string) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.Attributes.String("tenantName") == name {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockTenants) List(_ context.Context, _ domain.PageRequest) (domain.Page[domain.Tenant], error) {
	var out domain.Page[domain.Tenant]
	for _, t := range m.tenants {
		out.Items = append(out.Items, t)
	}
	return out, nil
}

func (m *mockTenants) Update(_ context.Context, id string, patch domain.Attributes) (domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	next, err := t.Patched(patch)
	if err != nil {
		return domain.Tenant{}, err
	}
	m.tenants[id] = next
	return next, nil
}

// --- Tenant gateway ---

type mockGateway struct {
	createID  string
	createErr error
	updateErr error
	deleteErr error

	created []domain.Attributes
	updated []string
	deleted []string
}

func (m *mockGateway) Create(_ context.Context, data domain.Attributes) (string, error) {
	m.created = append(m.created, data)
	if m.createErr != nil {
		return "", m.createErr
	}
	return m.createID, nil
}

func (m *mockGateway) Update(_ context.Context, tenantID string, patch domain.Attributes) (domain.Attributes, error) {
	m.updated = append(m.updated, tenantID)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return domain.Merge(patch, domain.Attributes{"tenantId": tenantID}), nil
}

func (m *mockGateway) Delete(_ context.Context, tenantID string) (domain.Attributes, error) {
	m.deleted = append(m.deleted, tenantID)
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	return domain.Attributes{"tenantId": tenantID, "active": false, "tenantName": "acme"}, nil
}

// --- Publisher ---

type mockPublisher struct {
	mu     sync.Mutex
	err    error
	events []domain.Event
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

// --- Service caller ---

type call struct {
	method string
	url    string
	body   map[string]any
}

type mockCaller struct {
	status int
	body   any
	err    error
	calls  []call
}

func (m *mockCaller) Call(_ context.Context, method, url string, body any) (domain.Response, error) {
	c := call{method: method, url: url}
	if body != nil {
		// Round-trip through JSON so assertions see what goes on the wire.
		raw, err := json.Marshal(body)
		if err != nil {
			return domain.Response{}, fmt.Errorf("mock caller: %w", err)
		}
		if err := json.Unmarshal(raw, &c.body); err != nil {
			return domain.Response{}, fmt.Errorf("mock caller: %w", err)
		}
	}
	m.calls = append(m.calls, c)
	if m.err != nil {
		return domain.Response{}, m.err
	}
	raw, _ := json.Marshal(m.body)
	return domain.Response{Status: m.status, Body: raw}, nil
}

// --- Event handler ---

type recordingHandler struct {
	err    error
	events []domain.Event
}

func (h *recordingHandler) Handle(_ context.Context, e domain.Event) error {
	h.events = append(h.events, e)
	return h.err
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
