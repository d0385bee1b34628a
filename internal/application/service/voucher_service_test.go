package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

type mockVoucherRepo struct {
	createFunc        func(ctx context.Context, v *entity.Voucher) error
	getByIDFunc       func(ctx context.Context, id string) (*entity.Voucher, error)
	getByCodeFunc     func(ctx context.Context, code string) (*entity.Voucher, error)
	updateFunc        func(ctx context.Context, v *entity.Voucher) error
	listFunc          func(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, int, error)
	listRecentFunc    func(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error)
	resetStatusesFunc func(ctx context.Context, agentID string, from []string, now time.Time) (int64, error)

	updates int
}

func (m *mockVoucherRepo) Create(ctx context.Context, v *entity.Voucher) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, v)
	}
	return nil
}

func (m *mockVoucherRepo) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, entity.ErrVoucherNotFound
}

func (m *mockVoucherRepo) GetByCode(ctx context.Context, code string) (*entity.Voucher, error) {
	if m.getByCodeFunc != nil {
		return m.getByCodeFunc(ctx, code)
	}
	return nil, entity.ErrVoucherNotFound
}

func (m *mockVoucherRepo) Update(ctx context.Context, v *entity.Voucher) error {
	m.updates++
	if m.updateFunc != nil {
		return m.updateFunc(ctx, v)
	}
	return nil
}

func (m *mockVoucherRepo) List(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockVoucherRepo) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, agentID, limit)
	}
	return nil, nil
}

func (m *mockVoucherRepo) ResetStatuses(ctx context.Context, agentID string, from []string, now time.Time) (int64, error) {
	if m.resetStatusesFunc != nil {
		return m.resetStatusesFunc(ctx, agentID, from, now)
	}
	return 0, nil
}

type mockActivityRepo struct {
	createFunc func(ctx context.Context, a *entity.Activity) error
	created    []*entity.Activity
}

func (m *mockActivityRepo) Create(ctx context.Context, a *entity.Activity) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, a); err != nil {
			return err
		}
	}
	m.created = append(m.created, a)
	return nil
}

func (m *mockActivityRepo) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Activity, error) {
	return m.created, nil
}

func (m *mockActivityRepo) ListByVoucher(ctx context.Context, voucherID string) ([]*entity.Activity, error) {
	return m.created, nil
}

type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedCodeGenerator struct {
	codes []string
	calls int
}

func (g *fixedCodeGenerator) Generate(time.Time) string {
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code
}

type noopSweeper struct{ swept int }

func (s *noopSweeper) Sweep(ctx context.Context, vouchers []*entity.Voucher) { s.swept++ }

type mockLogger struct{}

func (mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func validCreateInput() CreateVoucherInput {
	embark := time.Now().Add(72 * time.Hour)
	return CreateVoucherInput{
		ClientName:     "Ana Souza",
		ClientPhone:    "(24) 99999-0000",
		PackageName:    "Ilha Grande day trip",
		Adults:         2,
		Children:       1,
		EmbarkLocation: "Cais de Angra",
		EmbarkTime:     "08:30",
		EmbarkDate:     &embark,
		PartialAmount:  100,
		EmbarkAmount:   0,
	}
}

func newTestService(vRepo *mockVoucherRepo, aRepo *mockActivityRepo, gen CodeGenerator) VoucherService {
	if gen == nil {
		gen = NewCodeGenerator()
	}
	return NewVoucherService(
		vRepo, aRepo, mockTxManager{}, gen,
		workflow.NewVoucherMachine(), &noopSweeper{}, mockLogger{},
	)
}

func TestVoucherService_Create(t *testing.T) {
	vRepo := &mockVoucherRepo{}
	aRepo := &mockActivityRepo{}
	svc := newTestService(vRepo, aRepo, nil)

	v, err := svc.Create(context.Background(), "agent-1", validCreateInput())
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	if v.ID == "" || v.Code == "" {
		t.Errorf("Create() left identifier or code empty: %+v", v)
	}
	if v.Status != workflow.StatusActive.String() {
		t.Errorf("Create() status = %s, want active", v.Status)
	}
	if v.AgentID != "agent-1" {
		t.Errorf("Create() agent = %s, want agent-1", v.AgentID)
	}

	if len(aRepo.created) != 1 {
		t.Fatalf("Create() recorded %d activities, want 1", len(aRepo.created))
	}
	a := aRepo.created[0]
	if a.Type != entity.ActivityVoucherCreated {
		t.Errorf("creation activity type = %s, want voucher_created", a.Type)
	}
	if a.Subtitle != "Ilha Grande day trip" {
		t.Errorf("creation activity subtitle = %q", a.Subtitle)
	}
	if a.Amount != nil {
		t.Errorf("creation activity amount = %v, want nil", a.Amount)
	}
}

func TestVoucherService_Create_NotAuthenticated(t *testing.T) {
	svc := newTestService(&mockVoucherRepo{}, &mockActivityRepo{}, nil)

	_, err := svc.Create(context.Background(), "", validCreateInput())
	if !errors.Is(err, entity.ErrNotAuthenticated) {
		t.Errorf("Create() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestVoucherService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateVoucherInput)
	}{
		{"short client name", func(in *CreateVoucherInput) { in.ClientName = "A" }},
		{"short package name", func(in *CreateVoucherInput) { in.PackageName = " " }},
		{"no adults", func(in *CreateVoucherInput) { in.Adults = 0 }},
		{"negative children", func(in *CreateVoucherInput) { in.Children = -1 }},
		{"bad embark time", func(in *CreateVoucherInput) { in.EmbarkTime = "25:99" }},
		{"negative partial amount", func(in *CreateVoucherInput) { in.PartialAmount = -10 }},
		{"negative embark amount", func(in *CreateVoucherInput) { in.EmbarkAmount = -1 }},
	}

	svc := newTestService(&mockVoucherRepo{}, &mockActivityRepo{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validCreateInput()
			tt.mutate(&input)
			_, err := svc.Create(context.Background(), "agent-1", input)
			if !entity.IsValidation(err) {
				t.Errorf("Create() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestVoucherService_Create_CodeCollisionRetries(t *testing.T) {
	taken := map[string]bool{"VC-202506-001": true, "VC-202506-002": true}
	vRepo := &mockVoucherRepo{
		getByCodeFunc: func(ctx context.Context, code string) (*entity.Voucher, error) {
			if taken[code] {
				return &entity.Voucher{ID: "other", Code: code}, nil
			}
			return nil, entity.ErrVoucherNotFound
		},
	}
	gen := &fixedCodeGenerator{codes: []string{"VC-202506-001", "VC-202506-002", "VC-202506-003"}}
	svc := newTestService(vRepo, &mockActivityRepo{}, gen)

	v, err := svc.Create(context.Background(), "agent-1", validCreateInput())
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if v.Code != "VC-202506-003" {
		t.Errorf("Create() code = %s, want the third draw", v.Code)
	}
	if gen.calls != 3 {
		t.Errorf("generator called %d times, want 3", gen.calls)
	}
}

func TestVoucherService_Create_CodeExhausted(t *testing.T) {
	vRepo := &mockVoucherRepo{
		getByCodeFunc: func(ctx context.Context, code string) (*entity.Voucher, error) {
			return &entity.Voucher{ID: "other", Code: code}, nil
		},
	}
	gen := &fixedCodeGenerator{codes: []string{"VC-202506-001"}}
	svc := newTestService(vRepo, &mockActivityRepo{}, gen)

	_, err := svc.Create(context.Background(), "agent-1", validCreateInput())
	if !errors.Is(err, entity.ErrCodeExhausted) {
		t.Fatalf("Create() error = %v, want ErrCodeExhausted", err)
	}
	if gen.calls != maxCodeAttempts {
		t.Errorf("generator called %d times, want %d", gen.calls, maxCodeAttempts)
	}
}

func TestVoucherService_Create_RedrawsWhenInsertLosesCodeRace(t *testing.T) {
	// The availability check sees every code as free, but a concurrent
	// create grabs the first two draws before our inserts land.
	inserts := 0
	vRepo := &mockVoucherRepo{
		createFunc: func(ctx context.Context, v *entity.Voucher) error {
			inserts++
			if inserts <= 2 {
				return fmt.Errorf("insert voucher %s: %w", v.Code, entity.ErrDuplicateCode)
			}
			return nil
		},
	}
	gen := &fixedCodeGenerator{codes: []string{"VC-202506-001", "VC-202506-002", "VC-202506-003"}}
	aRepo := &mockActivityRepo{}
	svc := newTestService(vRepo, aRepo, gen)

	v, err := svc.Create(context.Background(), "agent-1", validCreateInput())
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if v.Code != "VC-202506-003" {
		t.Errorf("Create() code = %s, want the third draw", v.Code)
	}
	if inserts != 3 {
		t.Errorf("insert attempted %d times, want 3", inserts)
	}
	if len(aRepo.created) != 1 {
		t.Errorf("recorded %d activities, want 1 for the surviving insert", len(aRepo.created))
	}
}

func TestVoucherService_Create_InsertRaceExhaustsCodes(t *testing.T) {
	vRepo := &mockVoucherRepo{
		createFunc: func(ctx context.Context, v *entity.Voucher) error {
			return fmt.Errorf("insert voucher %s: %w", v.Code, entity.ErrDuplicateCode)
		},
	}
	gen := &fixedCodeGenerator{codes: []string{"VC-202506-001"}}
	svc := newTestService(vRepo, &mockActivityRepo{}, gen)

	_, err := svc.Create(context.Background(), "agent-1", validCreateInput())
	if !errors.Is(err, entity.ErrCodeExhausted) {
		t.Fatalf("Create() error = %v, want ErrCodeExhausted", err)
	}
	if gen.calls != maxCodeAttempts {
		t.Errorf("generator called %d times, want %d", gen.calls, maxCodeAttempts)
	}
}

func storedVoucher(status workflow.Status, embarkAmount float64) *entity.Voucher {
	return &entity.Voucher{
		ID:            "v-1",
		Code:          "VC-202506-123",
		AgentID:       "agent-1",
		PackageName:   "Ilha Grande day trip",
		Status:        status.String(),
		EmbarkAmount:  embarkAmount,
		PartialAmount: 100,
	}
}

func repoHolding(v *entity.Voucher) *mockVoucherRepo {
	return &mockVoucherRepo{
		getByIDFunc: func(ctx context.Context, id string) (*entity.Voucher, error) {
			if id == v.ID {
				return v.Clone(), nil
			}
			return nil, entity.ErrVoucherNotFound
		},
	}
}

func TestVoucherService_Finalize(t *testing.T) {
	vRepo := repoHolding(storedVoucher(workflow.StatusActive, 250))
	aRepo := &mockActivityRepo{}
	svc := newTestService(vRepo, aRepo, nil)

	v, err := svc.Finalize(context.Background(), "agent-1", "v-1")
	if err != nil {
		t.Fatalf("Finalize() unexpected error: %v", err)
	}
	if v.Status != workflow.StatusCompleted.String() {
		t.Errorf("Finalize() status = %s, want completed", v.Status)
	}

	if len(aRepo.created) != 1 {
		t.Fatalf("Finalize() recorded %d activities, want 1", len(aRepo.created))
	}
	a := aRepo.created[0]
	if a.Type != entity.ActivityVoucherFinalized {
		t.Errorf("activity type = %s, want voucher_finalized", a.Type)
	}
	if a.Amount == nil || *a.Amount != 250 {
		t.Errorf("activity amount = %v, want 250", a.Amount)
	}
}

func TestVoucherService_Finalize_RequiresEmbarkPayment(t *testing.T) {
	vRepo := repoHolding(storedVoucher(workflow.StatusActive, 0))
	svc := newTestService(vRepo, &mockActivityRepo{}, nil)

	_, err := svc.Finalize(context.Background(), "agent-1", "v-1")
	if !errors.Is(err, workflow.ErrPreconditionFailed) {
		t.Errorf("Finalize() error = %v, want ErrPreconditionFailed", err)
	}
	if vRepo.updates != 0 {
		t.Errorf("Finalize() wrote %d updates on refusal, want 0", vRepo.updates)
	}
}

func TestVoucherService_TransitionOnTerminalVoucher(t *testing.T) {
	for _, status := range []workflow.Status{workflow.StatusCompleted, workflow.StatusExcluded} {
		t.Run(status.String(), func(t *testing.T) {
			vRepo := repoHolding(storedVoucher(status, 100))
			svc := newTestService(vRepo, &mockActivityRepo{}, nil)

			_, err := svc.Cancel(context.Background(), "agent-1", "v-1")
			if !errors.Is(err, workflow.ErrTerminalState) {
				t.Errorf("Cancel() error = %v, want ErrTerminalState", err)
			}
			if vRepo.updates != 0 {
				t.Errorf("Cancel() wrote %d updates on refusal, want 0", vRepo.updates)
			}
		})
	}
}

func TestVoucherService_Exclude(t *testing.T) {
	vRepo := repoHolding(storedVoucher(workflow.StatusCancelled, 0))
	svc := newTestService(vRepo, &mockActivityRepo{}, nil)

	v, err := svc.Exclude(context.Background(), "agent-1", "v-1")
	if err != nil {
		t.Fatalf("Exclude() unexpected error: %v", err)
	}
	if v.Status != workflow.StatusExcluded.String() || !v.Deleted || v.DeletedAt == nil {
		t.Errorf("Exclude() left inconsistent state: status=%s deleted=%v deletedAt=%v",
			v.Status, v.Deleted, v.DeletedAt)
	}
}

func TestVoucherService_Update_PartialPaymentActivity(t *testing.T) {
	vRepo := repoHolding(storedVoucher(workflow.StatusActive, 0))
	aRepo := &mockActivityRepo{}
	svc := newTestService(vRepo, aRepo, nil)

	newPartial := 150.0
	v, err := svc.Update(context.Background(), "agent-1", "v-1", UpdateVoucherInput{PartialAmount: &newPartial})
	if err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	if v.PartialAmount != 150 {
		t.Errorf("Update() partial amount = %v, want 150", v.PartialAmount)
	}

	if len(aRepo.created) != 1 {
		t.Fatalf("Update() recorded %d activities, want 1", len(aRepo.created))
	}
	a := aRepo.created[0]
	if a.Type != entity.ActivityVoucherFinalized {
		t.Errorf("activity type = %s, want voucher_finalized (inherited reuse)", a.Type)
	}
	if a.Amount == nil || *a.Amount != 50 {
		t.Errorf("activity amount = %v, want the 50 delta", a.Amount)
	}
}

func TestVoucherService_Update_OtherAgentLooksMissing(t *testing.T) {
	vRepo := repoHolding(storedVoucher(workflow.StatusActive, 0))
	svc := newTestService(vRepo, &mockActivityRepo{}, nil)

	notes := "changed"
	_, err := svc.Update(context.Background(), "agent-2", "v-1", UpdateVoucherInput{Notes: &notes})
	if !errors.Is(err, entity.ErrVoucherNotFound) {
		t.Errorf("Update() error = %v, want ErrVoucherNotFound", err)
	}
}

func TestVoucherService_Update_ExcludedIsFrozen(t *testing.T) {
	v := storedVoucher(workflow.StatusExcluded, 0)
	v.Deleted = true
	vRepo := repoHolding(v)
	svc := newTestService(vRepo, &mockActivityRepo{}, nil)

	notes := "changed"
	_, err := svc.Update(context.Background(), "agent-1", "v-1", UpdateVoucherInput{Notes: &notes})
	if !errors.Is(err, workflow.ErrTerminalState) {
		t.Errorf("Update() error = %v, want ErrTerminalState", err)
	}
}

func TestVoucherService_AuditFailureDoesNotFailMutation(t *testing.T) {
	vRepo := repoHolding(storedVoucher(workflow.StatusActive, 300))
	aRepo := &mockActivityRepo{
		createFunc: func(ctx context.Context, a *entity.Activity) error {
			return fmt.Errorf("activity store down")
		},
	}
	svc := newTestService(vRepo, aRepo, nil)

	v, err := svc.Finalize(context.Background(), "agent-1", "v-1")
	if err != nil {
		t.Fatalf("Finalize() must not surface audit failures, got: %v", err)
	}
	if v.Status != workflow.StatusCompleted.String() {
		t.Errorf("Finalize() status = %s, want completed", v.Status)
	}
}

func TestVoucherService_List_SweepsResults(t *testing.T) {
	vRepo := &mockVoucherRepo{
		listFunc: func(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, int, error) {
			return []*entity.Voucher{storedVoucher(workflow.StatusActive, 0)}, 1, nil
		},
	}
	sweeper := &noopSweeper{}
	svc := NewVoucherService(vRepo, &mockActivityRepo{}, mockTxManager{}, NewCodeGenerator(),
		workflow.NewVoucherMachine(), sweeper, mockLogger{})

	page, err := svc.List(context.Background(), "agent-1", ListOptions{})
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("List() = %d items, total %d", len(page.Items), page.Total)
	}
	if sweeper.swept != 1 {
		t.Errorf("List() ran the sweep %d times, want 1", sweeper.swept)
	}
}

func TestVoucherService_List_RejectsUnknownStatusFilter(t *testing.T) {
	svc := newTestService(&mockVoucherRepo{}, &mockActivityRepo{}, nil)

	_, err := svc.List(context.Background(), "agent-1", ListOptions{Status: "archived"})
	if !entity.IsValidation(err) {
		t.Errorf("List() error = %v, want ValidationError", err)
	}
}

func TestVoucherService_ResetStatuses(t *testing.T) {
	var gotFrom []string
	vRepo := &mockVoucherRepo{
		resetStatusesFunc: func(ctx context.Context, agentID string, from []string, now time.Time) (int64, error) {
			gotFrom = from
			return 3, nil
		},
	}
	svc := newTestService(vRepo, &mockActivityRepo{}, nil)

	count, err := svc.ResetStatuses(context.Background(), "agent-1", ResetAll)
	if err != nil {
		t.Fatalf("ResetStatuses() unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("ResetStatuses() count = %d, want 3", count)
	}
	if len(gotFrom) != 3 {
		t.Errorf("ResetStatuses(all) reset from %v, want three statuses", gotFrom)
	}

	_, err = svc.ResetStatuses(context.Background(), "agent-1", ResetMode("everything"))
	if !entity.IsValidation(err) {
		t.Errorf("ResetStatuses() error = %v, want ValidationError", err)
	}
}
