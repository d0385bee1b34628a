package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/costaverde/voucher-service/internal/application/service"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

type stubVoucherService struct {
	createFunc   func(ctx context.Context, agentID string, input service.CreateVoucherInput) (*entity.Voucher, error)
	getFunc      func(ctx context.Context, agentID, id string) (*entity.Voucher, error)
	finalizeFunc func(ctx context.Context, agentID, id string) (*entity.Voucher, error)
	listFunc     func(ctx context.Context, agentID string, opts service.ListOptions) (*service.VoucherPage, error)
	resetFunc    func(ctx context.Context, agentID string, mode service.ResetMode) (int64, error)
}

func (s *stubVoucherService) Create(ctx context.Context, agentID string, input service.CreateVoucherInput) (*entity.Voucher, error) {
	return s.createFunc(ctx, agentID, input)
}

func (s *stubVoucherService) Get(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return s.getFunc(ctx, agentID, id)
}

func (s *stubVoucherService) Update(ctx context.Context, agentID, id string, input service.UpdateVoucherInput) (*entity.Voucher, error) {
	return nil, entity.ErrVoucherNotFound
}

func (s *stubVoucherService) Finalize(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return s.finalizeFunc(ctx, agentID, id)
}

func (s *stubVoucherService) Cancel(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return nil, workflow.ErrTerminalState
}

func (s *stubVoucherService) Exclude(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return nil, entity.ErrVoucherNotFound
}

func (s *stubVoucherService) List(ctx context.Context, agentID string, opts service.ListOptions) (*service.VoucherPage, error) {
	return s.listFunc(ctx, agentID, opts)
}

func (s *stubVoucherService) ListAll(ctx context.Context, opts service.ListOptions) (*service.VoucherPage, error) {
	return &service.VoucherPage{}, nil
}

func (s *stubVoucherService) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error) {
	return nil, nil
}

func (s *stubVoucherService) ResetStatuses(ctx context.Context, agentID string, mode service.ResetMode) (int64, error) {
	return s.resetFunc(ctx, agentID, mode)
}

type stubActivityService struct{}

func (stubActivityService) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Activity, error) {
	return []*entity.Activity{{ID: "a-1", Type: entity.ActivityVoucherCreated}}, nil
}

func (stubActivityService) ListByVoucher(ctx context.Context, agentID, voucherID string) ([]*entity.Activity, error) {
	return nil, entity.ErrVoucherNotFound
}

type stubDocumentService struct {
	renderFunc func(ctx context.Context, templateTag string, data map[string]any) ([]byte, error)
}

func (s *stubDocumentService) Render(ctx context.Context, templateTag string, data map[string]any) ([]byte, error) {
	return s.renderFunc(ctx, templateTag, data)
}

type stubReportService struct{}

func (stubReportService) ExportVouchers(ctx context.Context, agentID string) ([]byte, error) {
	return []byte("PK\x03\x04"), nil
}

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestServer(vouchers service.VoucherService, documents service.DocumentService) *Server {
	if documents == nil {
		documents = &stubDocumentService{
			renderFunc: func(ctx context.Context, templateTag string, data map[string]any) ([]byte, error) {
				return []byte("%PDF-1.4"), nil
			},
		}
	}
	return NewServer(DefaultServerConfig(), vouchers, stubActivityService{}, documents, stubReportService{}, testLogger{})
}

func doRequest(t *testing.T, server *Server, method, path, agent string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if agent != "" {
		req.Header.Set(agentHeader, agent)
	}

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func TestHandlers_MissingAgentHeader(t *testing.T) {
	server := newTestServer(&stubVoucherService{}, nil)

	w := doRequest(t, server, http.MethodGet, "/api/vouchers", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandlers_HealthNeedsNoAgent(t *testing.T) {
	server := newTestServer(&stubVoucherService{}, nil)

	w := doRequest(t, server, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandlers_CreateVoucher(t *testing.T) {
	vouchers := &stubVoucherService{
		createFunc: func(ctx context.Context, agentID string, input service.CreateVoucherInput) (*entity.Voucher, error) {
			if agentID != "agent-1" {
				t.Errorf("agent = %s, want agent-1", agentID)
			}
			return &entity.Voucher{ID: "v-1", Code: "VC-202506-007", ClientName: input.ClientName, Status: "active"}, nil
		},
	}
	server := newTestServer(vouchers, nil)

	w := doRequest(t, server, http.MethodPost, "/api/vouchers", "agent-1", map[string]any{
		"client_name":  "Ana Souza",
		"package_name": "Sunset cruise",
		"adults":       2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("success = false, error = %s", resp.Error)
	}
}

func TestHandlers_CreateVoucher_ValidationStatus(t *testing.T) {
	vouchers := &stubVoucherService{
		createFunc: func(ctx context.Context, agentID string, input service.CreateVoucherInput) (*entity.Voucher, error) {
			return nil, entity.NewValidationError("client_name", "must have at least 2 characters")
		},
	}
	server := newTestServer(vouchers, nil)

	w := doRequest(t, server, http.MethodPost, "/api/vouchers", "agent-1", map[string]any{"client_name": "A"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlers_CreateVoucher_NamesMalformedField(t *testing.T) {
	server := newTestServer(&stubVoucherService{}, nil)

	w := doRequest(t, server, http.MethodPost, "/api/vouchers", "agent-1", map[string]any{
		"client_name": "Ana Souza",
		"adults":      "two",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "adults") {
		t.Errorf("error = %q, want the malformed field named", resp.Error)
	}
}

func TestHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", entity.ErrVoucherNotFound, http.StatusNotFound},
		{"terminal state", workflow.ErrTerminalState, http.StatusConflict},
		{"precondition failed", workflow.ErrPreconditionFailed, http.StatusUnprocessableEntity},
		{"code exhausted", entity.ErrCodeExhausted, http.StatusConflict},
		{"unknown failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vouchers := &stubVoucherService{
				finalizeFunc: func(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
					return nil, tt.err
				},
			}
			server := newTestServer(vouchers, nil)

			w := doRequest(t, server, http.MethodPost, "/api/vouchers/v-1/finalize", "agent-1", nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlers_ListVouchers_ParsesQuery(t *testing.T) {
	var gotOpts service.ListOptions
	vouchers := &stubVoucherService{
		listFunc: func(ctx context.Context, agentID string, opts service.ListOptions) (*service.VoucherPage, error) {
			gotOpts = opts
			return &service.VoucherPage{Items: []*entity.Voucher{}, Total: 0}, nil
		},
	}
	server := newTestServer(vouchers, nil)

	w := doRequest(t, server, http.MethodGet,
		"/api/vouchers?page=2&page_size=10&status=active&embark_day=2025-06-20", "agent-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if gotOpts.Page != 2 || gotOpts.PageSize != 10 || gotOpts.Status != "active" {
		t.Errorf("opts = %+v", gotOpts)
	}
	if gotOpts.EmbarkDay == nil || !gotOpts.EmbarkDay.Equal(time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("embark day = %v", gotOpts.EmbarkDay)
	}
}

func TestHandlers_ListVouchers_BadEmbarkDay(t *testing.T) {
	server := newTestServer(&stubVoucherService{}, nil)

	w := doRequest(t, server, http.MethodGet, "/api/vouchers?embark_day=20-06-2025", "agent-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlers_ResetVoucherStatuses(t *testing.T) {
	vouchers := &stubVoucherService{
		resetFunc: func(ctx context.Context, agentID string, mode service.ResetMode) (int64, error) {
			if mode != service.ResetCancelled {
				t.Errorf("mode = %s, want cancelled", mode)
			}
			return 4, nil
		},
	}
	server := newTestServer(vouchers, nil)

	w := doRequest(t, server, http.MethodPost, "/api/vouchers/reset", "agent-1", map[string]any{"mode": "cancelled"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestHandlers_RenderDocument(t *testing.T) {
	documents := &stubDocumentService{
		renderFunc: func(ctx context.Context, templateTag string, data map[string]any) ([]byte, error) {
			if templateTag != "voucher" {
				t.Errorf("tag = %s, want voucher", templateTag)
			}
			return []byte("%PDF-1.4"), nil
		},
	}
	server := newTestServer(&stubVoucherService{}, documents)

	w := doRequest(t, server, http.MethodPost, "/api/documents/render", "agent-1", map[string]any{
		"template_tag": "voucher",
		"data":         map[string]any{"item": map[string]any{"client_name": "Ana"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %s, want application/pdf", ct)
	}
}

func TestHandlers_RenderDocument_Timeout(t *testing.T) {
	documents := &stubDocumentService{
		renderFunc: func(ctx context.Context, templateTag string, data map[string]any) ([]byte, error) {
			return nil, entity.ErrRenderTimeout
		},
	}
	server := newTestServer(&stubVoucherService{}, documents)

	w := doRequest(t, server, http.MethodPost, "/api/documents/render", "agent-1", map[string]any{
		"template_tag": "voucher",
	})
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestHandlers_ExportVouchers(t *testing.T) {
	server := newTestServer(&stubVoucherService{}, nil)

	w := doRequest(t, server, http.MethodGet, "/api/vouchers/export", "agent-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("missing Content-Disposition header")
	}
}
