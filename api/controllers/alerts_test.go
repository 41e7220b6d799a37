package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableorders-backend/internal/alerts"
	pkgerrors "github.com/angelmondragon/tableorders-backend/pkg/errors"
)

type testAlertsService struct {
	listFn        func(ctx context.Context, params alerts.ListParams) (*alerts.ListResult, error)
	markReadFn    func(ctx context.Context, id uuid.UUID) error
	markAllReadFn func(ctx context.Context) (int64, error)
}

func (s *testAlertsService) List(ctx context.Context, params alerts.ListParams) (*alerts.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &alerts.ListResult{}, nil
}

func (s *testAlertsService) MarkRead(ctx context.Context, id uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, id)
	}
	return nil
}

func (s *testAlertsService) MarkAllRead(ctx context.Context) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx)
	}
	return 0, nil
}

func TestListAlertsParsesQuery(t *testing.T) {
	var got alerts.ListParams
	svc := &testAlertsService{
		listFn: func(ctx context.Context, params alerts.ListParams) (*alerts.ListResult, error) {
			got = params
			return &alerts.ListResult{Items: []alerts.AlertDTO{{TableNumber: 2}}}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=5&unreadOnly=true&table=2&cursor=xyz", nil)
	resp := httptest.NewRecorder()
	ListAlerts(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got.Limit != 5 || !got.UnreadOnly || got.TableNumber == nil || *got.TableNumber != 2 || got.Cursor != "xyz" {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestListAlertsRejectsBadBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?unreadOnly=maybe", nil)
	resp := httptest.NewRecorder()
	ListAlerts(&testAlertsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestMarkAlertRead(t *testing.T) {
	alertID := uuid.New()
	called := false
	svc := &testAlertsService{
		markReadFn: func(ctx context.Context, id uuid.UUID) error {
			called = id == alertID
			return nil
		},
	}
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"alertId": alertID.String()})
	resp := httptest.NewRecorder()
	MarkAlertRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK || !called {
		t.Fatalf("expected 200 and service call, got %d called=%v", resp.Code, called)
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data["read"] {
		t.Fatalf("unexpected payload %v", envelope.Data)
	}
}

func TestMarkAlertReadUnknown(t *testing.T) {
	svc := &testAlertsService{
		markReadFn: func(ctx context.Context, id uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
		},
	}
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"alertId": uuid.NewString()})
	resp := httptest.NewRecorder()
	MarkAlertRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestMarkAllAlertsRead(t *testing.T) {
	svc := &testAlertsService{
		markAllReadFn: func(ctx context.Context) (int64, error) { return 3, nil },
	}
	resp := httptest.NewRecorder()
	MarkAllAlertsRead(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["updated"] != 3 {
		t.Fatalf("unexpected payload %v", envelope.Data)
	}
}
