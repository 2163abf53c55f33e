package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"lightbox/api/internal/store"
)

func peerReviewTransitions() []store.WorkflowTransition {
	return []store.WorkflowTransition{
		{ID: "wt-1", FromState: "Peer Review", Action: "Approve", NextState: "HOD Approval", AllowedRole: "reviewer", SortOrder: 1},
		{ID: "wt-2", FromState: "Peer Review", Action: "Reject", NextState: "Rejected", AllowedRole: "reviewer", SortOrder: 2},
	}
}

func workflowTestServer(t *testing.T, role string) (func(method, path, body string) *httptest.ResponseRecorder, *fakeAudit, *[]store.Notification) {
	t.Helper()
	var mu sync.Mutex
	notifications := &[]store.Notification{}
	status := "Peer Review"
	fs := &fakeStore{
		getAssetFn: func(_ context.Context, id string) (store.Asset, error) {
			mu.Lock()
			defer mu.Unlock()
			return store.Asset{ID: id, Title: "Spring Banner", Status: status, Owner: "usr-owner"}, nil
		},
		listTransitionsFromFn: func(_ context.Context, fromState string) ([]store.WorkflowTransition, error) {
			var defs []store.WorkflowTransition
			for _, def := range peerReviewTransitions() {
				if def.FromState == fromState {
					defs = append(defs, def)
				}
			}
			return defs, nil
		},
		updateAssetStatusFn: func(_ context.Context, _, next string) error {
			mu.Lock()
			defer mu.Unlock()
			status = next
			return nil
		},
		insertNotificationFn: func(_ context.Context, n store.Notification) error {
			mu.Lock()
			defer mu.Unlock()
			*notifications = append(*notifications, n)
			return nil
		},
	}
	user := store.User{ID: "usr-1", DisplayName: "Priya", Role: role}
	fs.getUserByIDFn = userLookup(map[string]store.User{user.ID: user})
	svc, audit, _ := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, user)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)
		return rr
	}
	return do, audit, notifications
}

func TestWorkflowOptionsFilteredByRole(t *testing.T) {
	do, _, _ := workflowTestServer(t, "reviewer")

	rr := do(http.MethodGet, "/api/assets/ast-1/workflow", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		CurrentState string `json:"currentState"`
		Transitions  []struct {
			Action    string `json:"action"`
			NextState string `json:"nextState"`
			Style     string `json:"style"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.CurrentState != "Peer Review" {
		t.Fatalf("expected Peer Review, got %q", payload.CurrentState)
	}
	if len(payload.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(payload.Transitions))
	}
	if payload.Transitions[0].Action != "Approve" || payload.Transitions[0].Style != "primary" {
		t.Fatalf("unexpected first transition %+v", payload.Transitions[0])
	}
	if payload.Transitions[1].Action != "Reject" || payload.Transitions[1].Style != "danger" {
		t.Fatalf("unexpected second transition %+v", payload.Transitions[1])
	}
}

func TestWorkflowOptionsEmptyForViewer(t *testing.T) {
	do, _, _ := workflowTestServer(t, "viewer")

	rr := do(http.MethodGet, "/api/assets/ast-1/workflow", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Transitions []any `json:"transitions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Transitions) != 0 {
		t.Fatalf("viewer should see no transitions, got %d", len(payload.Transitions))
	}
}

func TestApplyWorkflowAdvancesState(t *testing.T) {
	do, audit, notifications := workflowTestServer(t, "reviewer")

	rr := do(http.MethodPost, "/api/assets/ast-1/workflow", `{"action":"Approve"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		CurrentState string `json:"currentState"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.CurrentState != "HOD Approval" {
		t.Fatalf("expected HOD Approval, got %q", payload.CurrentState)
	}

	messages := audit.messages("ast-1")
	if len(messages) != 1 || messages[0] != "Workflow: Peer Review -> HOD Approval (Approve)" {
		t.Fatalf("unexpected audit messages %v", messages)
	}
	if len(*notifications) != 1 {
		t.Fatalf("expected owner notification, got %d", len(*notifications))
	}
	if (*notifications)[0].UserID != "usr-owner" || (*notifications)[0].Kind != "workflow" {
		t.Fatalf("unexpected notification %+v", (*notifications)[0])
	}
}

func TestApplyWorkflowForbiddenForViewerRole(t *testing.T) {
	do, _, _ := workflowTestServer(t, "viewer")

	rr := do(http.MethodPost, "/api/assets/ast-1/workflow", `{"action":"Approve"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestApplyWorkflowRoleNotAllowedForAction(t *testing.T) {
	// The hod role participates in workflow but holds no row in Peer Review.
	do, audit, _ := workflowTestServer(t, "hod")

	rr := do(http.MethodPost, "/api/assets/ast-1/workflow", `{"action":"Approve"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(audit.messages("ast-1")) != 0 {
		t.Fatal("forbidden action must not touch the audit log")
	}
}

func TestApplyWorkflowUnknownAction(t *testing.T) {
	do, _, _ := workflowTestServer(t, "reviewer")

	rr := do(http.MethodPost, "/api/assets/ast-1/workflow", `{"action":"Archive"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "UNKNOWN_ACTION" {
		t.Fatalf("expected UNKNOWN_ACTION, got %v", payload["code"])
	}
}

func TestApplyWorkflowAdminOverride(t *testing.T) {
	do, _, _ := workflowTestServer(t, "admin")

	rr := do(http.MethodPost, "/api/assets/ast-1/workflow", `{"action":"Reject"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		CurrentState string `json:"currentState"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.CurrentState != "Rejected" {
		t.Fatalf("expected Rejected, got %q", payload.CurrentState)
	}
}
