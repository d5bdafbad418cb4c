package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/mongoadmin/console/internal/core/domain"
)

func TestUserHandler_List(t *testing.T) {
	f := newFixture(t)
	h := NewUserHandler(f.console)
	admin := f.loggedIn(t, "root", domain.RoleAdmin)
	f.seedUser(t, "alice", "s3cret-pass", domain.RoleViewer)

	rec, err := f.call(h.List, admin, http.MethodGet, "/users", "")
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string][]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp["users"]) != 2 {
		t.Fatalf("expected 2 users, got %d", len(resp["users"]))
	}
	for _, u := range resp["users"] {
		if _, leaked := u["password_hash"]; leaked {
			t.Fatalf("password hash must not be listed")
		}
	}
}

func TestUserHandler_List_RequiresManageUsers(t *testing.T) {
	f := newFixture(t)
	h := NewUserHandler(f.console)
	editor := f.loggedIn(t, "editor1", domain.RoleEditor)

	_, err := f.call(h.List, editor, http.MethodGet, "/users", "")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestUserHandler_SetRole(t *testing.T) {
	f := newFixture(t)
	h := NewUserHandler(f.console)
	admin := f.loggedIn(t, "root", domain.RoleAdmin)
	aliceID := f.seedUser(t, "alice", "s3cret-pass", domain.RoleViewer)

	rec, err := f.call(h.SetRole, admin, http.MethodPut, "/users/"+aliceID+"/role", `{"role":"editor"}`, "id", aliceID)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	acct, err := f.console.Users().FindByID(context.Background(), aliceID)
	if err != nil {
		t.Fatalf("find alice: %v", err)
	}
	if acct.Role != domain.RoleEditor {
		t.Fatalf("expected editor, got %s", acct.Role)
	}
}

func TestUserHandler_SetRole_Rejects(t *testing.T) {
	f := newFixture(t)
	h := NewUserHandler(f.console)
	admin := f.loggedIn(t, "root", domain.RoleAdmin)
	aliceID := f.seedUser(t, "alice", "s3cret-pass", domain.RoleViewer)

	tests := []struct {
		name    string
		id      string
		body    string
		wantErr error
	}{
		{"unknown role", aliceID, `{"role":"root"}`, domain.ErrValidation},
		{"own account", admin.User.ID, `{"role":"viewer"}`, domain.ErrValidation},
		{"missing account", "no-such-id", `{"role":"viewer"}`, domain.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.call(h.SetRole, admin, http.MethodPut, "/users/"+tt.id+"/role", tt.body, "id", tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUserHandler_Deactivate(t *testing.T) {
	f := newFixture(t)
	h := NewUserHandler(f.console)
	admin := f.loggedIn(t, "root", domain.RoleAdmin)
	aliceID := f.seedUser(t, "alice", "s3cret-pass", domain.RoleViewer)

	if _, err := f.call(h.Deactivate, admin, http.MethodPost, "/users/"+aliceID+"/deactivate", "", "id", aliceID); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	res := f.console.Session(f.anonymous(t)).Login(context.Background(), "alice", "s3cret-pass")
	if !errors.Is(res.Err, domain.ErrAccountInactive) {
		t.Fatalf("expected inactive account, got %v", res.Err)
	}
}
