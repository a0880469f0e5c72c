package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/brewd/internal/profile"
)

func TestListProfiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/profile/list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]profile.Summary{
			{ID: "p-1", Name: "Classic"},
			{ID: "p-2", Name: "Turbo"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("ListProfiles() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p-1" || got[1].Name != "Turbo" {
		t.Errorf("ListProfiles() = %+v", got)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetProfile(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile() error = %v, want ErrNotFound", err)
	}
}

func TestStatusErrorCarriesDeviceMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "boiler heating, try again"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.MachineStatus(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("MachineStatus() error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Message != "boiler heating, try again" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestSaveProfileRoundTrip(t *testing.T) {
	var received profile.Profile
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/profile/save" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"change_id": "c-1", "profile": received})
	}))
	defer srv.Close()

	p := profile.Normalize(profile.Profile{Name: "Test", Author: "dev"})

	c := New(srv.URL)
	saved, err := c.SaveProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}
	if saved.ID != p.ID {
		t.Errorf("saved id = %q, want %q", saved.ID, p.ID)
	}
	if received.Name != "Test" {
		t.Errorf("machine received name %q", received.Name)
	}
}

func TestDeleteProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.DeleteProfile(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteProfile() error = %v, want ErrNotFound", err)
	}
}

func TestFetchAllProfiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/profile/list":
			json.NewEncoder(w).Encode([]profile.Summary{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
		case strings.HasPrefix(r.URL.Path, "/api/v1/profile/get/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/profile/get/")
			json.NewEncoder(w).Encode(profile.Profile{ID: id, Name: strings.ToUpper(id)})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.FetchAllProfiles(context.Background())
	if err != nil {
		t.Fatalf("FetchAllProfiles() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("FetchAllProfiles() = %+v", got)
	}
}

func TestExecuteActionRejectsUnknown(t *testing.T) {
	c := New("http://machine.invalid")
	if _, err := c.ExecuteAction(context.Background(), "explode"); err == nil {
		t.Error("ExecuteAction() accepted an unknown action")
	}
}

func TestExecuteAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/action/start" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "action": "start"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	raw, err := c.ExecuteAction(context.Background(), "start")
	if err != nil {
		t.Fatalf("ExecuteAction() error: %v", err)
	}
	if !strings.Contains(string(raw), `"ok"`) {
		t.Errorf("ExecuteAction() = %s", raw)
	}
}

func TestUpdateSetting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["auto_purge_after_shot"] != true {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.UpdateSetting(context.Background(), "auto_purge_after_shot", true); err != nil {
		t.Fatalf("UpdateSetting() error: %v", err)
	}
}

func TestShotURL(t *testing.T) {
	c := New("http://machine.local/")
	got := c.ShotURL("2025-03-01", "shot_08_15.json.zst")
	want := "http://machine.local/api/v1/history/2025-03-01/shot_08_15.json.zst"
	if got != want {
		t.Errorf("ShotURL() = %q, want %q", got, want)
	}
}
