package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_GetUser(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("path = %q, want /user", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gho_valid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Accept"); got != mediaType {
			t.Errorf("Accept = %q, want %q", got, mediaType)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"login":"octocat","name":"The Octocat","email":"octo@example.com","avatar_url":"https://avatars.example.com/42"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", srv.Client())

	tests := []struct {
		name      string
		token     string
		wantLogin string
	}{
		{name: "valid token", token: "gho_valid", wantLogin: "octocat"},
		{name: "rejected token", token: "gho_bad"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user, err := client.GetUser(context.Background(), tt.token)
			if err != nil {
				t.Fatalf("GetUser returned error: %v", err)
			}
			if tt.wantLogin == "" {
				if user != nil {
					t.Errorf("expected nil user, got %+v", user)
				}
				return
			}
			if user == nil {
				t.Fatal("expected user, got nil")
			}
			if user.Login != tt.wantLogin {
				t.Errorf("Login = %q, want %q", user.Login, tt.wantLogin)
			}
			if user.ID != 42 || user.Email != "octo@example.com" {
				t.Errorf("unexpected profile: %+v", user)
			}
		})
	}
}

func TestClient_GetUser_DecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(srv.Close)

	if _, err := NewClient(srv.URL, srv.Client()).GetUser(context.Background(), "t"); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_GetUser_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url, nil).GetUser(context.Background(), "t"); err == nil {
		t.Error("expected transport error")
	}
}

func TestClient_DoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://elsewhere.example.com/user", http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	user, err := NewClient(srv.URL, nil).GetUser(context.Background(), "t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("redirect should be treated as non-2xx, got %+v", user)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("", nil)
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.httpClient == nil || c.httpClient.Timeout != ClientTimeout {
		t.Error("expected default http client with timeout")
	}
}
