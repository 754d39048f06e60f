package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewBrevoServiceNeedsCredentials(t *testing.T) {
	if s := NewBrevoService("", "from@example.com", "SkillCoin", nil); s != nil {
		t.Fatalf("want nil service without api key")
	}
	var s *BrevoService
	if err := s.Send(context.Background(), "A", "a@example.com", "hi", "<p>hi</p>"); err != nil {
		t.Fatalf("nil service should drop silently: %v", err)
	}
}

func TestBrevoSend(t *testing.T) {
	var got brevoPayload
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"1"}`))
	}))
	defer srv.Close()

	s := NewBrevoService("key-123", "from@example.com", "SkillCoin", nil)
	s.Endpoint = srv.URL
	if err := s.Send(context.Background(), "", "amina@example.com", "Reminder", "<p>soon</p>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if apiKey != "key-123" {
		t.Fatalf("api key header: got %q", apiKey)
	}
	if got.Subject != "Reminder" || got.To[0]["email"] != "amina@example.com" || got.To[0]["name"] != "amina" {
		t.Fatalf("payload: got %+v", got)
	}
}

func TestBrevoSendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewBrevoService("bad", "from@example.com", "SkillCoin", nil)
	s.Endpoint = srv.URL
	if err := s.Send(context.Background(), "A", "a@example.com", "x", "y"); err == nil {
		t.Fatalf("want error on non-201 response")
	}
	if err := s.Send(context.Background(), "A", "not-an-email", "x", "y"); err == nil {
		t.Fatalf("want error on invalid recipient")
	}
}
