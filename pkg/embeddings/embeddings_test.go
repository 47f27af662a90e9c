package embeddings

import (
	"context"
	"log/slog"
	"testing"
)

func TestNoopClient_EmbedQuery(t *testing.T) {
	client := NewNoopClient()
	result, err := client.EmbedQuery(context.Background(), "buy flour")

	if err != nil {
		t.Errorf("EmbedQuery() error = %v, want nil", err)
	}
	if result != nil {
		t.Errorf("EmbedQuery() = %v, want nil", result)
	}
}

func TestNoopClient_EmbedDocuments(t *testing.T) {
	client := NewNoopClient()
	result, err := client.EmbedDocuments(context.Background(), []string{"buy flour", "bake bread"})

	if err != nil {
		t.Errorf("EmbedDocuments() error = %v, want nil", err)
	}
	if result != nil {
		t.Errorf("EmbedDocuments() = %v, want nil", result)
	}
}

func TestNewNoopService(t *testing.T) {
	svc := NewNoopService(slog.New(slog.DiscardHandler))

	if svc == nil {
		t.Fatal("NewNoopService() returned nil")
	}
	if svc.IsEnabled() {
		t.Error("NewNoopService().IsEnabled() = true, want false")
	}
}

func TestService_IsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
	}{
		{name: "enabled service", enabled: true},
		{name: "disabled service", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &Service{enabled: tt.enabled}
			if svc.IsEnabled() != tt.enabled {
				t.Errorf("IsEnabled() = %v, want %v", svc.IsEnabled(), tt.enabled)
			}
		})
	}
}

func TestService_EmbedQuery_WithNoopClient(t *testing.T) {
	svc := &Service{client: NewNoopClient()}

	result, err := svc.EmbedQuery(context.Background(), "what should I do today")
	if err != nil {
		t.Errorf("EmbedQuery() error = %v, want nil", err)
	}
	if result != nil {
		t.Errorf("EmbedQuery() = %v, want nil", result)
	}
}

func TestService_EmbedDocuments_WithNoopClient(t *testing.T) {
	svc := &Service{client: NewNoopClient()}

	result, err := svc.EmbedDocuments(context.Background(), []string{"buy flour", "bake bread"})
	if err != nil {
		t.Errorf("EmbedDocuments() error = %v, want nil", err)
	}
	if result != nil {
		t.Errorf("EmbedDocuments() = %v, want nil", result)
	}
}
