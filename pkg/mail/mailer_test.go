package mail

import (
	"testing"
)

func TestNewPicksLogWithoutTransport(t *testing.T) {
	mailer, err := New(Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mailer.Name() != ProviderLog {
		t.Fatalf("expected log mailer, got %s", mailer.Name())
	}
}

func TestNewPicksSMTPWhenHostConfigured(t *testing.T) {
	mailer, err := New(Settings{SMTP: SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mailer.Name() != ProviderSMTP {
		t.Fatalf("expected smtp mailer, got %s", mailer.Name())
	}
}

func TestNewExplicitProviders(t *testing.T) {
	mailer, err := New(Settings{
		Provider: "SES",
		SES: SESSettings{
			Region:          "eu-central-1",
			AccessKeyID:     "AKIAEXAMPLE",
			SecretAccessKey: "secret",
			From:            "events@example.com",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mailer.Name() != ProviderSES {
		t.Fatalf("expected ses mailer, got %s", mailer.Name())
	}

	if _, err := New(Settings{Provider: "smtp"}); err == nil {
		t.Fatal("expected smtp provider without host to fail validation")
	}

	if _, err := New(Settings{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestUniqueAddresses(t *testing.T) {
	addresses := []string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"}
	result := uniqueAddresses(addresses)
	if len(result) != 2 {
		t.Fatalf("expected 2 unique addresses, got %d: %v", len(result), result)
	}
	if result[0] != "alice@example.com" || result[1] != "bob@example.com" {
		t.Fatalf("unexpected result order/content: %v", result)
	}
}
