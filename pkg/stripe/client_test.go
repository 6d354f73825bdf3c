package stripe

import (
	"context"
	"testing"

	"github.com/medmarket/medmarket-backend/pkg/config"
)

func TestNewClientValidatesKeysAgainstEnvironment(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "test"}},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_123", Secret: "whsec_1", Env: "LIVE"}},
		{name: "live key in test", cfg: config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec_1", Env: "test"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec_1"}, wantErr: true},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_123"}, wantErr: true},
		{name: "publishable key", cfg: config.StripeConfig{APIKey: "pk_test_123", Secret: "whsec_1"}, wantErr: true},
		{name: "bad env", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "staging"}, wantErr: true},
	}
	for _, tc := range cases {
		client, err := NewClient(context.Background(), tc.cfg, nil)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if client.SigningSecret() != "whsec_1" {
			t.Fatalf("%s: signing secret not kept", tc.name)
		}
		if client.PaymentIntents() == nil {
			t.Fatalf("%s: expected payment intents surface", tc.name)
		}
	}
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	if c.Environment() != "" || c.SigningSecret() != "" {
		t.Fatal("nil client should return empty values")
	}
	if c.PaymentIntents() != nil {
		t.Fatal("expected nil payment intents without a client")
	}
}
