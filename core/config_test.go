package core

import (
	"errors"
	"testing"
)

func validConfig() ClientConfig {
	return ClientConfig{
		APIKey:                   "sk-test",
		ConcurrentRequestsTarget: 10,
		MaxCandidateNodes:        5,
	}
}

func TestClientConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *ClientConfig)
		wantErr bool
	}{
		{"valid", func(c *ClientConfig) {}, false},
		{"valid with tags", func(c *ClientConfig) { c.DefaultNodeTags = []string{"gpu", "us-east", "gpu"} }, false},
		{"valid with empty environment", func(c *ClientConfig) { env := ""; c.Environment = &env }, false},
		{"missing api key", func(c *ClientConfig) { c.APIKey = "" }, true},
		{"zero target", func(c *ClientConfig) { c.ConcurrentRequestsTarget = 0 }, true},
		{"negative target", func(c *ClientConfig) { c.ConcurrentRequestsTarget = -3 }, true},
		{"zero max nodes", func(c *ClientConfig) { c.MaxCandidateNodes = 0 }, true},
		{"negative max nodes", func(c *ClientConfig) { c.MaxCandidateNodes = -1 }, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(&cfg)

			err := cfg.Validate()
			if c.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("validation error has wrong kind: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestClientConfigClone(t *testing.T) {
	env := "production"
	cfg := ClientConfig{
		APIKey:                   "sk-test",
		ConcurrentRequestsTarget: 4,
		MaxCandidateNodes:        2,
		DefaultNodeTags:          []string{"gpu", "gpu", "eu"},
		Environment:              &env,
	}

	clone := cfg.Clone()

	clone.DefaultNodeTags[0] = "mutated"
	*clone.Environment = "mutated"

	if cfg.DefaultNodeTags[0] != "gpu" {
		t.Error("clone shares the tag slice with the original")
	}
	if *cfg.Environment != "production" {
		t.Error("clone shares the environment pointer with the original")
	}
}

func TestClientConfigCloneKeepsNilEnvironment(t *testing.T) {
	clone := validConfig().Clone()
	if clone.Environment != nil {
		t.Error("nil environment must stay nil; nil and empty string differ")
	}
}
