package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{APIKey: "test-key"},
		Retrieval: RetrievalConfig{SemanticWeight: 0.7, KeywordWeight: 0.3},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.SemanticWeight = 0.7
	cfg.Retrieval.KeywordWeight = 0.7

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
}

func TestValidate_ClosenessThresholdBound(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.ClosenessThreshold = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for closeness threshold above 1.0")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Path != "rankd.db" {
		t.Errorf("expected Path='rankd.db', got %q", cfg.Database.Path)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %q", cfg.Embedding.Model)
	}
	if cfg.Completion.Model != "gpt-4o-mini" {
		t.Errorf("expected default completion model, got %q", cfg.Completion.Model)
	}
	if cfg.Completion.Temperature != 0.3 {
		t.Errorf("expected Temperature=0.3, got %v", cfg.Completion.Temperature)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.SemanticWeight != 0.7 {
		t.Errorf("expected SemanticWeight=0.7, got %v", cfg.Retrieval.SemanticWeight)
	}
	if cfg.Retrieval.KeywordWeight != 0.3 {
		t.Errorf("expected KeywordWeight=0.3, got %v", cfg.Retrieval.KeywordWeight)
	}
	if cfg.Retrieval.ClosenessThreshold != 0.15 {
		t.Errorf("expected ClosenessThreshold=0.15, got %v", cfg.Retrieval.ClosenessThreshold)
	}
	if cfg.Retrieval.CacheSize != 1000 {
		t.Errorf("expected CacheSize=1000, got %d", cfg.Retrieval.CacheSize)
	}
	if cfg.Retrieval.CacheTTLSec != 3600 {
		t.Errorf("expected CacheTTLSec=3600, got %d", cfg.Retrieval.CacheTTLSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 120, ShutdownSec: 5},
		Database: DatabaseConfig{Path: ":memory:"},
		Retrieval: RetrievalConfig{
			TopK:               10,
			SemanticWeight:     0.5,
			KeywordWeight:      0.5,
			ClosenessThreshold: 0.3,
			CacheSize:          50,
			CacheTTLSec:        60,
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("expected Path=':memory:', got %q", cfg.Database.Path)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.SemanticWeight != 0.5 {
		t.Errorf("expected SemanticWeight=0.5, got %v", cfg.Retrieval.SemanticWeight)
	}
	if cfg.Retrieval.CacheSize != 50 {
		t.Errorf("expected CacheSize=50, got %d", cfg.Retrieval.CacheSize)
	}
}
