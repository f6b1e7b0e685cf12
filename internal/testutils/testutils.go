// Package testutils holds helpers shared by integration tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/nfrund/chatter/internal/config"
)

// TestSecret signs tokens in tests that use ConfigForTests.
const TestSecret = "integration-test-secret"

// ConfigForTests builds a config for integration tests. Values from a .env.test
// file at the project root are applied first when it exists, then overrides.
// The memory store and TestSecret are the defaults.
func ConfigForTests(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()

	t.Setenv("JWT_SECRET", TestSecret)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PUBSUB_TRACING_ENABLED", "false")

	if root, ok := projectRoot(); ok {
		if env, err := godotenv.Read(filepath.Join(root, ".env.test")); err == nil {
			for key, value := range env {
				t.Setenv(key, value)
			}
		}
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := config.FromEnviron()
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

// projectRoot walks up from the working directory to the directory holding go.mod.
func projectRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}
