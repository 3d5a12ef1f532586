package app

import (
	"context"
	"os"
	"testing"

	"github.com/vk/artiflow/internal/hcl"
	"github.com/vk/artiflow/internal/registry"
	"github.com/vk/artiflow/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// captured at debug level in JSON, artifacts go to a fresh temporary
// directory unless cfg names one, and the app is closed when the test ends.
func SetupAppTest(t *testing.T, cfg Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"
	conf, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test configuration: %v", err)
	}

	logBuffer := &testutil.SafeBuffer{}
	testApp, err := NewApp(context.Background(), logBuffer, conf, hcl.NewLoader(), modules...)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	t.Cleanup(func() {
		if err := testApp.Close(); err != nil {
			t.Errorf("failed to close app: %v", err)
		}
		if os.Getenv("ARTIFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
