package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

const dotEnvMarker = "PPGLOG_DOTENV_MARKER"

// unsetForTest removes name from the environment and restores it afterwards.
func unsetForTest(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	os.Unsetenv(name)
}

func writeDotEnv(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotEnvMarker+"=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCommandsDoNotLoadDotEnv(t *testing.T) {
	tmp := isolate(t)
	unsetForTest(t, dotEnvMarker)
	writeDotEnv(t, tmp)

	if _, err := executeCommand(rootCmd, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if v, ok := os.LookupEnv(dotEnvMarker); ok {
		t.Errorf("running a command set %s=%q from .env", dotEnvMarker, v)
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmp := isolate(t)
	unsetForTest(t, dotEnvMarker)
	writeDotEnv(t, tmp)

	if err := loadDotEnv(); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv(dotEnvMarker); got != "1" {
		t.Errorf("%s = %q, want %q", dotEnvMarker, got, "1")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	isolate(t)

	if err := loadDotEnv(); err != nil {
		t.Errorf("missing .env should not be an error, got %v", err)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	tmp := isolate(t)
	t.Setenv(dotEnvMarker, "from-shell")
	writeDotEnv(t, tmp)

	if err := loadDotEnv(); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv(dotEnvMarker); got != "from-shell" {
		t.Errorf("%s = %q, .env must not override the shell", dotEnvMarker, got)
	}
}
