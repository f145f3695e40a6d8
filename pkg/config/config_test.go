package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sampleConfig struct {
	Name    string        `envconfig:"NAME" required:"true"`
	Port    int           `envconfig:"PORT" default:"9000"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

func TestNewDecodesPrefixedEnvironment(t *testing.T) {
	t.Setenv("CFGTEST_NAME", "clinic")
	t.Setenv("CFGTEST_PORT", "8081")

	conf, err := New[sampleConfig]("CFGTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Name != "clinic" || conf.Port != 8081 || conf.Timeout != 5*time.Second {
		t.Fatalf("unexpected config: %+v", conf)
	}
}

func TestNewReportsMissingRequired(t *testing.T) {
	_, err := New[sampleConfig]("CFGMISSING")
	if err == nil {
		t.Fatal("expected error for missing required variable")
	}
	if !strings.Contains(err.Error(), "process cfgmissing config") {
		t.Fatalf("error = %v, want prefix label", err)
	}
}

func TestMustNewPanicsOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustNew() did not panic")
		}
	}()
	MustNew[sampleConfig]("CFGPANIC")
}

func TestFromFileExportsWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "CFGFILE_NAME=from-file\nCFGFILE_PORT=7070\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("CFGFILE_PORT", "6060")
	t.Cleanup(func() { _ = os.Unsetenv("CFGFILE_NAME") })

	conf, err := FromFile[sampleConfig](path, "CFGFILE")
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if conf.Name != "from-file" {
		t.Fatalf("Name = %q, want from-file", conf.Name)
	}
	if conf.Port != 6060 {
		t.Fatalf("Port = %d, want environment value 6060", conf.Port)
	}
}

func TestFromFileMissingFile(t *testing.T) {
	_, err := FromFile[sampleConfig](filepath.Join(t.TempDir(), "absent.env"), "CFGABSENT")
	if err == nil || !strings.Contains(err.Error(), "failed to load env file") {
		t.Fatalf("expected load error, got %v", err)
	}
}
