package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	applied, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil || len(applied) != 0 {
		t.Fatalf("missing env file should be ignored: applied=%v err=%v", applied, err)
	}
}

func TestLoadEnvFileKeepsExistingAuthSettings(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "from-env")
	file := filepath.Join(t.TempDir(), "auth.env")
	content := strings.Join([]string{
		"# local auth service",
		"JWT_ACCESS_SECRET=from-file",
		"export LOCKOUT_THRESHOLD=3",
		`VERIFICATION_CODE_PEPPER="pepper with spaces"`,
		`REDIS_KEY_PREFIX='todo"auth'`,
	}, "\n")
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	for _, k := range []string{"LOCKOUT_THRESHOLD", "VERIFICATION_CODE_PEPPER", "REDIS_KEY_PREFIX"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	applied, err := LoadEnvFile(file)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if strings.Join(applied, ",") != "LOCKOUT_THRESHOLD,REDIS_KEY_PREFIX,VERIFICATION_CODE_PEPPER" {
		t.Fatalf("expected three sorted applied keys, got %v", applied)
	}
	want := map[string]string{
		"JWT_ACCESS_SECRET":        "from-env",
		"LOCKOUT_THRESHOLD":        "3",
		"VERIFICATION_CODE_PEPPER": "pepper with spaces",
		"REDIS_KEY_PREFIX":         `todo"auth`,
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Fatalf("%s=%q, want %q", k, got, v)
		}
	}
}

func TestLoadEnvFileRejectsMalformedKeys(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.env")
	if err := os.WriteFile(file, []byte("BAD!KEY=1\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if _, err := LoadEnvFile(file); err == nil {
		t.Fatal("expected malformed key to fail the load")
	}
}

func TestLoadEnvFileOpenError(t *testing.T) {
	if _, err := LoadEnvFile(t.TempDir()); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}

func TestPrintCIResult(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintCIResult(&buf, false, "retention sweep", nil, errors.New("db down")); err != nil {
		t.Fatalf("print: %v", err)
	}
	var got ciResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got.OK || got.Title != "retention sweep" || got.Error != "db down" || got.Details == nil {
		t.Fatalf("unexpected ci result %+v", got)
	}
}
