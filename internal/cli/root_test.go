package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "sweep", "loadgen"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("expected %s subcommand, got %v err=%v", name, sub, err)
		}
	}
	if cmd.PersistentFlags().Lookup("env-file") == nil || cmd.PersistentFlags().Lookup("ci") == nil {
		t.Fatal("expected persistent env-file and ci flags")
	}
}

func TestMigrateCommandCreatesSchemaOnSQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("JWT_ACCESS_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("JWT_REFRESH_SECRET", "abcdefghijklmnopqrstuvwxyz654321")
	t.Setenv("VERIFICATION_CODE_PEPPER", "pepper-pepper-pepper")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "--ci", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var out bytes.Buffer
	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sweep", "--ci", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var res struct {
		OK      bool     `json:"ok"`
		Title   string   `json:"title"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode ci output %q: %v", out.String(), err)
	}
	if !res.OK || res.Title != "retention sweep" || len(res.Details) != 5 {
		t.Fatalf("unexpected sweep report %+v", res)
	}
}
