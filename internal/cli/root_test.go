package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command against a config in dir and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", filepath.Join(dir, "config.toml")}, args...))
	err := root.Execute()
	return out.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("MAILACCT_SECRET", "")
	content := fmt.Sprintf(`
[database]
dsn = %q

[log]
level = "error"

[secret]
source = "config"
value = "test-secret"
`, filepath.Join(dir, "mailacct.db"))
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestAccountLifecycle(t *testing.T) {
	dir := setup(t)

	out, err := run(t, dir, "--json", "-u", "5", "account", "add",
		"--name", "Work", "--login", "ann", "--password", "pw",
		"--mail-server", "imap.example.com", "--mail-port", "993", "--mail-secure",
		"--primary-address", "ann@example.com")
	if err != nil {
		t.Fatalf("account add: %v", err)
	}
	var added jsonAction
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("parse add output %q: %v", out, err)
	}
	if !added.OK || added.AccountID == nil {
		t.Fatalf("add output = %+v", added)
	}
	id := fmt.Sprint(*added.AccountID)

	if _, err := run(t, dir, "-u", "5", "account", "update", id, "--personal", "Ann"); err != nil {
		t.Fatalf("account update: %v", err)
	}

	out, err = run(t, dir, "--json", "-u", "5", "account", "get", id)
	if err != nil {
		t.Fatalf("account get: %v", err)
	}
	var got jsonAccount
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("parse get output: %v", err)
	}
	if got.Personal != "Ann" || got.Login != "ann" {
		t.Errorf("account = %+v", got)
	}

	out, err = run(t, dir, "account", "resolve-addr", "ANN@example.com")
	if err != nil {
		t.Fatalf("resolve-addr: %v", err)
	}
	if !strings.Contains(out, "5") {
		t.Errorf("resolve-addr output = %q", out)
	}

	if _, err := run(t, dir, "-u", "5", "account", "delete", id); err != nil {
		t.Fatalf("account delete: %v", err)
	}
	out, err = run(t, dir, "-u", "5", "account", "list")
	if err != nil {
		t.Fatalf("account list: %v", err)
	}
	if !strings.Contains(out, "No mail accounts") {
		t.Errorf("list output = %q", out)
	}
}

func TestRequireUser(t *testing.T) {
	dir := setup(t)
	if _, err := run(t, dir, "account", "list"); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Errorf("err = %v, want --user error", err)
	}
}

func TestUpdate_NothingToUpdate(t *testing.T) {
	dir := setup(t)
	if _, err := run(t, dir, "-u", "1", "account", "update", "1"); err == nil {
		t.Error("expected error without attribute flags")
	}
}

func TestContextPurge(t *testing.T) {
	dir := setup(t)
	for i, login := range []string{"bob", "cy"} {
		_, err := run(t, dir, "-u", fmt.Sprint(i+1), "account", "add",
			"--name", login, "--login", login, "--mail-server", "imap.example.com",
			"--primary-address", login+"@example.com")
		if err != nil {
			t.Fatalf("account add %s: %v", login, err)
		}
	}
	if _, err := run(t, dir, "context", "purge"); err != nil {
		t.Fatalf("context purge: %v", err)
	}
	out, err := run(t, dir, "--json", "-u", "1", "account", "list")
	if err != nil {
		t.Fatalf("account list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("list after purge = %q", out)
	}
}
