package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/i18nkit/txrecover/config"
	"github.com/i18nkit/txrecover/gitlog"
	"github.com/i18nkit/txrecover/oplock"
	"github.com/i18nkit/txrecover/recovery"
)

func TestSplitList(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"name", []string{"name"}},
		{"name,count", []string{"name", "count"}},
		{" name , , count ", []string{"name", "count"}},
	}
	for _, c := range cases {
		got := splitList(c.in)
		if len(got) != len(c.want) {
			t.Errorf("splitList(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("splitList(%q) = %v, want %v", c.in, got, c.want)
				break
			}
		}
	}
}

func TestReadKeysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	content := "nav.home\n\n# a comment\n  footer.contact  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	keys, err := readKeysFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "nav.home" || keys[1] != "footer.contact" {
		t.Fatalf("keys = %v", keys)
	}

	if _, err := readKeysFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("missing keys file accepted")
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()

	want := []string{"status", "recover", "batch", "clear-cache", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if root.PersistentFlags().Lookup("root") == nil {
		t.Error("persistent --root flag not registered")
	}
}

func TestSetupWorkspace_NoGit(t *testing.T) {
	saved := rootDir
	defer func() { rootDir = saved }()
	rootDir = t.TempDir()

	env, err := setupWorkspace(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if env.hasGit {
		t.Fatal("workspace without .git reported git history as available")
	}
}

func TestWriteRecovered(t *testing.T) {
	root := t.TempDir()
	localeDir := filepath.Join(root, "locales")
	if err := os.MkdirAll(localeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(localeDir, "en.json")
	if err := os.WriteFile(path, []byte(`{"nav": {"about": "About"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	env := &workspaceEnv{
		ws:    config.Detect(root),
		src:   gitlog.NewGitSource(root),
		locks: oplock.NewManager(nil),
	}

	results := map[string]*recovery.Result{
		"nav.home": {Key: "nav.home", Locale: "en", Value: "Home", Source: "head:de"},
		"missing":  nil,
	}
	if err := writeRecovered(context.Background(), env, "en", results); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("written file is not valid JSON: %v", err)
	}
	nav, ok := tree["nav"].(map[string]any)
	if !ok {
		t.Fatalf("nav branch lost: %v", tree)
	}
	if nav["home"] != "Home" || nav["about"] != "About" {
		t.Fatalf("nav = %v", nav)
	}
}

func TestWriteRecovered_NoLocaleFiles(t *testing.T) {
	root := t.TempDir()
	env := &workspaceEnv{
		ws:    config.Detect(root),
		src:   gitlog.NewGitSource(root),
		locks: oplock.NewManager(nil),
	}
	err := writeRecovered(context.Background(), env, "en", nil)
	if err == nil {
		t.Fatal("write into empty workspace accepted")
	}
}
