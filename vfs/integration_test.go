package vfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmfs/config"
	"llmfs/session"
	"llmfs/testutil"
)

// TestMountedFilesystem_ModelQueryRoundTrip mounts a real FS at a real
// mountpoint and drives it with ordinary file I/O, rather than calling
// node methods directly. This exercises the actual Inode tree built by
// OnAdd, including Lookup-dependent paths that a bare struct test can't
// reach.
func TestMountedFilesystem_ModelQueryRoundTrip(t *testing.T) {
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("/dev/fuse not available, skipping mounted-filesystem test")
	}

	llm := &fakeLLM{models: []string{"gpt-x"}, replies: map[string]string{"ping": "pong"}}
	search := newFakeSearch()
	cfg := config.NewStore()
	cfg.DefaultModel = "gpt-x"

	mountDir := t.TempDir()
	llmfsRoot := NewFS(cfg, session.NewStore(), llm, search)
	m, err := testutil.MountFS(testutil.MountOptions{Dir: mountDir, Root: llmfsRoot})
	if err != nil {
		t.Skipf("could not mount (likely no FUSE support in this sandbox): %v", err)
	}
	defer m.Unmount()

	modelsPath := filepath.Join(mountDir, "models")
	entries, err := os.ReadDir(modelsPath)
	if err != nil {
		t.Fatalf("ReadDir(models): %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if !contains(names, "default") || !contains(names, "gpt-x") {
		t.Fatalf("ls /models = %v, want it to contain default and gpt-x", names)
	}

	queryPath := filepath.Join(mountDir, "models", "gpt-x")
	if err := os.WriteFile(queryPath, []byte("ping"), 0644); err != nil {
		t.Fatalf("write query: %v", err)
	}
	got, err := os.ReadFile(queryPath)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if strings.TrimSpace(string(got)) != "pong" {
		t.Fatalf("response = %q, want %q", got, "pong")
	}

	// A successful model write archives one session and points "latest"
	// at it, so the directory lists the minted id plus the alias.
	convPath := filepath.Join(mountDir, "conversations")
	convEntries, err := os.ReadDir(convPath)
	if err != nil {
		t.Fatalf("ReadDir(conversations): %v", err)
	}
	var convNames []string
	for _, e := range convEntries {
		convNames = append(convNames, e.Name())
	}
	if len(convNames) != 2 || !contains(convNames, "latest") {
		t.Fatalf("ls /conversations = %v, want one archived session id plus latest", convNames)
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
