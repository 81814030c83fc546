package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romgrid/internal/infra/persistence/sqlite"
	"romgrid/pkg/layout"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "layout.db")
	store, err := sqlite.NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	}()
	b, err := store.Blocks().Create(ctx, layout.Block{ProjectID: "p1", Name: "main_code", Group: "code"}, "seed")
	if err != nil {
		t.Fatalf("seed block: %v", err)
	}
	if _, err := store.Parts().Create(ctx, layout.Part{BlockID: b.ID, Name: "intro", Location: 0x008000, Size: 0x0C00}, "seed"); err != nil {
		t.Fatalf("seed part: %v", err)
	}
	return path
}

func TestCLIPrintsBankMap(t *testing.T) {
	path := seedDatabase(t)
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-db", path, "-project", "p1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "bank $00") {
		t.Fatalf("missing bank header in output:\n%s", out)
	}
	if !strings.Contains(out, "$008000-$008C00") {
		t.Fatalf("missing block range in output:\n%s", out)
	}
}

func TestCLIWritesArtifact(t *testing.T) {
	path := seedDatabase(t)
	outRoot := filepath.Join(t.TempDir(), "artifacts")
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-db", path, "-project", "p1", "-out", outRoot}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "artifact layouts/p1/") {
		t.Fatalf("missing artifact line in output:\n%s", stdout.String())
	}
	entries, err := os.ReadDir(filepath.Join(outRoot, "layouts", "p1"))
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected rendered artifact under %s: %v", outRoot, err)
	}
}

func TestCLIRequiresProject(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-db", "x.db"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestCLIReportsMissingProject(t *testing.T) {
	path := seedDatabase(t)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-db", path, "-project", "ghost"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure exit, got %d", code)
	}
	if !strings.Contains(stderr.String(), "no blocks") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}
