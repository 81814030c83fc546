// Command layout-check loads a project's memory layout from a SQLite
// database, verifies the address invariants, and prints a per-bank summary.
// With -out it also renders the address-map artifact into a local blob root.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"romgrid/internal/artifact"
	"romgrid/internal/blob"
	"romgrid/internal/infra/persistence/sqlite"
	"romgrid/pkg/layout"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("layout-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dbPath    string
		projectID string
		outRoot   string
	)
	fs.StringVar(&dbPath, "db", "romgrid.db", "path to the layout database")
	fs.StringVar(&projectID, "project", "", "project id to check (required)")
	fs.StringVar(&outRoot, "out", "", "optional artifact root; when set the address map is rendered there")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if projectID == "" {
		fmt.Fprintln(stderr, "layout-check: -project is required")
		return 2
	}
	if err := run(context.Background(), stdout, dbPath, projectID, outRoot); err != nil {
		fmt.Fprintf(stderr, "layout-check: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, stdout io.Writer, dbPath, projectID, outRoot string) error {
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	blocks, err := loadHierarchy(ctx, store, projectID)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return fmt.Errorf("project %s has no blocks", projectID)
	}
	if problems := checkBounds(blocks); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(stdout, "PROBLEM %s\n", p)
		}
		return fmt.Errorf("%d invariant violations", len(problems))
	}
	printBankMap(stdout, blocks)

	if outRoot != "" {
		bs, err := blob.NewFS(outRoot)
		if err != nil {
			return err
		}
		rec, err := artifact.NewGenerator(bs).Generate(ctx, projectID, blocks)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "artifact %s (%d bytes)\n", rec.Key, rec.Size)
	}
	return nil
}

// loadHierarchy assembles blocks with their parts attached in canonical
// order, sorted by bank then start address.
func loadHierarchy(ctx context.Context, store layout.RemoteStore, projectID string) ([]layout.Block, error) {
	blocks, err := store.Blocks().GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	parts, err := store.Parts().GetByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*layout.Block, len(blocks))
	out := make([]layout.Block, len(blocks))
	for i, b := range blocks {
		out[i] = b
		byID[b.ID] = &out[i]
	}
	for _, p := range parts {
		if b, ok := byID[p.BlockID]; ok {
			b.Parts = append(b.Parts, p)
		}
	}
	for i := range out {
		layout.SortParts(out[i].Parts)
	}
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].Bank(), out[j].Bank()
		if bi != bj {
			return bi < bj
		}
		si, _, _ := out[i].Range()
		sj, _, _ := out[j].Range()
		if si != sj {
			return si < sj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func checkBounds(blocks []layout.Block) []string {
	var problems []string
	for _, b := range blocks {
		for _, p := range b.Parts {
			name := p.Name
			if name == "" {
				name = p.ID
			}
			if p.Location < 0 || p.Location > layout.LocationMax {
				problems = append(problems, fmt.Sprintf("%s/%s: location 0x%X out of range", b.Name, name, p.Location))
			}
			if p.Size < layout.SizeMin || p.Size > layout.SizeMax {
				problems = append(problems, fmt.Sprintf("%s/%s: size 0x%X out of range", b.Name, name, p.Size))
			}
		}
	}
	return problems
}

func printBankMap(w io.Writer, blocks []layout.Block) {
	lastBank := -1
	for _, b := range blocks {
		bank := b.Bank()
		if bank != lastBank {
			fmt.Fprintf(w, "bank $%02X\n", bank)
			lastBank = bank
		}
		if start, end, ok := b.Range(); ok {
			fmt.Fprintf(w, "  %-24s $%06X-$%06X (%d parts)\n", b.Name, start, end, len(b.Parts))
		} else {
			fmt.Fprintf(w, "  %-24s (empty)\n", b.Name)
		}
	}
}
