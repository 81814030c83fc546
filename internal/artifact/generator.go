// Package artifact renders a finalized block hierarchy into an
// assembly-style address map and stores it as a blob. Generation is the
// build gate: it refuses hierarchies carrying unpersisted parts or rows
// that violate the address invariants.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"romgrid/internal/blob"
	"romgrid/pkg/layout"
)

// Record describes one generated artifact.
type Record struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Key       string    `json:"key"`
	Blocks    int       `json:"blocks"`
	Parts     int       `json:"parts"`
	Banks     []int     `json:"banks"`
	Size      int64     `json:"size_bytes"`
	ETag      string    `json:"etag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InvalidHierarchyError reports why a hierarchy cannot be rendered.
type InvalidHierarchyError struct {
	Problems []string
}

func (e InvalidHierarchyError) Error() string {
	return fmt.Sprintf("artifact: hierarchy not buildable: %s", strings.Join(e.Problems, "; "))
}

// Generator renders address maps into a blob store.
type Generator struct {
	store blob.Store
	nowFn func() time.Time
	idFn  func() string
}

// NewGenerator constructs a generator over the given blob store.
func NewGenerator(store blob.Store) *Generator {
	return &Generator{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
		idFn:  uuid.NewString,
	}
}

// SetNowFunc overrides the clock for tests.
func (g *Generator) SetNowFunc(fn func() time.Time) { g.nowFn = fn }

// SetIDFunc overrides artifact id generation for tests.
func (g *Generator) SetIDFunc(fn func() string) { g.idFn = fn }

// Generate verifies the hierarchy, renders the address map, and stores it
// under layouts/<project>/<artifact-id>.map. The rendered body is a pure
// function of the hierarchy; the timestamp travels in blob metadata.
func (g *Generator) Generate(ctx context.Context, projectID string, blocks []layout.Block) (Record, error) {
	if projectID == "" {
		return Record{}, fmt.Errorf("artifact: project id is required")
	}
	if problems := verify(blocks); len(problems) > 0 {
		return Record{}, InvalidHierarchyError{Problems: problems}
	}
	body, parts, banks := render(projectID, blocks)
	id := g.idFn()
	key := fmt.Sprintf("layouts/%s/%s.map", projectID, id)
	created := g.nowFn()
	info, err := g.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: "text/plain; charset=utf-8",
		Metadata: map[string]string{
			"project":      projectID,
			"artifact":     id,
			"generated_at": created.Format(time.RFC3339),
		},
	})
	if err != nil {
		return Record{}, fmt.Errorf("artifact: store map: %w", err)
	}
	return Record{
		ID:        id,
		ProjectID: projectID,
		Key:       key,
		Blocks:    len(blocks),
		Parts:     parts,
		Banks:     banks,
		Size:      info.Size,
		ETag:      info.ETag,
		CreatedAt: created,
	}, nil
}

func verify(blocks []layout.Block) []string {
	var problems []string
	for _, b := range blocks {
		if b.ID == "" || layout.IsPendingID(b.ID) {
			problems = append(problems, fmt.Sprintf("block %q has no server identity", b.Name))
		}
		for _, p := range b.Parts {
			label := partLabel(b, p)
			if p.ID == "" || layout.IsPendingID(p.ID) {
				problems = append(problems, fmt.Sprintf("part %s was never saved", label))
				continue
			}
			if p.Location < 0 || p.Location > layout.LocationMax {
				problems = append(problems, fmt.Sprintf("part %s location out of range", label))
			}
			if p.Size < layout.SizeMin || p.Size > layout.SizeMax {
				problems = append(problems, fmt.Sprintf("part %s size out of range", label))
			}
		}
	}
	return problems
}

func partLabel(b layout.Block, p layout.Part) string {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	return fmt.Sprintf("%s/%s", b.Name, name)
}

func render(projectID string, blocks []layout.Block) (body []byte, parts int, banks []int) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "; project %s\n", projectID)
	seen := map[int]bool{}
	lastBank := -1
	for _, b := range blocks {
		bank := b.Bank()
		if !seen[bank] {
			seen[bank] = true
			banks = append(banks, bank)
		}
		if bank != lastBank {
			fmt.Fprintf(&buf, "\n; bank $%02X\n", bank)
			lastBank = bank
		}
		start, end, ok := b.Range()
		label := symbol(b.Name)
		if ok {
			fmt.Fprintf(&buf, "%s: ; $%06X-$%06X", label, start, end)
		} else {
			fmt.Fprintf(&buf, "%s: ; empty", label)
		}
		if b.Group != "" {
			fmt.Fprintf(&buf, " group:%s", b.Group)
		}
		buf.WriteByte('\n')
		for _, p := range b.Parts {
			parts++
			fmt.Fprintf(&buf, "  .%s location $%06X size $%04X", symbol(p.Name), p.Location, p.Size)
			if p.Type != "" {
				fmt.Fprintf(&buf, " type %s", p.Type)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), parts, banks
}

// symbol flattens a display name into an assembler-safe label.
func symbol(name string) string {
	if name == "" {
		return "unnamed"
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '.':
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "unnamed"
	}
	return sb.String()
}
