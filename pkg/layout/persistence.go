package layout

import "context"

// BlockPatch is a partial update against a block. Nil fields are untouched.
type BlockPatch struct {
	Name  *string
	Group *string
}

// PartPatch is a partial update against a part. Nil fields are untouched.
type PartPatch struct {
	Name     *string
	Location *int64
	Size     *int64
	Type     *string
	Index    *int
}

// Empty reports whether the patch carries no changes.
func (p BlockPatch) Empty() bool { return p.Name == nil && p.Group == nil }

// Empty reports whether the patch carries no changes.
func (p PartPatch) Empty() bool {
	return p.Name == nil && p.Location == nil && p.Size == nil && p.Type == nil && p.Index == nil
}

// BlockStore is the remote persistence contract for blocks. All mutations are
// attributed to an acting user identity. Deletions are soft at the store
// layer; GetByProject never returns deleted records.
type BlockStore interface {
	GetByProject(ctx context.Context, projectID string) ([]Block, error)
	Create(ctx context.Context, block Block, actor string) (Block, error)
	Update(ctx context.Context, id string, patch BlockPatch, actor string) (Block, error)
	SoftDelete(ctx context.Context, id string, actor string) error
}

// PartStore is the remote persistence contract for parts.
type PartStore interface {
	GetByProject(ctx context.Context, projectID string) ([]Part, error)
	Create(ctx context.Context, part Part, actor string) (Part, error)
	Update(ctx context.Context, id string, patch PartPatch, actor string) (Part, error)
	SoftDelete(ctx context.Context, id string, actor string) error
}

// RemoteStore bundles the per-entity stores of one backing service.
type RemoteStore interface {
	Blocks() BlockStore
	Parts() PartStore
}

// EventHandler consumes a remote change notification.
type EventHandler func(Event)

// Subscription is an active push-channel registration. Unsubscribe is
// idempotent.
type Subscription interface {
	Unsubscribe()
}

// PushChannel delivers asynchronous remote change events for a project.
type PushChannel interface {
	Subscribe(ctx context.Context, projectID string, fn EventHandler) (Subscription, error)
}
