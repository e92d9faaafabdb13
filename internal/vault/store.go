package vault

import "context"

// Reader is the read-only half of the item store.
type Reader interface {
	// Get returns the item or a NotFound error.
	Get(ctx context.Context, id string) (*Item, error)
	// ChildrenOf returns the items whose ParentID equals parentID, in insertion order.
	// Listed items carry metadata only; Content is never populated.
	ChildrenOf(ctx context.Context, parentID string) ([]*Item, error)
}

// Store is the authoritative flat collection of vault items.
type Store interface {
	Reader
	// Insert adds a new item; it fails with a Conflict error when the id already exists.
	Insert(ctx context.Context, it *Item) error
	// RemoveAll deletes every listed item as one unit: either all are gone afterwards or none.
	RemoveAll(ctx context.Context, ids []string) error
	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)
}

// BlobStore holds file payloads outside the item store.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentKind string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
