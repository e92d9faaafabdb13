package vault

import "time"

// RootID is the sentinel parent of top-level items. No Item ever carries it as its own ID.
const RootID = "root"

// Kind distinguishes folders from files.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Item is a single node of the vault tree. Parent/child relations are expressed only
// through ParentID back-references into the flat item store.
type Item struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Kind      Kind      `json:"kind" bson:"kind"`
	ParentID  string    `json:"parentId" bson:"parentId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	// Seq is the insertion sequence assigned by the store; ChildrenOf orders by it.
	Seq int64 `json:"-" bson:"seq"`

	// file-only
	SizeBytes   int64  `json:"sizeBytes,omitempty" bson:"sizeBytes,omitempty"`
	ContentKind string `json:"contentKind,omitempty" bson:"contentKind,omitempty"`
	Content     []byte `json:"-" bson:"content,omitempty"`
	// ContentKey is set instead of Content when the payload lives in a BlobStore.
	ContentKey string `json:"-" bson:"contentKey,omitempty"`

	// folder-only; bcrypt hash of the 4-digit PIN, empty when unprotected
	PinHash string `json:"-" bson:"pinHash,omitempty"`
}

func (it *Item) IsFolder() bool { return it.Kind == KindFolder }

func (it *Item) IsFile() bool { return it.Kind == KindFile }

// Protected reports whether the item is a PIN-gated folder.
func (it *Item) Protected() bool { return it.Kind == KindFolder && it.PinHash != "" }

// Clone returns a copy that does not share the content slice.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	if it.Content != nil {
		c.Content = append([]byte(nil), it.Content...)
	}
	return &c
}

// Crumb is one element of a breadcrumb path.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Viewer is the preview hint derived from a content kind.
type Viewer string

const (
	ViewerImage  Viewer = "image"
	ViewerText   Viewer = "text"
	ViewerBinary Viewer = "binary"
)
