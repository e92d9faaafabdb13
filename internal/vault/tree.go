package vault

import (
	"context"
	"errors"
)

// Navigator provides read-only derived views over a Reader.
type Navigator struct {
	r Reader
}

func NewNavigator(r Reader) *Navigator { return &Navigator{r: r} }

// folder returns the item with the given id if it is a folder.
func (n *Navigator) folder(ctx context.Context, id string) (*Item, error) {
	it, err := n.r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.IsFolder() {
		return nil, &Error{Code: CodeNotFound, Message: "folder " + id + " not found"}
	}
	return it, nil
}

// Breadcrumb walks ParentID links from folderID up to Root and returns the folders
// root-to-leaf. Root itself yields an empty path. A dangling link fails with NotFound;
// a revisited id fails with Conflict instead of looping.
func (n *Navigator) Breadcrumb(ctx context.Context, folderID string) ([]Crumb, error) {
	if folderID == RootID {
		return []Crumb{}, nil
	}
	var rev []Crumb
	seen := map[string]struct{}{}
	for id := folderID; id != RootID; {
		if _, ok := seen[id]; ok {
			return nil, Conflict("cycle detected at " + id)
		}
		seen[id] = struct{}{}
		it, err := n.folder(ctx, id)
		if err != nil {
			if id != folderID && errors.Is(err, ErrNotFound) {
				return nil, &Error{Code: CodeNotFound, Message: "broken parent link at " + id, Err: err}
			}
			return nil, err
		}
		rev = append(rev, Crumb{ID: it.ID, Name: it.Name})
		id = it.ParentID
	}
	out := make([]Crumb, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out, nil
}

// ResolvePath returns the breadcrumb as folder names, root-to-leaf.
func (n *Navigator) ResolvePath(ctx context.Context, folderID string) ([]string, error) {
	crumbs, err := n.Breadcrumb(ctx, folderID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(crumbs))
	for i, c := range crumbs {
		names[i] = c.Name
	}
	return names, nil
}

// DescendantsOf returns the ids of every item transitively contained in folderID.
// Order is unspecified.
func (n *Navigator) DescendantsOf(ctx context.Context, folderID string) ([]string, error) {
	items, err := n.Subtree(ctx, folderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}

// Subtree returns every item transitively contained in folderID (metadata only), using
// an explicit worklist of folders to expand rather than recursion.
func (n *Navigator) Subtree(ctx context.Context, folderID string) ([]*Item, error) {
	if folderID != RootID {
		if _, err := n.folder(ctx, folderID); err != nil {
			return nil, err
		}
	}
	var out []*Item
	seen := map[string]struct{}{folderID: {}}
	work := []string{folderID}
	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := work[len(work)-1]
		work = work[:len(work)-1]
		children, err := n.r.ChildrenOf(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
			if c.IsFolder() {
				work = append(work, c.ID)
			}
		}
	}
	return out, nil
}
