package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zewo/opsdash/internal/vault"
	"github.com/zewo/opsdash/internal/vault/repository"
	"github.com/zewo/opsdash/pkg/logger"
	"github.com/zewo/opsdash/pkg/metrics"
)

// Service defines the vault operations used by the handler layer.
type Service interface {
	CreateFolder(ctx context.Context, name, parentID, pin string) (*vault.Item, error)
	UploadFile(ctx context.Context, parentID, name, contentKind string, content []byte, sizeBytes int64) (*vault.Item, error)
	ListChildren(ctx context.Context, parentID string) ([]*vault.Item, error)
	OpenFolder(ctx context.Context, folderID, pin string) (*FolderView, error)
	DeleteItem(ctx context.Context, itemID, pin string, confirmNonEmpty bool) (DeleteOutcome, error)
	PreviewFile(ctx context.Context, itemID string) (*Preview, error)
	ResolvePath(ctx context.Context, folderID string) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// FolderView is what a granted OpenFolder returns.
type FolderView struct {
	Folder   *vault.Item   `json:"folder"`
	Path     []vault.Crumb `json:"path"`
	Children []*vault.Item `json:"children"`
}

// DeleteOutcome reports a delete. When ConfirmationRequired is set nothing was removed and
// DescendantCount tells the caller how many items the cascade would sweep up.
type DeleteOutcome struct {
	ConfirmationRequired bool `json:"confirmationRequired"`
	DescendantCount      int  `json:"descendantCount"`
	Removed              int  `json:"removed"`
}

// Preview is the decoded payload of a file. Content must be treated as read-only.
type Preview struct {
	Item        *vault.Item
	Content     []byte
	ContentKind string
	Viewer      vault.Viewer
}

// Options configures a vault service. Zero values select defaults.
type Options struct {
	Limits vault.Limits
	Guard  *vault.Guard
	Blobs  vault.BlobStore
	Clock  vault.Clock
	IDs    vault.IDGenerator
}

type vaultService struct {
	// mu serializes mutations against each other and against reads, so no read
	// observes a partially inserted or removed subtree.
	mu     sync.RWMutex
	store  vault.Store
	nav    *vault.Navigator
	guard  *vault.Guard
	limits vault.Limits
	blobs  vault.BlobStore
	clock  vault.Clock
	ids    vault.IDGenerator
}

// New returns a Service over the given item store.
func New(store vault.Store, opts Options) Service {
	s := &vaultService{
		store:  store,
		nav:    vault.NewNavigator(store),
		guard:  opts.Guard,
		limits: opts.Limits,
		blobs:  opts.Blobs,
		clock:  opts.Clock,
		ids:    opts.IDs,
	}
	if s.guard == nil {
		s.guard = vault.NewGuard(nil, 0)
	}
	if s.limits.MaxUploadBytes <= 0 {
		s.limits = vault.DefaultLimits()
	}
	if s.clock == nil {
		s.clock = vault.RealClock{}
	}
	if s.ids == nil {
		s.ids = vault.UUIDGenerator{}
	}
	return s
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(opts Options) Service {
	return New(repository.NewMemoryRepo(), opts)
}

func record(op string, err error) {
	result := "ok"
	if err != nil {
		if c := vault.CodeOf(err); c != "" {
			result = strings.ToLower(string(c))
		} else {
			result = "error"
		}
	}
	metrics.VaultOperations.WithLabelValues(op, result).Inc()
}

func normalizeParent(id string) string {
	if id == "" {
		return vault.RootID
	}
	return id
}

// checkParent verifies that id is Root or an existing folder. Callers hold s.mu.
func (s *vaultService) checkParent(ctx context.Context, id string) error {
	if id == vault.RootID {
		return nil
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsFolder() {
		return &vault.Error{Code: vault.CodeNotFound, Message: "parent " + id + " is not a folder"}
	}
	return nil
}

func (s *vaultService) CreateFolder(ctx context.Context, name, parentID, pin string) (it *vault.Item, err error) {
	defer func() { record("create_folder", err) }()
	name, err = vault.ValidateName(name)
	if err != nil {
		return nil, err
	}
	hash, err := s.guard.HashPIN(pin)
	if err != nil {
		return nil, err
	}
	parentID = normalizeParent(parentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkParent(ctx, parentID); err != nil {
		return nil, err
	}
	it = &vault.Item{
		ID:        s.ids.New(),
		Name:      name,
		Kind:      vault.KindFolder,
		ParentID:  parentID,
		CreatedAt: s.clock.Now(),
		PinHash:   hash,
	}
	if err := s.store.Insert(ctx, it); err != nil {
		return nil, err
	}
	logger.With("op", "create_folder").With("item", it.ID).Debugf("folder created (protected=%v)", it.Protected())
	return it, nil
}

func (s *vaultService) UploadFile(ctx context.Context, parentID, name, contentKind string, content []byte, sizeBytes int64) (it *vault.Item, err error) {
	defer func() { record("upload_file", err) }()
	name, err = vault.ValidateName(name)
	if err != nil {
		return nil, err
	}
	if err := s.limits.ValidateUpload(contentKind, sizeBytes, content); err != nil {
		return nil, err
	}
	parentID = normalizeParent(parentID)
	it = &vault.Item{
		ID:          s.ids.New(),
		Name:        name,
		Kind:        vault.KindFile,
		ParentID:    parentID,
		CreatedAt:   s.clock.Now(),
		SizeBytes:   sizeBytes,
		ContentKind: contentKind,
	}

	// the payload is written before taking the lock; it is unreachable until the
	// metadata insert succeeds
	if s.blobs != nil {
		it.ContentKey = "vault/" + it.ID
		if err := s.blobs.Put(ctx, it.ContentKey, content, it.ContentKind); err != nil {
			return nil, fmt.Errorf("store content: %w", err)
		}
	} else {
		it.Content = content
	}

	s.mu.Lock()
	err = s.checkParent(ctx, parentID)
	if err == nil {
		err = s.store.Insert(ctx, it)
	}
	s.mu.Unlock()
	if err != nil {
		if it.ContentKey != "" {
			s.dropBlob(ctx, it.ContentKey)
		}
		return nil, err
	}
	logger.With("op", "upload_file").With("item", it.ID).Debugf("stored %d bytes of %s", sizeBytes, it.ContentKind)
	return it, nil
}

func (s *vaultService) ListChildren(ctx context.Context, parentID string) ([]*vault.Item, error) {
	parentID = normalizeParent(parentID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkParent(ctx, parentID); err != nil {
		return nil, err
	}
	return s.store.ChildrenOf(ctx, parentID)
}

// authorize runs a PIN decision and converts a denial into an Auth error.
func (s *vaultService) authorize(ctx context.Context, it *vault.Item, pin string, check func(context.Context, *vault.Item, string) (vault.Decision, error)) error {
	if !it.Protected() {
		return nil
	}
	d, err := check(ctx, it, pin)
	switch {
	case errors.Is(err, vault.ErrThrottled):
		metrics.VaultPinChecks.WithLabelValues("throttled").Inc()
		logger.With("item", it.ID).Warnf("PIN attempts throttled")
		return err
	case err != nil:
		return err
	case d != vault.Granted:
		metrics.VaultPinChecks.WithLabelValues("denied").Inc()
		logger.With("item", it.ID).Warnf("PIN check denied")
		return &vault.Error{Code: vault.CodeAuth, Message: "invalid PIN"}
	}
	metrics.VaultPinChecks.WithLabelValues("granted").Inc()
	return nil
}

func (s *vaultService) OpenFolder(ctx context.Context, folderID, pin string) (view *FolderView, err error) {
	defer func() { record("open_folder", err) }()
	folderID = normalizeParent(folderID)

	if folderID == vault.RootID {
		s.mu.RLock()
		defer s.mu.RUnlock()
		children, err := s.store.ChildrenOf(ctx, vault.RootID)
		if err != nil {
			return nil, err
		}
		return &FolderView{Path: []vault.Crumb{}, Children: children}, nil
	}

	// the PIN decision runs on a snapshot, outside s.mu
	s.mu.RLock()
	folder, err := s.store.Get(ctx, folderID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if !folder.IsFolder() {
		return nil, &vault.Error{Code: vault.CodeNotFound, Message: "folder " + folderID + " not found"}
	}
	if err := s.authorize(ctx, folder, pin, s.guard.Open); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	folder, err = s.store.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	children, err := s.store.ChildrenOf(ctx, folderID)
	if err != nil {
		return nil, err
	}
	path, err := s.nav.Breadcrumb(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return &FolderView{Folder: folder, Path: path, Children: children}, nil
}

func (s *vaultService) DeleteItem(ctx context.Context, itemID, pin string, confirmNonEmpty bool) (out DeleteOutcome, err error) {
	defer func() { record("delete_item", err) }()
	var blobKeys []string

	s.mu.RLock()
	snap, err := s.store.Get(ctx, itemID)
	s.mu.RUnlock()
	if err != nil {
		return DeleteOutcome{}, err
	}
	if err := s.authorize(ctx, snap, pin, s.guard.AuthorizeDelete); err != nil {
		return DeleteOutcome{}, err
	}

	s.mu.Lock()
	err = func() error {
		// a concurrent delete may have won while the PIN was checked
		it, err := s.store.Get(ctx, itemID)
		if err != nil {
			return err
		}
		doomed := []*vault.Item{it}
		if it.IsFolder() {
			sub, err := s.nav.Subtree(ctx, it.ID)
			if err != nil {
				return err
			}
			out.DescendantCount = len(sub)
			if len(sub) > 0 && !confirmNonEmpty {
				out.ConfirmationRequired = true
				return nil
			}
			doomed = append(doomed, sub...)
		}
		ids := make([]string, len(doomed))
		for i, d := range doomed {
			ids[i] = d.ID
			if d.ContentKey != "" {
				blobKeys = append(blobKeys, d.ContentKey)
			}
		}
		if err := s.store.RemoveAll(ctx, ids); err != nil {
			return err
		}
		out.Removed = len(ids)
		return nil
	}()
	s.mu.Unlock()
	if err != nil {
		return DeleteOutcome{}, err
	}

	for _, k := range blobKeys {
		s.dropBlob(ctx, k)
	}
	if out.Removed > 0 {
		logger.With("op", "delete_item").With("item", itemID).Debugf("removed %d items", out.Removed)
	}
	return out, nil
}

func (s *vaultService) PreviewFile(ctx context.Context, itemID string) (p *Preview, err error) {
	defer func() { record("preview_file", err) }()
	s.mu.RLock()
	it, err := s.store.Get(ctx, itemID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if !it.IsFile() {
		return nil, &vault.Error{Code: vault.CodeNotFound, Message: "file " + itemID + " not found"}
	}
	content := it.Content
	if it.ContentKey != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("item %s references blob %s but no blob store is configured", it.ID, it.ContentKey)
		}
		content, err = s.blobs.Get(ctx, it.ContentKey)
		if err != nil {
			// a delete may have committed and dropped the blob since the metadata read
			s.mu.RLock()
			_, gone := s.store.Get(ctx, it.ID)
			s.mu.RUnlock()
			if errors.Is(gone, vault.ErrNotFound) {
				return nil, vault.NotFound(it.ID)
			}
			return nil, fmt.Errorf("load content: %w", err)
		}
	}
	if content == nil {
		content = []byte{}
	}
	return &Preview{Item: it, Content: content, ContentKind: it.ContentKind, Viewer: vault.ViewerFor(it.ContentKind)}, nil
}

func (s *vaultService) ResolvePath(ctx context.Context, folderID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nav.ResolvePath(ctx, normalizeParent(folderID))
}

func (s *vaultService) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Count(ctx)
}

func (s *vaultService) dropBlob(ctx context.Context, key string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		metrics.VaultBlobCleanupFailures.Inc()
		logger.With("blob", key).Errorf("blob cleanup failed: %v", err)
	}
}
