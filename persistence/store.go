package persistence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/hyperhist/blobstore"
	"github.com/hupe1980/hyperhist/codec"
	"github.com/hupe1980/hyperhist/internal/cache"
	"github.com/hupe1980/hyperhist/resource"
)

const (
	// CurrentFile names the blob that holds the active generation of a histogram.
	CurrentFile = "CURRENT"

	tableExt = ".tbl"

	// DefaultPageRows is the number of rows per table page.
	DefaultPageRows = 1024

	// DefaultCacheBytes bounds the decompressed page cache.
	DefaultCacheBytes = 64 << 20
)

// Options configures a Store.
type Options struct {
	// Compression applies to tables written by this store. Readers detect
	// the compression of each table from its header.
	Compression CompressionType

	// PageRows is the number of rows per page.
	PageRows int

	// CacheBytes bounds the page cache. Zero disables caching.
	CacheBytes int64

	// Codec encodes table metadata. Its name is recorded in every table.
	Codec codec.Codec

	// ResourceController limits page cache memory and table IO. Optional.
	ResourceController *resource.Controller
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionNone,
		PageRows:    DefaultPageRows,
		CacheBytes:  DefaultCacheBytes,
		Codec:       codec.Default,
	}
}

// WithCompression sets the compression of written tables.
func WithCompression(c CompressionType) func(*Options) {
	return func(o *Options) { o.Compression = c }
}

// WithPageRows sets the number of rows per page.
func WithPageRows(n int) func(*Options) {
	return func(o *Options) { o.PageRows = n }
}

// WithCacheBytes sets the page cache capacity.
func WithCacheBytes(n int64) func(*Options) {
	return func(o *Options) { o.CacheBytes = n }
}

// WithCodec sets the metadata codec.
func WithCodec(c codec.Codec) func(*Options) {
	return func(o *Options) { o.Codec = c }
}

// WithResourceController shares a resource controller with the store.
func WithResourceController(rc *resource.Controller) func(*Options) {
	return func(o *Options) { o.ResourceController = rc }
}

// Store manages named histograms in a blob store. Each name has a CURRENT
// pointer and one directory per generation:
//
//	<name>/CURRENT
//	<name>/<generation>/<table>.tbl
//
// A Store is safe for concurrent use.
type Store struct {
	blobs blobstore.BlobStore
	opts  Options
	cache *cache.LRUBlockCache

	mu     sync.Mutex
	leases map[string]string // name -> owner
}

// New creates a store on top of blobs.
func New(blobs blobstore.BlobStore, optFns ...func(*Options)) *Store {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PageRows <= 0 {
		opts.PageRows = DefaultPageRows
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	s := &Store{
		blobs:  blobs,
		opts:   opts,
		leases: make(map[string]string),
	}
	if opts.CacheBytes > 0 {
		s.cache = cache.NewLRUBlockCache(opts.CacheBytes, opts.ResourceController)
	}
	return s
}

// Blobs returns the underlying blob store.
func (s *Store) Blobs() blobstore.BlobStore { return s.blobs }

// Options returns the effective options.
func (s *Store) Options() Options { return s.opts }

// CacheStats reports page cache hits and misses.
func (s *Store) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

// Close releases the page cache.
func (s *Store) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// Lease grants exclusive write access to a name within this process.
type Lease struct {
	store *Store
	name  string
	owner string

	once sync.Once
}

// Name returns the leased histogram name.
func (l *Lease) Name() string { return l.name }

// Owner returns the unique id of the lease holder.
func (l *Lease) Owner() string { return l.owner }

// Release gives up the lease. Releasing twice is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.store.mu.Lock()
		defer l.store.mu.Unlock()
		if l.store.leases[l.name] == l.owner {
			delete(l.store.leases, l.name)
		}
	})
}

func (l *Lease) heldBy(s *Store) bool {
	if l == nil || l.store != s {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leases[l.name] == l.owner
}

// Acquire takes the exclusive writer lease on name. A second caller gets
// ErrLocked until the first releases it.
func (s *Store) Acquire(name string) (*Lease, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.leases[name]; held {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	owner := uuid.NewString()
	s.leases[name] = owner
	return &Lease{store: s, name: name, owner: owner}, nil
}

// Exists reports whether name has a committed generation.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.current(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// OpenForRead opens the committed generation of name.
func (s *Store) OpenForRead(ctx context.Context, name string) (*Reader, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	gen, err := s.current(ctx, name)
	if err != nil {
		return nil, err
	}
	blobs, err := s.blobs.List(ctx, generationPrefix(name, gen))
	if err != nil {
		return nil, fmt.Errorf("persistence: list %s: %w", name, err)
	}

	tables := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if t, ok := strings.CutSuffix(path.Base(b), tableExt); ok {
			tables = append(tables, t)
		}
	}
	return &Reader{store: s, name: name, gen: gen, tables: tables}, nil
}

// OpenForWrite acquires the lease on name and starts a new generation.
// The lease is released when the writer is committed, aborted or closed.
func (s *Store) OpenForWrite(ctx context.Context, name string) (*Writer, error) {
	lease, err := s.Acquire(name)
	if err != nil {
		return nil, err
	}
	w, err := s.NewWriter(ctx, lease)
	if err != nil {
		lease.Release()
		return nil, err
	}
	w.ownsLease = true
	return w, nil
}

// NewWriter starts a new generation under an existing lease. The lease
// stays held after the writer finishes.
func (s *Store) NewWriter(ctx context.Context, lease *Lease) (*Writer, error) {
	if lease == nil || lease.store != s {
		return nil, fmt.Errorf("persistence: lease does not belong to this store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Writer{
		store: s,
		lease: lease,
		name:  lease.name,
		gen:   uuid.NewString(),
	}, nil
}

// RowCount returns the number of rows of table in the committed generation
// of name.
func (s *Store) RowCount(ctx context.Context, name, table string) (int, error) {
	r, err := s.OpenForRead(ctx, name)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	t, err := r.OpenTable(ctx, table)
	if err != nil {
		return 0, err
	}
	defer t.Close()
	return t.Rows(), nil
}

// Prune deletes every generation of the leased name except the committed
// one. The lease must stay held for the whole call.
func (s *Store) Prune(ctx context.Context, lease *Lease) (int, error) {
	if !lease.heldBy(s) {
		return 0, ErrLeaseNotHeld
	}
	name := lease.name
	gen, err := s.current(ctx, name)
	if err != nil {
		return 0, err
	}
	blobs, err := s.blobs.List(ctx, name+"/")
	if err != nil {
		return 0, err
	}

	keep := generationPrefix(name, gen)
	current := path.Join(name, CurrentFile)
	deleted := 0
	for _, b := range blobs {
		if b == current || strings.HasPrefix(b, keep) {
			continue
		}
		if err := s.blobs.Delete(ctx, b); err != nil {
			return deleted, fmt.Errorf("persistence: prune %s: %w", b, err)
		}
		s.invalidate(b)
		deleted++
	}
	return deleted, nil
}

// Remove deletes every blob of name, including CURRENT.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	blobs, err := s.blobs.List(ctx, name+"/")
	if err != nil {
		return err
	}
	// CURRENT goes first so a concurrent reader never sees a dangling
	// pointer. Some stores keep pointers outside List, so it is deleted
	// unconditionally.
	current := path.Join(name, CurrentFile)
	if err := s.blobs.Delete(ctx, current); err != nil {
		return err
	}
	for _, b := range blobs {
		if b == current {
			continue
		}
		if err := s.blobs.Delete(ctx, b); err != nil {
			return err
		}
		s.invalidate(b)
	}
	return nil
}

// Generation returns the committed generation id of name.
func (s *Store) Generation(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return s.current(ctx, name)
}

func (s *Store) current(ctx context.Context, name string) (string, error) {
	b, err := s.blobs.Open(ctx, path.Join(name, CurrentFile))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return "", fmt.Errorf("persistence: read %s/%s: %w", name, CurrentFile, err)
	}
	gen := strings.TrimSpace(string(data))
	if gen == "" || strings.Contains(gen, "/") {
		return "", fmt.Errorf("%w: bad generation %q in %s/%s", ErrCorrupt, gen, name, CurrentFile)
	}
	return gen, nil
}

func (s *Store) invalidate(blob string) {
	if s.cache != nil {
		cache.InvalidatePath(s.cache, blob)
	}
}

func generationPrefix(name, gen string) string {
	return path.Join(name, gen) + "/"
}

func tablePath(name, gen, table string) string {
	return path.Join(name, gen, table+tableExt)
}

func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." || part == CurrentFile {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

func validateTable(table string) error {
	if table == "" || strings.ContainsAny(table, "/\\") {
		return fmt.Errorf("%w: table %q", ErrInvalidName, table)
	}
	return nil
}
