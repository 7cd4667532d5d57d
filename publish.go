package phyalf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/phyalf/alf"
	"github.com/hupe1980/phyalf/blobstore"
	"github.com/hupe1980/phyalf/codec"
	"github.com/hupe1980/phyalf/internal/compress"
	"github.com/hupe1980/phyalf/internal/fs"
	"github.com/hupe1980/phyalf/internal/hash"
	"github.com/hupe1980/phyalf/internal/resource"
)

// CurrentName is the blob holding the name of the latest manifest.
const CurrentName = "CURRENT"

// ManifestVersion is the manifest format written by Publish.
const ManifestVersion = 1

// ManifestEntry describes one published file.
type ManifestEntry struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	StoredSize  int64  `json:"stored_size"`
	CRC32C      uint32 `json:"crc32c"`
	Compression string `json:"compression"`
}

// Manifest lists the files of one Publish call.
type Manifest struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Codec     string          `json:"codec"`
	Entries   []ManifestEntry `json:"entries"`
}

// Lookup returns the entry for name.
func (m *Manifest) Lookup(name string) (ManifestEntry, bool) {
	i := slices.IndexFunc(m.Entries, func(e ManifestEntry) bool { return e.Name == name })
	if i < 0 {
		return ManifestEntry{}, false
	}
	return m.Entries[i], true
}

// TotalSize returns the uncompressed size of all entries.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

type publishOptions struct {
	concurrency      int64
	bytesPerSec      int64
	memoryLimit      int64
	compression      string
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	fsys             fs.FileSystem
	now              func() time.Time
}

// PublishOption configures Publish.
type PublishOption func(*publishOptions)

// WithConcurrency sets the number of parallel uploads. Values <= 0 select
// the default of 4.
func WithConcurrency(n int) PublishOption {
	return func(o *publishOptions) {
		o.concurrency = int64(n)
	}
}

// WithRateLimit caps upload throughput in bytes per second. 0 disables the
// limit.
func WithRateLimit(bytesPerSec int64) PublishOption {
	return func(o *publishOptions) {
		o.bytesPerSec = bytesPerSec
	}
}

// WithMemoryLimit caps the bytes of file contents held by in-flight uploads.
func WithMemoryLimit(bytes int64) PublishOption {
	return func(o *publishOptions) {
		o.memoryLimit = bytes
	}
}

// WithCompression frames every blob with "lz4" or "zstd". "none" or ""
// uploads files as is.
func WithCompression(name string) PublishOption {
	return func(o *publishOptions) {
		o.compression = name
	}
}

// WithManifestCodec selects the codec used to encode the manifest.
func WithManifestCodec(c codec.Codec) PublishOption {
	return func(o *publishOptions) {
		o.codec = c
	}
}

// WithPublishLogger configures structured logging. Pass nil to disable it.
func WithPublishLogger(logger *Logger) PublishOption {
	return func(o *publishOptions) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithPublishMetrics configures a metrics collector for uploads.
func WithPublishMetrics(mc MetricsCollector) PublishOption {
	return func(o *publishOptions) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithPublishFileSystem reads the source files through fsys.
func WithPublishFileSystem(fsys fs.FileSystem) PublishOption {
	return func(o *publishOptions) {
		o.fsys = fsys
	}
}

// WithClock replaces time.Now for manifest timestamps and names.
func WithClock(now func() time.Time) PublishOption {
	return func(o *publishOptions) {
		o.now = now
	}
}

// Publish uploads params.py and every ALF object file in dir to store, then
// writes a manifest and points CURRENT at it. CURRENT is only written after
// every blob and the manifest are stored.
func Publish(ctx context.Context, dir string, store blobstore.BlobStore, optFns ...PublishOption) (*Manifest, error) {
	o := publishOptions{
		concurrency:      resource.DefaultMaxUploads,
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fsys:             fs.Default,
		now:              time.Now,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	ct, err := compress.ParseType(o.compression)
	if err != nil {
		return nil, err
	}
	names, err := publishable(o.fsys, dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("phyalf: nothing to publish in %s", dir)
	}

	created := o.now().UTC()
	manifestName := fmt.Sprintf("manifest-%d.json", created.UnixNano())
	if ok, err := blobstore.Exists(ctx, store, manifestName); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("publish %s: %w", manifestName, blobstore.ErrExists)
	}

	rc := resource.NewController(resource.Config{
		MaxUploads:       o.concurrency,
		MemoryLimitBytes: o.memoryLimit,
		BytesPerSec:      o.bytesPerSec,
	})
	logger := o.logger.WithDir(dir)

	entries := make([]ManifestEntry, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		if err := rc.AcquireUpload(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer rc.ReleaseUpload()

			start := time.Now()
			entry, err := upload(gctx, rc, o.fsys, store, filepath.Join(dir, name), name, ct)
			o.metricsCollector.RecordUpload(name, entry.StoredSize, time.Since(start), err)
			logger.LogPublish(gctx, name, entry.StoredSize, err)
			if err != nil {
				return fmt.Errorf("publish %s: %w", name, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:   ManifestVersion,
		CreatedAt: created,
		Codec:     o.codec.Name(),
		Entries:   entries,
	}
	data, err := o.codec.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := blobstore.PutNew(ctx, store, manifestName, data); err != nil {
		return nil, fmt.Errorf("publish %s: %w", manifestName, err)
	}
	if err := store.Put(ctx, CurrentName, []byte(manifestName)); err != nil {
		return nil, fmt.Errorf("publish %s: %w", CurrentName, err)
	}
	logger.InfoContext(ctx, "published",
		"manifest", manifestName,
		"files", len(entries),
		"bytes", m.TotalSize(),
	)
	return m, nil
}

func publishable(fsys fs.FileSystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name := e.Name(); name == "params.py" || alf.IsObjectFile(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func upload(ctx context.Context, rc *resource.Controller, fsys fs.FileSystem, store blobstore.BlobStore, path, name string, ct compress.Type) (ManifestEntry, error) {
	fi, err := fsys.Stat(path)
	if err != nil {
		return ManifestEntry{}, err
	}
	reserved := fi.Size()
	if err := rc.AcquireMemory(ctx, reserved); err != nil {
		return ManifestEntry{}, err
	}
	defer rc.ReleaseMemory(reserved)

	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return ManifestEntry{}, err
	}
	stored, err := compress.Encode(data, ct)
	if err != nil {
		return ManifestEntry{}, err
	}
	entry := ManifestEntry{
		Name:        name,
		Size:        int64(len(data)),
		StoredSize:  int64(len(stored)),
		CRC32C:      hash.CRC32C(data),
		Compression: ct.String(),
	}
	if err := rc.AcquireIO(ctx, len(stored)); err != nil {
		return entry, err
	}
	return entry, store.Put(ctx, name, stored)
}

// ReadManifest loads the manifest CURRENT points to.
func ReadManifest(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	current, err := blobstore.ReadAll(ctx, store, CurrentName)
	if err != nil {
		return nil, err
	}
	name := string(bytes.TrimSpace(current))
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", name, m.Version)
	}
	return &m, nil
}

// Fetch downloads the blob of entry and returns its original contents. A
// blob that does not decode to the recorded size and CRC32C fails with
// ErrChecksum.
func Fetch(ctx context.Context, store blobstore.BlobStore, entry ManifestEntry) ([]byte, error) {
	ct, err := compress.ParseType(entry.Compression)
	if err != nil {
		return nil, err
	}
	stored, err := blobstore.ReadAll(ctx, store, entry.Name)
	if err != nil {
		return nil, err
	}
	if int64(len(stored)) != entry.StoredSize {
		return nil, fmt.Errorf("%w: %s: stored %d bytes, manifest says %d", ErrChecksum, entry.Name, len(stored), entry.StoredSize)
	}
	data, err := compress.Decode(stored, ct)
	if err != nil {
		if errors.Is(err, compress.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %s: %w", ErrChecksum, entry.Name, err)
		}
		return nil, err
	}
	if int64(len(data)) != entry.Size {
		return nil, fmt.Errorf("%w: %s: %d bytes, manifest says %d", ErrChecksum, entry.Name, len(data), entry.Size)
	}
	if sum := hash.CRC32C(data); sum != entry.CRC32C {
		return nil, fmt.Errorf("%w: %s: crc32c %08x, manifest says %08x", ErrChecksum, entry.Name, sum, entry.CRC32C)
	}
	return data, nil
}

// Download fetches every entry of the current manifest into dir.
func Download(ctx context.Context, store blobstore.BlobStore, dir string, fsys fs.FileSystem) (*Manifest, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	m, err := ReadManifest(ctx, store)
	if err != nil {
		return nil, err
	}
	for _, e := range m.Entries {
		if !filepath.IsLocal(filepath.FromSlash(e.Name)) {
			return nil, fmt.Errorf("%w: manifest entry %q escapes %s", ErrInvalidInput, e.Name, dir)
		}
		data, err := Fetch(ctx, store, e)
		if err != nil {
			return nil, err
		}
		if err := fs.WriteFile(fsys, filepath.Join(dir, filepath.FromSlash(e.Name)), data); err != nil {
			return nil, err
		}
	}
	return m, nil
}
