package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/manifestly/manifestly-go/internal/config"
	"github.com/manifestly/manifestly-go/internal/digest"
	"github.com/manifestly/manifestly-go/internal/store"
	"github.com/manifestly/manifestly-go/internal/utils"
)

// ErrNoBackingFile is returned when an operation needs a backing file
// but the manifest was generated without one.
var ErrNoBackingFile = errors.New("manifest has no backing file")

// Manifest maps slash-separated relative paths to content digests.
// It is backed by a JSON file and rooted at a directory, usually the
// parent of the backing file. Backing file and content tree may live
// in different stores.
type Manifest struct {
	entries      map[string]string
	backing      string // location within backingStore, "" if unbacked
	backingStore store.Store
	root         string // location within rootStore
	rootStore    store.Store
	resolver     *store.Resolver
	ignore       *IgnoreList
	settings     config.Settings
	cache        *digest.Cache
	status       LoadStatus
}

// LoadStatus reports how the last load dealt with the backing file.
type LoadStatus struct {
	// Created is set when the backing file was absent and an empty
	// manifest has been written in its place.
	Created bool
	// Recovered is set when the backing content could not be decoded
	// and was treated as an empty manifest.
	Recovered bool
	// Cause holds the decode error behind Recovered.
	Cause error
}

type options struct {
	store    store.Store
	resolver *store.Resolver
	settings config.Settings
	root     string
	ignore   *IgnoreList
	entries  map[string]string
	output   string
	cache    *digest.Cache
}

type Option func(*options)

// WithStore pins all paths to a single store, bypassing location
// resolution. Mostly useful for tests and embedding.
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithResolver supplies the resolver used to map locations to stores.
func WithResolver(r *store.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithSettings overrides the default settings.
func WithSettings(s config.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithRoot sets the content root explicitly instead of deriving it
// from the backing file location.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithIgnore supplies a prebuilt ignore list instead of loading the
// root's ignore file.
func WithIgnore(il *IgnoreList) Option {
	return func(o *options) { o.ignore = il }
}

// WithEntries seeds the manifest mapping directly, skipping the load.
func WithEntries(entries map[string]string) Option {
	return func(o *options) { o.entries = entries }
}

// WithOutput makes Generate write the manifest to the given location.
func WithOutput(file string) Option {
	return func(o *options) { o.output = file }
}

// WithDigestCache memoizes digests of unchanged files across runs.
// Only effective for local roots.
func WithDigestCache(c *digest.Cache) Option {
	return func(o *options) { o.cache = c }
}

func buildOptions(opts []Option) *options {
	o := &options{settings: config.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// resolveLocation maps a location to its store and normalized path.
// Local paths are made absolute, matching how a manifest's root stays
// valid when the working directory changes.
func resolveLocation(ctx context.Context, location string, o *options) (store.Store, string, error) {
	if o.store != nil {
		return o.store, filepath.ToSlash(location), nil
	}
	if o.resolver == nil {
		o.resolver = store.NewResolver(store.S3Options{})
	}
	st, p, err := o.resolver.Resolve(ctx, location)
	if err != nil {
		return nil, "", err
	}
	if _, ok := st.(*store.Local); ok {
		abs, err := utils.ResolvePath(p)
		if err != nil {
			return nil, "", err
		}
		p = filepath.ToSlash(abs)
	}
	return st, p, nil
}

// Open loads the manifest at location. The location may be a backing
// file or a directory; for a directory the configured manifest name
// is appended and the directory becomes the root. A missing backing
// file is initialized empty, unreadable content is treated as empty
// (see LoadStatus).
func Open(ctx context.Context, location string, opts ...Option) (*Manifest, error) {
	o := buildOptions(opts)

	st, backing, err := resolveLocation(ctx, location, o)
	if err != nil {
		return nil, err
	}

	isDir, err := st.IsDir(ctx, backing)
	if err != nil {
		return nil, err
	}

	root := o.root
	rootStore := st
	if isDir {
		dir := strings.TrimSuffix(backing, "/")
		if root == "" {
			root = dir
		}
		backing = joinPath(dir, o.settings.ManifestName)
	} else if root == "" {
		root = ResolveRoot(backing)
	}
	if o.root != "" {
		rootStore, root, err = resolveLocation(ctx, o.root, o)
		if err != nil {
			return nil, err
		}
		root = strings.TrimSuffix(root, "/")
	}

	m := &Manifest{
		backing:      backing,
		backingStore: st,
		root:         root,
		rootStore:    rootStore,
		resolver:     o.resolver,
		settings:     o.settings,
		cache:        o.cache,
	}

	if o.entries != nil {
		m.entries = o.entries
	} else {
		status, err := m.Load(ctx)
		if err != nil {
			return nil, err
		}
		m.status = status
	}

	if o.ignore != nil {
		m.ignore = o.ignore
	} else {
		il, err := LoadIgnore(ctx, rootStore, joinPath(root, o.settings.IgnoreName))
		if err != nil {
			return nil, err
		}
		m.ignore = il
	}
	m.ignore.Add(o.settings.ManifestName)
	m.ignore.Add(o.settings.IgnoreName)
	m.ignore.Add(path.Base(backing))

	return m, nil
}

// Generate walks dir and builds a fresh manifest of its files. Keys
// are relative to the root (dir unless WithRoot says otherwise) and
// filtered through the root's ignore file. With WithOutput the
// mapping is also written to the given location.
func Generate(ctx context.Context, dir string, opts ...Option) (*Manifest, error) {
	o := buildOptions(opts)

	rootStore, dirPath, err := resolveLocation(ctx, dir, o)
	if err != nil {
		return nil, err
	}
	dirPath = strings.TrimSuffix(dirPath, "/")

	root := o.root
	if root == "" {
		root = dirPath
	}

	ignore := o.ignore
	if ignore == nil {
		ignore, err = LoadIgnore(ctx, rootStore, joinPath(dirPath, o.settings.IgnoreName))
		if err != nil {
			return nil, err
		}
	}
	ignore.Add(o.settings.ManifestName)
	ignore.Add(o.settings.IgnoreName)

	backing := ""
	backingStore := rootStore
	if o.output != "" {
		backingStore, backing, err = resolveLocation(ctx, o.output, o)
		if err != nil {
			return nil, err
		}
		ignore.Add(path.Base(backing))
	}

	m := &Manifest{
		backing:      backing,
		backingStore: backingStore,
		root:         root,
		rootStore:    rootStore,
		resolver:     o.resolver,
		ignore:       ignore,
		settings:     o.settings,
		cache:        o.cache,
	}

	entries, err := m.walk(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	m.entries = entries

	if m.backing != "" {
		if err := m.Save(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// walk hashes every non-ignored file under dir, keyed relative to the
// manifest root.
func (m *Manifest) walk(ctx context.Context, dir string) (map[string]string, error) {
	files, err := m.rootStore.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(files))
	for _, rel := range files {
		full := joinPath(dir, rel)
		key := rel
		if m.root != dir {
			key = strings.TrimLeft(strings.TrimPrefix(full, m.root), "/")
		}
		if m.ignore.Match(key) {
			continue
		}
		d, err := m.hashPath(ctx, full)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", full, err)
		}
		entries[key] = d
	}
	return entries, nil
}

func (m *Manifest) hashPath(ctx context.Context, full string) (string, error) {
	if m.cache != nil {
		if _, ok := m.rootStore.(*store.Local); ok {
			return m.cache.File(full, m.settings.HashAlgorithm, m.settings.ChunkSize)
		}
	}
	r, err := m.rootStore.Open(ctx, full)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return digest.Stream(r, m.settings.HashAlgorithm, m.settings.ChunkSize)
}

// Load reads the backing file into the manifest. It is total over
// file state: a missing file initializes an empty manifest on disk,
// empty or undecodable content yields an empty manifest in memory.
// Only real store errors surface.
func (m *Manifest) Load(ctx context.Context) (LoadStatus, error) {
	var status LoadStatus
	if m.backing == "" {
		return status, ErrNoBackingFile
	}

	r, err := m.backingStore.Open(ctx, m.backing)
	if err != nil {
		if errors.Is(err, store.ErrNotExist) {
			m.entries = map[string]string{}
			status.Created = true
			if err := m.Save(ctx); err != nil {
				return status, fmt.Errorf("initialize manifest: %w", err)
			}
			return status, nil
		}
		return status, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return status, fmt.Errorf("read manifest: %w", err)
	}
	if len(data) == 0 {
		m.entries = map[string]string{}
		return status, nil
	}

	entries := map[string]string{}
	if err := jsonUnmarshal(data, &entries); err != nil {
		m.entries = map[string]string{}
		status.Recovered = true
		status.Cause = err
		return status, nil
	}
	if entries == nil {
		entries = map[string]string{}
	}
	m.entries = entries
	return status, nil
}

// Save writes the manifest to its backing file as sorted, 2-space
// indented JSON. Parent directories are created as needed.
func (m *Manifest) Save(ctx context.Context) error {
	if m.backing == "" {
		return ErrNoBackingFile
	}

	entries := m.entries
	if entries == nil {
		entries = map[string]string{}
	}
	data, err := jsonMarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	w, err := m.backingStore.Create(ctx, m.backing)
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("save manifest: %w", err)
	}
	return w.Close()
}

// Refresh regenerates the manifest from the root directory and, when
// backed, persists it.
func (m *Manifest) Refresh(ctx context.Context) error {
	dir := m.root
	if dir == "" && m.backing != "" {
		dir = ResolveRoot(m.backing)
	}

	entries, err := m.walk(ctx, dir)
	if err != nil {
		return err
	}
	m.entries = entries

	if m.backing != "" {
		return m.Save(ctx)
	}
	return nil
}

// Changed reloads the backing file and compares it against the tree
// under the root. Removed entries carry their recorded digest, added
// and changed ones the digest found on disk.
func (m *Manifest) Changed(ctx context.Context) (*DiffResult, error) {
	if m.backing != "" {
		if _, err := m.Load(ctx); err != nil {
			return nil, err
		}
	}

	result := NewDiffResult()

	for file, oldDigest := range m.entries {
		full := joinPath(m.root, file)
		exists, err := m.rootStore.Exists(ctx, full)
		if err != nil {
			return nil, err
		}
		if !exists {
			result.Removed[file] = oldDigest
			continue
		}
		newDigest, err := m.hashPath(ctx, full)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", full, err)
		}
		if newDigest != oldDigest {
			result.Changed[file] = newDigest
		}
	}

	files, err := m.rootStore.List(ctx, m.root)
	if err != nil {
		return nil, err
	}
	for _, rel := range files {
		if m.ignore.Match(rel) {
			continue
		}
		if _, tracked := m.entries[rel]; tracked {
			continue
		}
		d, err := m.hashPath(ctx, joinPath(m.root, rel))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", rel, err)
		}
		result.Added[rel] = d
	}

	return result, nil
}

// Equal reports whether both manifests hold the same mapping. Roots
// and backing files are not compared.
func (m *Manifest) Equal(other *Manifest) bool {
	if other == nil {
		return false
	}
	return maps.Equal(m.entries, other.entries)
}

// Entries returns a copy of the path to digest mapping.
func (m *Manifest) Entries() map[string]string {
	return maps.Clone(m.entries)
}

// Digest returns the recorded digest for a relative path.
func (m *Manifest) Digest(relPath string) (string, bool) {
	d, ok := m.entries[relPath]
	return d, ok
}

// Paths returns the recorded paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of recorded files.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Root returns the content root location.
func (m *Manifest) Root() string {
	return m.root
}

// Path returns the backing file location, "" if unbacked.
func (m *Manifest) Path() string {
	return m.backing
}

// Ignore returns the manifest's ignore list.
func (m *Manifest) Ignore() *IgnoreList {
	return m.ignore
}

// Status reports how the last load dealt with the backing file.
func (m *Manifest) Status() LoadStatus {
	return m.status
}

// ResolveRoot returns the directory that backs a manifest location:
// its parent, with a trailing separator stripped first.
func ResolveRoot(location string) string {
	p := strings.TrimSuffix(filepath.ToSlash(location), "/")
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

func (m *Manifest) resolveOut(ctx context.Context, out string) (store.Store, string, error) {
	if m.resolver != nil {
		return m.resolver.Resolve(ctx, out)
	}
	return m.backingStore, filepath.ToSlash(out), nil
}

func joinPath(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return path.Join(dir, rel)
}

func sortedKeys(ms ...map[string]string) []string {
	var keys []string
	for _, m := range ms {
		for k := range m {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
