// Package vfs implements the llmfs go-fuse node tree: the Root handler
// and the four subtree directories (models, config, conversations,
// semantic_search), dispatching on go-fuse's own Inode-tree Lookup
// mechanism rather than a hand-rolled parallel dispatch map.
package vfs

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"llmfs/config"
	"llmfs/llmapi"
	"llmfs/searchapi"
	"llmfs/session"
	"llmfs/vfs/diag"
	"llmfs/vpath"
)

const (
	// cacheTTLStructure bounds kernel-side caching of directory
	// structure and file identity — short because every subtree's
	// children can change as sessions/indexes are created and removed.
	cacheTTLStructure = time.Second

	// Advisory mode bits, one constant per path's access pattern.
	modeReadWrite  = 0666
	modeReadWriteF = 0644
	modeReadOnly   = 0444
)

// FS is the filesystem root: "/" with its four fixed subdirectories.
type FS struct {
	fs.Inode

	startTime time.Time
	diag      *diag.Tracker

	configStore  *config.Store
	sessionStore *session.Store
	llm          llmapi.Client
	search       searchapi.Client

	modelCache  *responseCache
	searchCache *responseCache
}

var _ = (fs.NodeOnAdder)((*FS)(nil))
var _ = (fs.NodeGetattrer)((*FS)(nil))

// NewFS constructs the root filesystem node. The returned *FS is meant
// to be passed directly to fs.Mount.
func NewFS(configStore *config.Store, sessionStore *session.Store, llm llmapi.Client, search searchapi.Client) *FS {
	return &FS{
		startTime:    time.Now(),
		diag:         diag.NewTracker(),
		configStore:  configStore,
		sessionStore: sessionStore,
		llm:          llm,
		search:       search,
		modelCache:   newResponseCache(),
		searchCache:  newResponseCache(),
	}
}

// Diag exposes the filesystem's in-flight operation tracker, for wiring
// into an optional diagnostics HTTP server.
func (f *FS) Diag() *diag.Tracker { return f.diag }

// OnAdd builds the fixed, never-mutated subtree once at mount time —
// the Inode tree itself is the dispatch map, realised as the tree
// go-fuse already walks on every Lookup.
func (f *FS) OnAdd(ctx context.Context) {
	root := f.EmbeddedInode()

	root.AddChild("models", root.NewPersistentInode(ctx, &ModelsDirNode{fs: f}, fs.StableAttr{Mode: fuse.S_IFDIR}), false)
	root.AddChild("config", root.NewPersistentInode(ctx, &ConfigDirNode{fs: f}, fs.StableAttr{Mode: fuse.S_IFDIR}), false)
	root.AddChild("conversations", root.NewPersistentInode(ctx, &ConversationsDirNode{fs: f}, fs.StableAttr{Mode: fuse.S_IFDIR}), false)
	root.AddChild("semantic_search", root.NewPersistentInode(ctx, &SearchDirNode{fs: f}, fs.StableAttr{Mode: fuse.S_IFDIR}), false)
}

// Getattr reports "/" as a plain directory.
func (f *FS) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, f.startTime)
	return 0
}

// responseCache is a last-write-wins string cache keyed by name, used
// for both the per-model last response and the per-index last query
// result. Both instantiations share this type since their semantics
// (lazily created, never evicted, one lock) are identical.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newResponseCache() *responseCache {
	return &responseCache{entries: make(map[string]string)}
}

func (c *responseCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *responseCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[key] = value
}

// trackOp records an in-flight operation, labelled by the parsed
// virtual path rather than the Go node type, so /diag output reads in
// terms of the path schema a client sees.
func (f *FS) trackOp(method, path string) *diag.OpHandle {
	p := vpath.Parse(path)
	detail := p.Name
	if p.Doc != "" {
		detail = p.Name + "/" + p.Doc
	}
	return f.diag.Track(p.Tag.String(), method, detail)
}

// setEntryTimeout caps how long the kernel trusts a Lookup result.
func setEntryTimeout(out *fuse.EntryOut, d time.Duration) {
	out.SetEntryTimeout(d)
	out.SetAttrTimeout(d)
}

// setTimestamps sets Atime, Mtime, and Ctime on an Attr to the given
// time.
func setTimestamps(attr *fuse.Attr, t time.Time) {
	sec := uint64(t.Unix())
	nsec := uint32(t.Nanosecond())
	attr.Atime = sec
	attr.Atimensec = nsec
	attr.Mtime = sec
	attr.Mtimensec = nsec
	attr.Ctime = sec
	attr.Ctimensec = nsec
}

// readAt returns the slice of data starting at off, bounded by the
// caller's destination buffer size. Past-the-end offsets read as EOF,
// never as an error.
func readAt(data, dest []byte, off int64) []byte {
	if off >= int64(len(data)) {
		return []byte{}
	}
	end := int64(len(data))
	if int64(len(dest)) < end-off {
		end = off + int64(len(dest))
	}
	return data[off:end]
}
