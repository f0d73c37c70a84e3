package vfs

import (
	"context"
	"log"
	"sort"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"llmfs/session"
)

// ModelsDirNode is "/models": a directory listing "default" plus every
// model identifier the LLM adapter currently knows about.
type ModelsDirNode struct {
	fs.Inode
	fs *FS
}

var _ = (fs.NodeLookuper)((*ModelsDirNode)(nil))
var _ = (fs.NodeReaddirer)((*ModelsDirNode)(nil))
var _ = (fs.NodeGetattrer)((*ModelsDirNode)(nil))

func (m *ModelsDirNode) isKnown(ctx context.Context, name string) bool {
	if name == "default" {
		return true
	}
	names, err := m.fs.llm.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (m *ModelsDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !m.isKnown(ctx, name) {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	return m.NewInode(ctx, &ModelFileNode{fs: m.fs, name: name}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

func (m *ModelsDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, err := m.fs.llm.ListModels(ctx)
	if err != nil {
		return nil, syscall.EIO
	}
	sort.Strings(names)
	entries := make([]fuse.DirEntry, 0, len(names)+1)
	entries = append(entries, fuse.DirEntry{Name: "default", Mode: fuse.S_IFREG})
	for _, n := range names {
		entries = append(entries, fuse.DirEntry{Name: n, Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

func (m *ModelsDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, m.fs.startTime)
	return 0
}

// ModelFileNode is "/models/<name>": read returns the model's cached
// last response; write issues a stateless LLM query and archives it
// into a freshly minted session.
type ModelFileNode struct {
	fs.Inode
	fs   *FS
	name string
}

var _ = (fs.NodeGetattrer)((*ModelFileNode)(nil))
var _ = (fs.NodeSetattrer)((*ModelFileNode)(nil))
var _ = (fs.NodeOpener)((*ModelFileNode)(nil))
var _ = (fs.NodeReader)((*ModelFileNode)(nil))
var _ = (fs.NodeWriter)((*ModelFileNode)(nil))

func (m *ModelFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | modeReadWrite
	resolved := m.fs.configStore.ResolveModel(m.name)
	content, _ := m.fs.modelCache.get(resolved)
	out.Size = uint64(len(content))
	setTimestamps(&out.Attr, m.fs.startTime)
	return 0
}

func (m *ModelFileNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return m.Getattr(ctx, f, out)
}

func (m *ModelFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (m *ModelFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	resolved := m.fs.configStore.ResolveModel(m.name)
	content, _ := m.fs.modelCache.get(resolved)
	return fuse.ReadResultData(readAt([]byte(content), dest, off)), 0
}

// Write treats the written bytes as a stateless prompt. Offset must
// be 0, matching the whole-file write rule applied everywhere else in
// the tree; any other offset fails with EPERM.
func (m *ModelFileNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off != 0 {
		return 0, syscall.EPERM
	}
	resolved := m.fs.configStore.ResolveModel(m.name)
	params := m.fs.configStore.Effective(resolved)
	prompt := string(data)

	op := m.fs.trackOp("Write", "/models/"+m.name)
	defer op.Done()
	op.SetPhase("llm.Query")
	reply, err := m.fs.llm.Query(ctx, resolved, params, prompt)
	if err != nil {
		return 0, syscall.EIO
	}
	m.fs.modelCache.set(resolved, reply)

	now := time.Now()
	sess := m.fs.sessionStore.CreateAuto(now)
	sess.SetModelName(resolved)
	if _, err := sess.AppendPrompt(now, prompt, func(session.Conversation) (string, error) {
		return reply, nil
	}); err != nil {
		// Archival failure never fails the write; the client already
		// has its answer via the response cache.
		log.Printf("models: archiving response for %s failed: %v", resolved, err)
		return uint32(len(data)), 0
	}
	m.fs.sessionStore.SetLatest(sess.ID())

	return uint32(len(data)), 0
}
