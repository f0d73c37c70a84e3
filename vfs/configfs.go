package vfs

import (
	"context"
	"sort"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"llmfs/config"
)

// ConfigDirNode is "/config": a directory of "default" plus each known
// model name, one subdirectory per model.
type ConfigDirNode struct {
	fs.Inode
	fs *FS
}

var _ = (fs.NodeLookuper)((*ConfigDirNode)(nil))
var _ = (fs.NodeReaddirer)((*ConfigDirNode)(nil))
var _ = (fs.NodeGetattrer)((*ConfigDirNode)(nil))

// isKnown mirrors the models subtree: a name is valid iff it is
// "default" or an identifier the LLM adapter currently reports. A
// model needs no pre-existing override to get a config directory — the
// directory is how the first override gets written.
func (c *ConfigDirNode) isKnown(ctx context.Context, name string) bool {
	if name == "default" {
		return true
	}
	names, err := c.fs.llm.ListModels(ctx)
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

func (c *ConfigDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !c.isKnown(ctx, name) {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	return c.NewInode(ctx, &ConfigModelDirNode{fs: c.fs, name: name}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (c *ConfigDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	models, err := c.fs.llm.ListModels(ctx)
	if err != nil {
		return nil, syscall.EIO
	}
	sort.Strings(models)
	entries := make([]fuse.DirEntry, 0, len(models)+1)
	entries = append(entries, fuse.DirEntry{Name: "default", Mode: fuse.S_IFDIR})
	for _, m := range models {
		entries = append(entries, fuse.DirEntry{Name: m, Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (c *ConfigDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, c.fs.startTime)
	return 0
}

// ConfigModelDirNode is "/config/<name>": contains only settings.toml.
type ConfigModelDirNode struct {
	fs.Inode
	fs   *FS
	name string
}

var _ = (fs.NodeLookuper)((*ConfigModelDirNode)(nil))
var _ = (fs.NodeReaddirer)((*ConfigModelDirNode)(nil))
var _ = (fs.NodeGetattrer)((*ConfigModelDirNode)(nil))

func (c *ConfigModelDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name != "settings.toml" {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	return c.NewInode(ctx, &ConfigSettingsNode{fs: c.fs, name: c.name}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

func (c *ConfigModelDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return fs.NewListDirStream([]fuse.DirEntry{{Name: "settings.toml", Mode: fuse.S_IFREG}}), 0
}

func (c *ConfigModelDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, c.fs.startTime)
	return 0
}

// ConfigSettingsNode is "/config/<name>/settings.toml": reads
// re-serialise the effective (merged) parameters from live state, so
// they stay consistent with writes arriving through either /config or
// a session's config directory; writes validate and merge into the
// model's own override layer.
type ConfigSettingsNode struct {
	fs.Inode
	fs   *FS
	name string
}

var _ = (fs.NodeGetattrer)((*ConfigSettingsNode)(nil))
var _ = (fs.NodeSetattrer)((*ConfigSettingsNode)(nil))
var _ = (fs.NodeOpener)((*ConfigSettingsNode)(nil))
var _ = (fs.NodeReader)((*ConfigSettingsNode)(nil))
var _ = (fs.NodeWriter)((*ConfigSettingsNode)(nil))

func (c *ConfigSettingsNode) content() []byte {
	resolved := c.fs.configStore.ResolveModel(c.name)
	return config.SerializeSettings(c.fs.configStore.Effective(resolved))
}

func (c *ConfigSettingsNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | modeReadWrite
	out.Size = uint64(len(c.content()))
	setTimestamps(&out.Attr, c.fs.startTime)
	return 0
}

func (c *ConfigSettingsNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return c.Getattr(ctx, f, out)
}

func (c *ConfigSettingsNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (c *ConfigSettingsNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return fuse.ReadResultData(readAt(c.content(), dest, off)), 0
}

// Write treats the buffer as the complete new document: offset must be
// 0, and the parsed parameters merge into the model's override layer
// in one locked step.
func (c *ConfigSettingsNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off != 0 {
		return 0, syscall.EPERM
	}
	parsed, err := config.ParseSettings(data)
	if err != nil {
		return 0, syscall.EINVAL
	}
	resolved := c.fs.configStore.ResolveModel(c.name)
	c.fs.configStore.SetModelParams(resolved, parsed)
	return uint32(len(data)), 0
}
