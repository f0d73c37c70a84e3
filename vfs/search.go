package vfs

import (
	"context"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// noQueryYetMessage is returned by reading an index's query file before
// any query has ever been written to it.
const noQueryYetMessage = "no query yet\n"

// SearchDirNode is "/semantic_search": every index name known to the
// backend. All existence questions delegate to the Search Adapter; this
// handler keeps no index list of its own.
type SearchDirNode struct {
	fs.Inode
	fs *FS
}

var _ = (fs.NodeLookuper)((*SearchDirNode)(nil))
var _ = (fs.NodeReaddirer)((*SearchDirNode)(nil))
var _ = (fs.NodeGetattrer)((*SearchDirNode)(nil))
var _ = (fs.NodeMkdirer)((*SearchDirNode)(nil))
var _ = (fs.NodeRmdirer)((*SearchDirNode)(nil))

func (s *SearchDirNode) indexExists(ctx context.Context, name string) bool {
	indexes, err := s.fs.search.ListIndexes(ctx)
	if err != nil {
		return false
	}
	for _, ix := range indexes {
		if ix == name {
			return true
		}
	}
	return false
}

func (s *SearchDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !s.indexExists(ctx, name) {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	return s.NewInode(ctx, &IndexDirNode{fs: s.fs, index: name}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (s *SearchDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	indexes, err := s.fs.search.ListIndexes(ctx)
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, 0, len(indexes))
	for _, ix := range indexes {
		entries = append(entries, fuse.DirEntry{Name: ix, Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (s *SearchDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, s.fs.startTime)
	return 0
}

// createIndex asks the backend to create an index, folding any backend
// failure into the single I/O error code a client sees.
func (s *SearchDirNode) createIndex(ctx context.Context, name string) syscall.Errno {
	if err := s.fs.search.CreateIndex(ctx, name); err != nil {
		return syscall.EIO
	}
	return 0
}

func (s *SearchDirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if errno := s.createIndex(ctx, name); errno != 0 {
		return nil, errno
	}
	setEntryTimeout(out, cacheTTLStructure)
	return s.NewInode(ctx, &IndexDirNode{fs: s.fs, index: name}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (s *SearchDirNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if err := s.fs.search.DeleteIndex(ctx, name); err != nil {
		return syscall.EIO
	}
	return 0
}

// IndexDirNode is "/semantic_search/<ix>": contains corpus and query.
type IndexDirNode struct {
	fs.Inode
	fs    *FS
	index string
}

var _ = (fs.NodeLookuper)((*IndexDirNode)(nil))
var _ = (fs.NodeReaddirer)((*IndexDirNode)(nil))
var _ = (fs.NodeGetattrer)((*IndexDirNode)(nil))

func (d *IndexDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	setEntryTimeout(out, cacheTTLStructure)
	switch name {
	case "corpus":
		return d.NewInode(ctx, &CorpusDirNode{fs: d.fs, index: d.index}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
	case "query":
		return d.NewInode(ctx, &QueryFileNode{fs: d.fs, index: d.index}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
	}
	return nil, syscall.ENOENT
}

func (d *IndexDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return fs.NewListDirStream([]fuse.DirEntry{
		{Name: "corpus", Mode: fuse.S_IFDIR},
		{Name: "query", Mode: fuse.S_IFREG},
	}), 0
}

func (d *IndexDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, d.fs.startTime)
	return 0
}

// CorpusDirNode is "/semantic_search/<ix>/corpus": one write-only file
// per document known to the backend.
type CorpusDirNode struct {
	fs.Inode
	fs    *FS
	index string
}

var _ = (fs.NodeLookuper)((*CorpusDirNode)(nil))
var _ = (fs.NodeReaddirer)((*CorpusDirNode)(nil))
var _ = (fs.NodeGetattrer)((*CorpusDirNode)(nil))
var _ = (fs.NodeMknoder)((*CorpusDirNode)(nil))
var _ = (fs.NodeUnlinker)((*CorpusDirNode)(nil))

func (c *CorpusDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	docs, err := c.fs.search.ListDocuments(ctx, c.index)
	if err != nil {
		return nil, syscall.EIO
	}
	for _, d := range docs {
		if d == name {
			setEntryTimeout(out, cacheTTLStructure)
			return c.NewInode(ctx, &CorpusFileNode{fs: c.fs, index: c.index, doc: name}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
		}
	}
	return nil, syscall.ENOENT
}

func (c *CorpusDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	docs, err := c.fs.search.ListDocuments(ctx, c.index)
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, fuse.DirEntry{Name: d, Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

func (c *CorpusDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, c.fs.startTime)
	return 0
}

// Mknod permits "touch"-style document creation with no backend call;
// the document only becomes visible to the backend once written.
func (c *CorpusDirNode) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	setEntryTimeout(out, cacheTTLStructure)
	return c.NewInode(ctx, &CorpusFileNode{fs: c.fs, index: c.index, doc: name}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
}

func (c *CorpusDirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := c.fs.search.RemoveDocument(ctx, c.index, name); err != nil {
		return syscall.EIO
	}
	return 0
}

// CorpusFileNode is "/semantic_search/<ix>/corpus/<doc>": write-only,
// each write sends the entire buffer as the document's text.
type CorpusFileNode struct {
	fs.Inode
	fs    *FS
	index string
	doc   string
}

var _ = (fs.NodeGetattrer)((*CorpusFileNode)(nil))
var _ = (fs.NodeSetattrer)((*CorpusFileNode)(nil))
var _ = (fs.NodeOpener)((*CorpusFileNode)(nil))
var _ = (fs.NodeReader)((*CorpusFileNode)(nil))
var _ = (fs.NodeWriter)((*CorpusFileNode)(nil))

func (c *CorpusFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | 0222
	setTimestamps(&out.Attr, c.fs.startTime)
	return 0
}

func (c *CorpusFileNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return c.Getattr(ctx, f, out)
}

func (c *CorpusFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

// Read always denies: corpus files are write-only.
func (c *CorpusFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return nil, syscall.EACCES
}

func (c *CorpusFileNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	op := c.fs.trackOp("Write", "/semantic_search/"+c.index+"/corpus/"+c.doc)
	defer op.Done()
	op.SetPhase("search.AddDocument")
	if err := c.fs.search.AddDocument(ctx, c.index, c.doc, string(data)); err != nil {
		return 0, syscall.EIO
	}
	return uint32(len(data)), 0
}

// QueryFileNode is "/semantic_search/<ix>/query": write triggers a
// search, read returns the last reply for this index.
type QueryFileNode struct {
	fs.Inode
	fs    *FS
	index string
}

var _ = (fs.NodeGetattrer)((*QueryFileNode)(nil))
var _ = (fs.NodeSetattrer)((*QueryFileNode)(nil))
var _ = (fs.NodeOpener)((*QueryFileNode)(nil))
var _ = (fs.NodeReader)((*QueryFileNode)(nil))
var _ = (fs.NodeWriter)((*QueryFileNode)(nil))

func (q *QueryFileNode) content() string {
	if result, ok := q.fs.searchCache.get(q.index); ok {
		return result
	}
	return noQueryYetMessage
}

func (q *QueryFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | modeReadWrite
	out.Size = uint64(len(q.content()))
	setTimestamps(&out.Attr, q.fs.startTime)
	return 0
}

func (q *QueryFileNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return q.Getattr(ctx, f, out)
}

func (q *QueryFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (q *QueryFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return fuse.ReadResultData(readAt([]byte(q.content()), dest, off)), 0
}

func (q *QueryFileNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	query := strings.TrimRight(string(data), " \t\r\n")

	op := q.fs.trackOp("Write", "/semantic_search/"+q.index+"/query")
	defer op.Done()
	op.SetPhase("search.Query")

	result, err := q.fs.search.Query(ctx, q.index, query)
	if err != nil {
		return 0, syscall.EIO
	}
	q.fs.searchCache.set(q.index, result)
	return uint32(len(data)), 0
}
