package vfs

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"llmfs/config"
	"llmfs/session"
)

// ConversationsDirNode is "/conversations": directory of live session
// ids plus the "latest" alias.
type ConversationsDirNode struct {
	fs.Inode
	fs *FS
}

var _ = (fs.NodeLookuper)((*ConversationsDirNode)(nil))
var _ = (fs.NodeReaddirer)((*ConversationsDirNode)(nil))
var _ = (fs.NodeGetattrer)((*ConversationsDirNode)(nil))
var _ = (fs.NodeMkdirer)((*ConversationsDirNode)(nil))
var _ = (fs.NodeRmdirer)((*ConversationsDirNode)(nil))

func (c *ConversationsDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if c.fs.sessionStore.Get(name) == nil {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	return c.NewInode(ctx, &SessionDirNode{fs: c.fs, idOrAlias: name}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
}

func (c *ConversationsDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	ids, hasLatest := c.fs.sessionStore.List()
	entries := make([]fuse.DirEntry, 0, len(ids)+1)
	for _, id := range ids {
		entries = append(entries, fuse.DirEntry{Name: id, Mode: fuse.S_IFDIR})
	}
	if hasLatest {
		entries = append(entries, fuse.DirEntry{Name: session.LatestAlias, Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (c *ConversationsDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, c.fs.startTime)
	return 0
}

// Mkdir creates a new, empty session under name. name = "latest" or an
// id already in use is rejected.
func (c *ConversationsDirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, err := c.fs.sessionStore.Create(name, time.Now())
	switch err {
	case nil:
		setEntryTimeout(out, cacheTTLStructure)
		return c.NewInode(ctx, &SessionDirNode{fs: c.fs, idOrAlias: name}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
	case session.ErrExists:
		return nil, syscall.EEXIST
	case session.ErrReservedID:
		return nil, syscall.EPERM
	default:
		return nil, syscall.EIO
	}
}

// Rmdir destroys the session named name.
func (c *ConversationsDirNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if err := c.fs.sessionStore.Delete(name); err != nil {
		return syscall.ENOENT
	}
	return 0
}

// SessionDirNode is "/conversations/<id>" (or "/conversations/latest",
// which re-resolves idOrAlias through the store's latest pointer on
// every access rather than being cached as a distinct session).
type SessionDirNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeLookuper)((*SessionDirNode)(nil))
var _ = (fs.NodeReaddirer)((*SessionDirNode)(nil))
var _ = (fs.NodeGetattrer)((*SessionDirNode)(nil))

func (s *SessionDirNode) resolve() *session.Session {
	return s.fs.sessionStore.Get(s.idOrAlias)
}

func (s *SessionDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if s.resolve() == nil {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	switch name {
	case "prompt":
		return s.NewInode(ctx, &SessionPromptNode{fs: s.fs, idOrAlias: s.idOrAlias}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
	case "history":
		return s.NewInode(ctx, &SessionHistoryNode{fs: s.fs, idOrAlias: s.idOrAlias}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
	case "context":
		return s.NewInode(ctx, &SessionContextNode{fs: s.fs, idOrAlias: s.idOrAlias}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
	case "config":
		return s.NewInode(ctx, &SessionConfigDirNode{fs: s.fs, idOrAlias: s.idOrAlias}, fs.StableAttr{Mode: fuse.S_IFDIR}), 0
	}
	return nil, syscall.ENOENT
}

func (s *SessionDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if s.resolve() == nil {
		return nil, syscall.ENOENT
	}
	return fs.NewListDirStream([]fuse.DirEntry{
		{Name: "prompt", Mode: fuse.S_IFREG},
		{Name: "history", Mode: fuse.S_IFREG},
		{Name: "context", Mode: fuse.S_IFREG},
		{Name: "config", Mode: fuse.S_IFDIR},
	}), 0
}

func (s *SessionDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := s.resolve()
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

// touchLatest marks the session as the latest interacted-with one.
// Every write under a session directory routes through this.
func touchLatest(fs *FS, sess *session.Session) {
	fs.sessionStore.SetLatest(sess.ID())
}

// sessionModel resolves a session's model choice to a concrete model
// name: a session that never chose one falls back to the configured
// default, and an explicit "default" resolves the same way.
func sessionModel(fs *FS, sess *session.Session) string {
	name := sess.ModelName()
	if name == "" {
		name = "default"
	}
	return fs.configStore.ResolveModel(name)
}

// effectiveParams layers the session's own overrides on top of the
// resolved model's effective parameters.
func effectiveParams(fs *FS, sess *session.Session) config.ModelParameters {
	return fs.configStore.Effective(sessionModel(fs, sess)).Merge(sess.Params())
}

// --- prompt ---

type SessionPromptNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeGetattrer)((*SessionPromptNode)(nil))
var _ = (fs.NodeSetattrer)((*SessionPromptNode)(nil))
var _ = (fs.NodeOpener)((*SessionPromptNode)(nil))
var _ = (fs.NodeReader)((*SessionPromptNode)(nil))
var _ = (fs.NodeWriter)((*SessionPromptNode)(nil))

func (p *SessionPromptNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := p.fs.sessionStore.Get(p.idOrAlias)
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | modeReadWriteF
	out.Size = uint64(len(sess.LatestResponse()))
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

func (p *SessionPromptNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return p.Getattr(ctx, f, out)
}

func (p *SessionPromptNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (p *SessionPromptNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	sess := p.fs.sessionStore.Get(p.idOrAlias)
	if sess == nil {
		return nil, syscall.ENOENT
	}
	return fuse.ReadResultData(readAt([]byte(sess.LatestResponse()), dest, off)), 0
}

func (p *SessionPromptNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off != 0 {
		return 0, syscall.EPERM
	}
	sess := p.fs.sessionStore.Get(p.idOrAlias)
	if sess == nil {
		return 0, syscall.ENOENT
	}
	params := effectiveParams(p.fs, sess)
	model := sessionModel(p.fs, sess)

	op := p.fs.trackOp("Write", "/conversations/"+sess.ID()+"/prompt")
	defer op.Done()

	// The snapshot passed to the callback already carries the new user
	// turn as its tail; the adapter builds the request from it alone.
	_, err := sess.AppendPrompt(time.Now(), string(data), func(conv session.Conversation) (string, error) {
		op.SetPhase("llm.Converse")
		return p.fs.llm.Converse(ctx, model, params, conv)
	})
	if err != nil {
		return 0, syscall.EIO
	}
	touchLatest(p.fs, sess)
	return uint32(len(data)), 0
}

// --- history ---

type SessionHistoryNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeGetattrer)((*SessionHistoryNode)(nil))
var _ = (fs.NodeOpener)((*SessionHistoryNode)(nil))
var _ = (fs.NodeReader)((*SessionHistoryNode)(nil))

func historyText(fs *FS, sess *session.Session) string {
	var b strings.Builder
	params := effectiveParams(fs, sess)
	if params.SystemPrompt != nil && *params.SystemPrompt != "" {
		fmt.Fprintf(&b, "[SYSTEM]\n%s\n\n", *params.SystemPrompt)
	}
	for _, msg := range sess.Messages() {
		switch msg.Role {
		case session.RoleUser:
			fmt.Fprintf(&b, "[USER]\n%s\n\n", msg.Text)
		case session.RoleAssistant:
			fmt.Fprintf(&b, "[AI]\n%s\n\n", msg.Text)
		}
	}
	return b.String()
}

func (h *SessionHistoryNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := h.fs.sessionStore.Get(h.idOrAlias)
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | modeReadOnly
	out.Size = uint64(len(historyText(h.fs, sess)))
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

func (h *SessionHistoryNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (h *SessionHistoryNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	sess := h.fs.sessionStore.Get(h.idOrAlias)
	if sess == nil {
		return nil, syscall.ENOENT
	}
	return fuse.ReadResultData(readAt([]byte(historyText(h.fs, sess)), dest, off)), 0
}

// --- context ---

type SessionContextNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeGetattrer)((*SessionContextNode)(nil))
var _ = (fs.NodeSetattrer)((*SessionContextNode)(nil))
var _ = (fs.NodeOpener)((*SessionContextNode)(nil))
var _ = (fs.NodeReader)((*SessionContextNode)(nil))
var _ = (fs.NodeWriter)((*SessionContextNode)(nil))

func (c *SessionContextNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := c.fs.sessionStore.Get(c.idOrAlias)
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | modeReadWriteF
	out.Size = uint64(len(sess.Context()))
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

func (c *SessionContextNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return c.Getattr(ctx, f, out)
}

func (c *SessionContextNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (c *SessionContextNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	sess := c.fs.sessionStore.Get(c.idOrAlias)
	if sess == nil {
		return nil, syscall.ENOENT
	}
	return fuse.ReadResultData(readAt([]byte(sess.Context()), dest, off)), 0
}

func (c *SessionContextNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off != 0 {
		return 0, syscall.EPERM
	}
	sess := c.fs.sessionStore.Get(c.idOrAlias)
	if sess == nil {
		return 0, syscall.ENOENT
	}
	sess.SetContext(string(data))
	touchLatest(c.fs, sess)
	return uint32(len(data)), 0
}

// --- config/ ---

type SessionConfigDirNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeLookuper)((*SessionConfigDirNode)(nil))
var _ = (fs.NodeReaddirer)((*SessionConfigDirNode)(nil))
var _ = (fs.NodeGetattrer)((*SessionConfigDirNode)(nil))

func (d *SessionConfigDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if d.fs.sessionStore.Get(d.idOrAlias) == nil {
		return nil, syscall.ENOENT
	}
	setEntryTimeout(out, cacheTTLStructure)
	switch name {
	case "model":
		return d.NewInode(ctx, &SessionConfigModelNode{fs: d.fs, idOrAlias: d.idOrAlias}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
	case "settings.toml":
		return d.NewInode(ctx, &SessionConfigSettingsNode{fs: d.fs, idOrAlias: d.idOrAlias}, fs.StableAttr{Mode: fuse.S_IFREG}), 0
	}
	return nil, syscall.ENOENT
}

func (d *SessionConfigDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if d.fs.sessionStore.Get(d.idOrAlias) == nil {
		return nil, syscall.ENOENT
	}
	return fs.NewListDirStream([]fuse.DirEntry{
		{Name: "model", Mode: fuse.S_IFREG},
		{Name: "settings.toml", Mode: fuse.S_IFREG},
	}), 0
}

func (d *SessionConfigDirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := d.fs.sessionStore.Get(d.idOrAlias)
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 2
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

// --- config/model ---

type SessionConfigModelNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeGetattrer)((*SessionConfigModelNode)(nil))
var _ = (fs.NodeSetattrer)((*SessionConfigModelNode)(nil))
var _ = (fs.NodeOpener)((*SessionConfigModelNode)(nil))
var _ = (fs.NodeReader)((*SessionConfigModelNode)(nil))
var _ = (fs.NodeWriter)((*SessionConfigModelNode)(nil))

func (m *SessionConfigModelNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := m.fs.sessionStore.Get(m.idOrAlias)
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | modeReadWriteF
	out.Size = uint64(len(sess.ModelName()))
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

func (m *SessionConfigModelNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return m.Getattr(ctx, f, out)
}

func (m *SessionConfigModelNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (m *SessionConfigModelNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	sess := m.fs.sessionStore.Get(m.idOrAlias)
	if sess == nil {
		return nil, syscall.ENOENT
	}
	return fuse.ReadResultData(readAt([]byte(sess.ModelName()), dest, off)), 0
}

func (m *SessionConfigModelNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off != 0 {
		return 0, syscall.EPERM
	}
	sess := m.fs.sessionStore.Get(m.idOrAlias)
	if sess == nil {
		return 0, syscall.ENOENT
	}
	sess.SetModelName(strings.TrimSpace(string(data)))
	touchLatest(m.fs, sess)
	return uint32(len(data)), 0
}

// --- config/settings.toml ---

type SessionConfigSettingsNode struct {
	fs.Inode
	fs        *FS
	idOrAlias string
}

var _ = (fs.NodeGetattrer)((*SessionConfigSettingsNode)(nil))
var _ = (fs.NodeSetattrer)((*SessionConfigSettingsNode)(nil))
var _ = (fs.NodeOpener)((*SessionConfigSettingsNode)(nil))
var _ = (fs.NodeReader)((*SessionConfigSettingsNode)(nil))
var _ = (fs.NodeWriter)((*SessionConfigSettingsNode)(nil))

func (s *SessionConfigSettingsNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	sess := s.fs.sessionStore.Get(s.idOrAlias)
	if sess == nil {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | modeReadWriteF
	out.Size = uint64(len(config.SerializeSettings(sess.Params())))
	setTimestamps(&out.Attr, sess.CreatedAt())
	return 0
}

func (s *SessionConfigSettingsNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	// Accept truncate (from shell > redirect) silently
	return s.Getattr(ctx, f, out)
}

func (s *SessionConfigSettingsNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (s *SessionConfigSettingsNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	sess := s.fs.sessionStore.Get(s.idOrAlias)
	if sess == nil {
		return nil, syscall.ENOENT
	}
	return fuse.ReadResultData(readAt(config.SerializeSettings(sess.Params()), dest, off)), 0
}

func (s *SessionConfigSettingsNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off != 0 {
		return 0, syscall.EPERM
	}
	sess := s.fs.sessionStore.Get(s.idOrAlias)
	if sess == nil {
		return 0, syscall.ENOENT
	}
	parsed, err := config.ParseSettings(data)
	if err != nil {
		return 0, syscall.EINVAL
	}
	sess.MergeParams(parsed)
	touchLatest(s.fs, sess)
	return uint32(len(data)), 0
}
