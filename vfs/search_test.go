package vfs

import (
	"context"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
)

func TestSearchDirNode_MkdirAndRmdirRoundTrip(t *testing.T) {
	search := newFakeSearch()
	f := newTestFS(&fakeLLM{}, search)
	dir := &SearchDirNode{fs: f}

	if errno := dir.createIndex(context.Background(), "idx"); errno != 0 {
		t.Fatalf("createIndex: errno %d", errno)
	}
	if !dir.indexExists(context.Background(), "idx") {
		t.Fatal("index should exist after Mkdir")
	}
	if errno := dir.Rmdir(context.Background(), "idx"); errno != 0 {
		t.Fatalf("Rmdir: errno %d", errno)
	}
	if dir.indexExists(context.Background(), "idx") {
		t.Fatal("index should not exist after Rmdir")
	}
}

func TestSearchDirNode_MkdirBackendFailureIsEIO(t *testing.T) {
	search := newFakeSearch()
	search.failIndex = "bad"
	f := newTestFS(&fakeLLM{}, search)
	dir := &SearchDirNode{fs: f}
	if _, errno := dir.Mkdir(context.Background(), "bad", 0755, &fuse.EntryOut{}); errno != syscall.EIO {
		t.Fatalf("Mkdir(bad) errno = %v, want EIO", errno)
	}
}

func TestCorpusFileNode_ReadIsAlwaysDenied(t *testing.T) {
	node := &CorpusFileNode{index: "idx", doc: "a.txt"}
	if _, errno := node.Read(context.Background(), nil, make([]byte, 16), 0); errno != syscall.EACCES {
		t.Fatalf("Read corpus file errno = %v, want EACCES", errno)
	}
}

func TestCorpusFileNode_WriteAddsDocument(t *testing.T) {
	search := newFakeSearch()
	search.indexes["idx"] = map[string]string{}
	f := newTestFS(&fakeLLM{}, search)
	node := &CorpusFileNode{fs: f, index: "idx", doc: "a.txt"}

	n, errno := node.Write(context.Background(), nil, []byte("doc body"), 0)
	if errno != 0 {
		t.Fatalf("Write: errno %d", errno)
	}
	if int(n) != len("doc body") {
		t.Fatalf("Write returned %d, want %d", n, len("doc body"))
	}
	if search.indexes["idx"]["a.txt"] != "doc body" {
		t.Fatalf("backend document = %q, want %q", search.indexes["idx"]["a.txt"], "doc body")
	}
}

func TestCorpusDirNode_UnlinkRemovesDocument(t *testing.T) {
	search := newFakeSearch()
	search.indexes["idx"] = map[string]string{"a.txt": "body"}
	f := newTestFS(&fakeLLM{}, search)
	dir := &CorpusDirNode{fs: f, index: "idx"}

	if errno := dir.Unlink(context.Background(), "a.txt"); errno != 0 {
		t.Fatalf("Unlink: errno %d", errno)
	}
	if _, ok := search.indexes["idx"]["a.txt"]; ok {
		t.Fatal("document should be removed from the backend after Unlink")
	}
}

func TestQueryFileNode_ReadBeforeAnyQueryReturnsPlaceholder(t *testing.T) {
	f := newTestFS(&fakeLLM{}, newFakeSearch())
	node := &QueryFileNode{fs: f, index: "idx"}
	dest := make([]byte, 64)
	result, errno := node.Read(context.Background(), nil, dest, 0)
	if errno != 0 {
		t.Fatalf("Read: errno %d", errno)
	}
	out, _ := result.Bytes(nil)
	if string(out) != noQueryYetMessage {
		t.Fatalf("Read before any query = %q, want %q", out, noQueryYetMessage)
	}
}

func TestQueryFileNode_WriteTrimsAndCachesReply(t *testing.T) {
	search := newFakeSearch()
	search.indexes["idx"] = map[string]string{"a.txt": "x", "b.txt": "y"}
	f := newTestFS(&fakeLLM{}, search)
	node := &QueryFileNode{fs: f, index: "idx"}

	n, errno := node.Write(context.Background(), nil, []byte("find docs\n"), 0)
	if errno != 0 {
		t.Fatalf("Write: errno %d", errno)
	}
	if int(n) != len("find docs\n") {
		t.Fatalf("Write returned %d, want %d", n, len("find docs\n"))
	}

	dest := make([]byte, 256)
	result, _ := node.Read(context.Background(), nil, dest, 0)
	out, _ := result.Bytes(nil)
	if string(out) == "" || string(out) == noQueryYetMessage {
		t.Fatalf("Read after query = %q, expected a cached backend reply", out)
	}
}

func TestQueryFileNode_BackendFailureIsEIO(t *testing.T) {
	search := newFakeSearch()
	search.indexes["idx"] = map[string]string{}
	delete(search.indexes, "idx") // no such index -> fakeSearch.Query errors
	f := newTestFS(&fakeLLM{}, search)
	node := &QueryFileNode{fs: f, index: "idx"}
	if _, errno := node.Write(context.Background(), nil, []byte("find"), 0); errno != syscall.EIO {
		t.Fatalf("Write errno = %v, want EIO", errno)
	}
}
