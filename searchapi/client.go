package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
)

// requestTimeout bounds a single request/reply round trip. Timeouts
// are the only escape hatch: the backend protocol has no cancellation.
const requestTimeout = 5 * time.Second

// ZMQClient is a Search Adapter implementation speaking ZMQ_REQ to the
// search backend. The socket is strictly sequential (one outstanding
// request at a time), so every call is serialised under sockMu.
type ZMQClient struct {
	sockMu sync.Mutex
	sock   zmq4.Socket
}

var _ Client = (*ZMQClient)(nil)

// NewZMQClient dials endpoint (e.g. "tcp://127.0.0.1:5555") as a ZMQ_REQ
// socket.
func NewZMQClient(ctx context.Context, endpoint string) (*ZMQClient, error) {
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(endpoint); err != nil {
		return nil, fmt.Errorf("dial search backend %s: %w", endpoint, err)
	}
	return &ZMQClient{sock: sock}, nil
}

// Close releases the underlying socket.
func (c *ZMQClient) Close() error {
	return c.sock.Close()
}

// reply is the recognised shape of a single-frame JSON reply: either
// an array (list operations), {"status":"ok", ...}, or {"error": ...}.
// Multi-frame replies are treated as malformed.
type reply struct {
	raw       []byte
	isArray   bool
	array     []string
	status    string
	results   string
	errorText string
	hasError  bool
}

func (c *ZMQClient) roundTrip(ctx context.Context, op string, payload any) (reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return reply{}, fmt.Errorf("marshal %s payload: %w", op, err)
	}

	type result struct {
		rep reply
		err error
	}
	done := make(chan result, 1)

	c.sockMu.Lock()
	go func() {
		defer c.sockMu.Unlock()
		msg := zmq4.NewMsgFrom([]byte(op), body)
		if err := c.sock.Send(msg); err != nil {
			done <- result{err: fmt.Errorf("send %s: %w", op, err)}
			return
		}
		reply, err := c.sock.Recv()
		if err != nil {
			done <- result{err: fmt.Errorf("recv reply to %s: %w", op, err)}
			return
		}
		rep, err := parseReply(reply.Frames)
		done <- result{rep: rep, err: err}
	}()

	select {
	case r := <-done:
		return r.rep, r.err
	case <-time.After(requestTimeout):
		return reply{}, fmt.Errorf("search backend timed out on %s", op)
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func parseReply(frames [][]byte) (reply, error) {
	if len(frames) != 1 {
		return reply{}, fmt.Errorf("malformed reply: expected a single frame, got %d", len(frames))
	}
	raw := frames[0]

	var asArray []string
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return reply{raw: raw, isArray: true, array: asArray}, nil
	}

	var asObject map[string]any
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return reply{}, fmt.Errorf("malformed reply: not JSON: %w", err)
	}
	if e, ok := asObject["error"]; ok {
		return reply{raw: raw, hasError: true, errorText: fmt.Sprint(e)}, nil
	}
	status, _ := asObject["status"].(string)
	results, _ := asObject["results"].(string)
	return reply{raw: raw, status: status, results: results}, nil
}

func (r reply) ok() bool {
	return !r.hasError && r.status == "ok"
}

func (c *ZMQClient) ListIndexes(ctx context.Context) ([]string, error) {
	rep, err := c.roundTrip(ctx, "list_indexes", struct{}{})
	if err != nil {
		return nil, err
	}
	if !rep.isArray {
		return nil, fmt.Errorf("list_indexes: expected array reply")
	}
	return rep.array, nil
}

func (c *ZMQClient) ListDocuments(ctx context.Context, index string) ([]string, error) {
	rep, err := c.roundTrip(ctx, "list_documents", map[string]string{"index": index})
	if err != nil {
		return nil, err
	}
	if !rep.isArray {
		return nil, fmt.Errorf("list_documents: expected array reply")
	}
	return rep.array, nil
}

func (c *ZMQClient) CreateIndex(ctx context.Context, index string) error {
	rep, err := c.roundTrip(ctx, "create_index", map[string]string{"index": index})
	if err != nil {
		return err
	}
	if !rep.ok() {
		return fmt.Errorf("create_index %s: %s", index, rep.errorText)
	}
	return nil
}

func (c *ZMQClient) DeleteIndex(ctx context.Context, index string) error {
	rep, err := c.roundTrip(ctx, "delete_index", map[string]string{"index": index})
	if err != nil {
		return err
	}
	if !rep.ok() {
		return fmt.Errorf("delete_index %s: %s", index, rep.errorText)
	}
	return nil
}

func (c *ZMQClient) AddDocument(ctx context.Context, index, doc, text string) error {
	rep, err := c.roundTrip(ctx, "add_document", map[string]string{"index": index, "doc": doc, "text": text})
	if err != nil {
		return err
	}
	if !rep.ok() {
		return fmt.Errorf("add_document %s/%s: %s", index, doc, rep.errorText)
	}
	return nil
}

func (c *ZMQClient) RemoveDocument(ctx context.Context, index, doc string) error {
	rep, err := c.roundTrip(ctx, "remove_document", map[string]string{"index": index, "doc": doc})
	if err != nil {
		return err
	}
	if !rep.ok() {
		return fmt.Errorf("remove_document %s/%s: %s", index, doc, rep.errorText)
	}
	return nil
}

// Query returns the backend's pre-formatted result text for a search
// query. The backend is expected to place that text under a "results"
// key on a {"status":"ok", ...} reply; if that key is absent the raw
// reply body is returned verbatim so no formatted text is lost.
func (c *ZMQClient) Query(ctx context.Context, index, query string) (string, error) {
	rep, err := c.roundTrip(ctx, "query", map[string]string{"index": index, "query": query})
	if err != nil {
		return "", err
	}
	if rep.hasError {
		return "", fmt.Errorf("query %s: %s", index, rep.errorText)
	}
	if rep.results != "" {
		return rep.results, nil
	}
	return string(rep.raw), nil
}
