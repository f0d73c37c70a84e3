package llmapi

import (
	"context"
	"testing"

	"llmfs/config"
	"llmfs/llmapi/mockserver"
	"llmfs/session"
)

func TestQuerySendsPromptAndReturnsReply(t *testing.T) {
	srv := mockserver.New(mockserver.WithReply("hello"))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "")
	reply, err := c.Query(context.Background(), "gpt-x", config.ModelParameters{}, "hi")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("reply = %q, want hello", reply)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	msgs, _ := reqs[0]["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected a single user message, got %v", msgs)
	}
}

func TestQueryIncludesSystemPromptWhenSet(t *testing.T) {
	srv := mockserver.New(mockserver.WithReply("ok"))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	sys := "be terse"
	_, err := c.Query(context.Background(), "gpt-x", config.ModelParameters{SystemPrompt: &sys}, "hi")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	reqs := srv.Requests()
	msgs, _ := reqs[0]["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", msgs)
	}
}

func TestQueryErrorOnUpstreamFailure(t *testing.T) {
	srv := mockserver.New(mockserver.WithError())
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	if _, err := c.Query(context.Background(), "gpt-x", config.ModelParameters{}, "hi"); err == nil {
		t.Fatal("expected error on upstream 500")
	}
}

func TestConverseConcatenatesContext(t *testing.T) {
	var seenSystem string
	srv := mockserver.New(mockserver.WithReplyFunc(func(body map[string]any) (string, bool) {
		msgs, _ := body["messages"].([]any)
		if len(msgs) > 0 {
			first, _ := msgs[0].(map[string]any)
			seenSystem, _ = first["content"].(string)
		}
		return "4", true
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	sys := "answer math"
	conv := session.Conversation{
		Context:  "user is a student",
		Messages: []session.Message{{Role: session.RoleUser, Text: "what is 2+2?"}},
	}
	reply, err := c.Converse(context.Background(), "gpt-x", config.ModelParameters{SystemPrompt: &sys}, conv)
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if reply != "4" {
		t.Fatalf("reply = %q, want 4", reply)
	}
	want := "answer math\n\nADDITIONAL CONTEXT FOR THIS CONVERSATION:\nuser is a student"
	if seenSystem != want {
		t.Fatalf("system message = %q, want %q", seenSystem, want)
	}
}

func TestConverseSendsEachHistoryTurnOnce(t *testing.T) {
	srv := mockserver.New(mockserver.WithReply("sure"))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	conv := session.Conversation{Messages: []session.Message{
		{Role: session.RoleUser, Text: "hi"},
		{Role: session.RoleAssistant, Text: "hello"},
		{Role: session.RoleUser, Text: "and again"},
	}}
	if _, err := c.Converse(context.Background(), "gpt-x", config.ModelParameters{}, conv); err != nil {
		t.Fatalf("Converse: %v", err)
	}

	reqs := srv.Requests()
	msgs, _ := reqs[0]["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("sent %d messages, want the 3 history turns exactly once each: %v", len(msgs), msgs)
	}
	last, _ := msgs[2].(map[string]any)
	if last["role"] != "user" || last["content"] != "and again" {
		t.Fatalf("last message = %v, want the newest user turn", last)
	}
}

func TestListModels(t *testing.T) {
	srv := mockserver.New(mockserver.WithModels([]string{"gpt-x", "gpt-y"}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	got, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(got) != 2 || got[0] != "gpt-x" || got[1] != "gpt-y" {
		t.Fatalf("ListModels = %v, want [gpt-x gpt-y]", got)
	}
}

func TestCoalescingClientDedupesConcurrentIdenticalQueries(t *testing.T) {
	srv := mockserver.New(mockserver.WithReply("x"))
	defer srv.Close()

	base := NewHTTPClient(srv.URL, "")
	c := NewCoalescingClient(base)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			c.Query(context.Background(), "gpt-x", config.ModelParameters{}, "same prompt")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	// singleflight does not guarantee a single call under this timing,
	// but it must not error, and must still return the right content.
	reply, err := c.Query(context.Background(), "gpt-x", config.ModelParameters{}, "same prompt")
	if err != nil || reply != "x" {
		t.Fatalf("Query after coalesced burst = %q, %v", reply, err)
	}
}
