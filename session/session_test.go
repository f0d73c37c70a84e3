package session

import (
	"errors"
	"testing"
	"time"

	"llmfs/config"
)

func TestAppendPromptSuccess(t *testing.T) {
	s := newSession("1000", time.Now())
	reply, err := s.AppendPrompt(time.Now(), "hi", func(c Conversation) (string, error) {
		if len(c.Messages) != 1 || c.Messages[0].Text != "hi" {
			t.Fatalf("respond got unexpected snapshot: %+v", c)
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("AppendPrompt: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("reply = %q, want hello", reply)
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("Messages = %+v, want [User, Assistant]", msgs)
	}
	if s.LatestResponse() != "hello" {
		t.Fatalf("LatestResponse = %q, want hello", s.LatestResponse())
	}
}

func TestAppendPromptRollsBackOnFailure(t *testing.T) {
	s := newSession("1000", time.Now())
	_, err := s.AppendPrompt(time.Now(), "doomed", func(Conversation) (string, error) {
		return "", errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from AppendPrompt")
	}
	if len(s.Messages()) != 0 {
		t.Fatalf("failed prompt must not leave a User message, got %+v", s.Messages())
	}
	if s.LatestResponse() != "" {
		t.Fatalf("LatestResponse should be unchanged on failure, got %q", s.LatestResponse())
	}
}

func TestSessionParamMerge(t *testing.T) {
	s := newSession("1", time.Now())
	temp := 0.4
	s.MergeParams(config.ModelParameters{Temperature: &temp})
	if *s.Params().Temperature != temp {
		t.Fatalf("Params().Temperature = %v, want %v", s.Params().Temperature, temp)
	}
}
