package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/zer0-os/ZAI/internal/llm"
)

type recordingArchive struct {
	saved []llm.Message
}

func (a *recordingArchive) SaveMessage(_ context.Context, _ string, msg llm.Message) error {
	a.saved = append(a.saved, msg)
	return nil
}

func (a *recordingArchive) Messages(context.Context, string, int) ([]llm.Message, error) {
	return a.saved, nil
}

func TestWindowTrimming(t *testing.T) {
	m := NewManager(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := m.Append(ctx, "s1", llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("msg-%d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history := m.History("s1")
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Content != "msg-2" || history[2].Content != "msg-4" {
		t.Fatalf("unexpected window: %+v", history)
	}
}

func TestWindowTrimmingDropsOrphanedToolReplies(t *testing.T) {
	m := NewManager(2)
	ctx := context.Background()

	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleUser, Content: "swap 1 eth"})
	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
		{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "swap", Arguments: "{}"}},
	}})
	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleTool, ToolCallID: "call_1", Content: "pending"})
	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleTool, ToolCallID: "call_2", Content: "done"})

	// 发起调用的 assistant 消息已被裁出窗口，残留的 tool 回复必须一并丢弃。
	for _, msg := range m.History("s1") {
		if msg.Role == llm.RoleTool {
			t.Fatalf("window starts with orphaned tool reply: %+v", msg)
		}
	}
}

func TestWindowTrimmingKeepsCompleteToolGroups(t *testing.T) {
	m := NewManager(3)
	ctx := context.Background()

	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleUser, Content: "swap 1 eth"})
	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
		{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "swap", Arguments: "{}"}},
	}})
	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleTool, ToolCallID: "call_1", Content: "pending"})
	_ = m.Append(ctx, "s1", llm.Message{Role: llm.RoleTool, ToolCallID: "call_1", Content: "done"})

	history := m.History("s1")
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Role != llm.RoleAssistant || len(history[0].ToolCalls) == 0 {
		t.Fatalf("expected window to start at the tool-calling assistant message, got %+v", history[0])
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(10)
	ctx := context.Background()

	_ = m.Append(ctx, "a", llm.Message{Role: llm.RoleUser, Content: "hello"})
	_ = m.Append(ctx, "b", llm.Message{Role: llm.RoleUser, Content: "world"})

	if got := len(m.History("a")); got != 1 {
		t.Fatalf("expected 1 message in session a, got %d", got)
	}
	if m.History("b")[0].Content != "world" {
		t.Fatalf("unexpected session b history: %+v", m.History("b"))
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	m := NewManager(10)
	_ = m.Append(context.Background(), "s", llm.Message{Role: llm.RoleUser, Content: "original"})

	history := m.History("s")
	history[0].Content = "mutated"

	if m.History("s")[0].Content != "original" {
		t.Fatal("history mutation leaked into the manager")
	}
}

func TestArchiveSkipsSystemMessages(t *testing.T) {
	archive := &recordingArchive{}
	m := NewManager(10, WithArchive(archive))
	ctx := context.Background()

	_ = m.Append(ctx, "s", llm.Message{Role: llm.RoleSystem, Content: "prompt"})
	_ = m.Append(ctx, "s", llm.Message{Role: llm.RoleUser, Content: "question"})
	_ = m.Append(ctx, "s", llm.Message{Role: llm.RoleAssistant, Content: "answer"})

	if len(archive.saved) != 2 {
		t.Fatalf("expected 2 archived messages, got %d", len(archive.saved))
	}
	if archive.saved[0].Role != llm.RoleUser {
		t.Fatalf("unexpected first archived role: %s", archive.saved[0].Role)
	}
}

func TestReset(t *testing.T) {
	m := NewManager(10)
	_ = m.Append(context.Background(), "s", llm.Message{Role: llm.RoleUser, Content: "hello"})

	m.Reset("s")

	if got := len(m.History("s")); got != 0 {
		t.Fatalf("expected empty history after reset, got %d", got)
	}
}
