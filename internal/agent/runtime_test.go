package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/zer0-os/ZAI/internal/llm"
	"github.com/zer0-os/ZAI/internal/memory"
)

// scriptedClient replays a fixed sequence of responses and records the
// requests it received.
type scriptedClient struct {
	responses []*llm.Response
	requests  []llm.Request
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return &llm.Response{Content: "out of script"}, nil
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

type echoAgent struct {
	invoked []llm.ToolCall
}

func (a *echoAgent) Name() string { return "EchoAgent" }

func (a *echoAgent) SystemPrompt() string { return "You are an echo agent." }

func (a *echoAgent) TransferTool() llm.Tool {
	return llm.Tool{Name: "transfer_to_echo_agent", Description: "echo things"}
}

func (a *echoAgent) Tools() []llm.Tool {
	return []llm.Tool{{Name: "echo", Description: "echo the input"}}
}

func (a *echoAgent) Invoke(_ context.Context, call llm.ToolCall) (string, error) {
	if call.Function.Name != "echo" {
		return "", ErrUnknownTool(call.Function.Name)
	}
	a.invoked = append(a.invoked, call)
	return "echo: " + call.Function.Arguments, nil
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func TestRoutingTransfersToAgent(t *testing.T) {
	echo := &echoAgent{}
	client := &scriptedClient{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("1", "transfer_to_echo_agent", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("2", "echo", `{"text":"hi"}`)}},
		{Content: "all done"},
	}}

	runtime, err := NewRuntime(client, memory.NewManager(50), []Agent{echo})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	reply, err := runtime.ProcessMessage(context.Background(), "s1", "please echo hi")
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if reply != "all done" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(echo.invoked) != 1 {
		t.Fatalf("expected 1 tool invocation, got %d", len(echo.invoked))
	}

	if len(client.requests) != 3 {
		t.Fatalf("expected 3 generations, got %d", len(client.requests))
	}
	// Routing request only exposes transfer tools.
	first := client.requests[0]
	if len(first.Tools) != 1 || first.Tools[0].Name != "transfer_to_echo_agent" {
		t.Fatalf("unexpected routing tools: %+v", first.Tools)
	}
	if first.Messages[0].Role != llm.RoleSystem || strings.Contains(first.Messages[0].Content, "echo agent") {
		t.Fatalf("unexpected routing system prompt: %+v", first.Messages[0])
	}
	// After the transfer the agent's own prompt and tools take over.
	second := client.requests[1]
	if second.Messages[0].Content != "You are an echo agent." {
		t.Fatalf("unexpected agent system prompt: %q", second.Messages[0].Content)
	}
	if len(second.Tools) != 1 || second.Tools[0].Name != "echo" {
		t.Fatalf("unexpected agent tools: %+v", second.Tools)
	}
}

func TestGenerationCapFallback(t *testing.T) {
	echo := &echoAgent{}
	// The model keeps asking for the same tool and never produces a reply.
	client := &scriptedClient{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("1", "echo", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("2", "echo", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("3", "echo", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("4", "echo", "{}")}},
	}}

	runtime, err := NewRuntime(client, memory.NewManager(50), []Agent{echo}, WithMaxGenerations(3))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	reply, err := runtime.ProcessMessage(context.Background(), "s1", "loop forever")
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
	if len(client.requests) != 3 {
		t.Fatalf("expected 3 generations before the cap, got %d", len(client.requests))
	}
}

func TestTransferResetsGenerationBudget(t *testing.T) {
	echo := &echoAgent{}
	client := &scriptedClient{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("1", "echo", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("2", "transfer_to_echo_agent", "{}")}},
		{ToolCalls: []llm.ToolCall{toolCall("3", "echo", "{}")}},
		{Content: "recovered"},
	}}

	runtime, err := NewRuntime(client, memory.NewManager(50), []Agent{echo}, WithMaxGenerations(3))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	reply, err := runtime.ProcessMessage(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	// Without the reset the fourth generation would be past the cap.
	if reply != "recovered" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestUnknownToolIsReportedToModel(t *testing.T) {
	echo := &echoAgent{}
	client := &scriptedClient{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("1", "mystery_tool", "{}")}},
		{Content: "ok"},
	}}

	manager := memory.NewManager(50)
	runtime, err := NewRuntime(client, manager, []Agent{echo})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	if _, err := runtime.ProcessMessage(context.Background(), "s1", "do something odd"); err != nil {
		t.Fatalf("process message: %v", err)
	}

	var toolResult string
	for _, msg := range manager.History("s1") {
		if msg.Role == llm.RoleTool {
			toolResult = msg.Content
		}
	}
	if !strings.Contains(toolResult, "mystery_tool") {
		t.Fatalf("unexpected tool result: %q", toolResult)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	runtime, err := NewRuntime(&scriptedClient{}, memory.NewManager(10), []Agent{&echoAgent{}})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if _, err := runtime.ProcessMessage(context.Background(), "s1", "   "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestDuplicateTransferToolRejected(t *testing.T) {
	if _, err := NewRuntime(&scriptedClient{}, memory.NewManager(10), []Agent{&echoAgent{}, &echoAgent{}}); err == nil {
		t.Fatal("expected error for duplicate transfer tool")
	}
}
