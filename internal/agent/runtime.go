package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zer0-os/ZAI/internal/llm"
	"github.com/zer0-os/ZAI/internal/memory"
	"github.com/zer0-os/ZAI/pkg/logger"
)

const (
	// defaultMaxGenerations 限制一轮对话中模型的连续生成次数，
	// 转交给新的智能体时计数器清零。
	defaultMaxGenerations = 3

	routingPrompt = "You are a routing agent that directs user requests to specialized agents. " +
		"Analyze each user message and determine which agent would be best suited to handle it."

	fallbackReply = "I'm sorry, I'm having trouble processing your request. Please try again later."
)

// Runtime 是多智能体运行时：先路由，再由目标智能体执行工具调用。
type Runtime struct {
	client         llm.Client
	messages       *memory.Manager
	agents         []Agent
	byTransferTool map[string]Agent
	maxGenerations int
	log            *slog.Logger
}

// RuntimeOption 定义运行时可选配置。
type RuntimeOption func(*Runtime)

// WithMaxGenerations 覆盖单轮对话的生成次数上限。
func WithMaxGenerations(limit int) RuntimeOption {
	return func(r *Runtime) {
		if limit > 0 {
			r.maxGenerations = limit
		}
	}
}

// WithLogger 覆盖运行时使用的日志器。
func WithLogger(log *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRuntime 创建运行时并注册智能体。
func NewRuntime(client llm.Client, messages *memory.Manager, agents []Agent, opts ...RuntimeOption) (*Runtime, error) {
	if client == nil {
		return nil, fmt.Errorf("未提供大模型客户端")
	}
	if messages == nil {
		messages = memory.NewManager(0)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("至少需要注册一个智能体")
	}

	r := &Runtime{
		client:         client,
		messages:       messages,
		agents:         agents,
		byTransferTool: make(map[string]Agent, len(agents)),
		maxGenerations: defaultMaxGenerations,
		log:            logger.Named("agent"),
	}
	for _, a := range agents {
		name := a.TransferTool().Name
		if name == "" {
			return nil, fmt.Errorf("智能体 %s 缺少转交工具", a.Name())
		}
		if _, ok := r.byTransferTool[name]; ok {
			return nil, fmt.Errorf("转交工具 %s 重复注册", name)
		}
		r.byTransferTool[name] = a
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// ProcessMessage 处理一条用户消息并返回最终回复。
// 每条新消息都从路由层重新开始，不继承上一条消息转交到的智能体。
func (r *Runtime) ProcessMessage(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("消息内容不能为空")
	}

	if err := r.messages.Append(ctx, sessionID, llm.Message{Role: llm.RoleUser, Content: text}); err != nil {
		r.log.Warn("归档用户消息失败", "session", sessionID, "error", err)
	}

	reply, err := r.generate(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if err := r.messages.Append(ctx, sessionID, llm.Message{Role: llm.RoleAssistant, Content: reply}); err != nil {
		r.log.Warn("归档回复消息失败", "session", sessionID, "error", err)
	}
	return reply, nil
}

func (r *Runtime) generate(ctx context.Context, sessionID string) (string, error) {
	var current Agent
	generations := 0

	for generations < r.maxGenerations {
		generations++

		resp, err := r.client.Generate(ctx, r.buildRequest(sessionID, current))
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			return resp.Content, nil
		}

		r.log.Debug("模型请求执行工具",
			"session", sessionID, "generation", generations, "tool_calls", len(resp.ToolCalls))

		if err := r.messages.Append(ctx, sessionID, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}); err != nil {
			r.log.Warn("归档工具调用消息失败", "session", sessionID, "error", err)
		}

		for _, call := range resp.ToolCalls {
			var result string
			if target, ok := r.byTransferTool[call.Function.Name]; ok {
				current = target
				generations = 0
				result = fmt.Sprintf("Transferring to %s", target.Name())
				r.log.Debug("转交至智能体", "session", sessionID, "agent", target.Name())
			} else {
				result = r.executeTool(ctx, current, call)
			}

			if err := r.messages.Append(ctx, sessionID, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			}); err != nil {
				r.log.Warn("归档工具结果失败", "session", sessionID, "error", err)
			}
		}
	}

	return fallbackReply, nil
}

// executeTool 在当前智能体上执行工具；路由层没有可执行的业务工具。
func (r *Runtime) executeTool(ctx context.Context, current Agent, call llm.ToolCall) string {
	candidates := r.agents
	if current != nil {
		candidates = append([]Agent{current}, r.agents...)
	}
	for _, a := range candidates {
		result, err := a.Invoke(ctx, call)
		if err == nil {
			return result
		}
		if !isUnknownTool(err) {
			r.log.Warn("工具执行失败", "tool", call.Function.Name, "agent", a.Name(), "error", err)
			return fmt.Sprintf("Error executing tool: %v", err)
		}
	}
	return fmt.Sprintf("Error executing tool: no agent found with tool method: %s", call.Function.Name)
}

func (r *Runtime) buildRequest(sessionID string, current Agent) llm.Request {
	var (
		system llm.Message
		tools  []llm.Tool
	)
	if current != nil {
		system = llm.Message{Role: llm.RoleSystem, Content: current.SystemPrompt()}
		tools = current.Tools()
	} else {
		system = llm.Message{Role: llm.RoleSystem, Content: routingPrompt}
		for _, a := range r.agents {
			tools = append(tools, a.TransferTool())
		}
	}

	history := r.messages.History(sessionID)
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, system)
	messages = append(messages, history...)
	return llm.Request{Messages: messages, Tools: tools}
}

// errUnknownTool marks an invoke against a tool the agent does not own.
type unknownToolError struct {
	name string
}

func (e *unknownToolError) Error() string {
	return fmt.Sprintf("未知工具: %s", e.name)
}

// ErrUnknownTool 构造未知工具错误，供智能体在 Invoke 中返回。
func ErrUnknownTool(name string) error {
	return &unknownToolError{name: name}
}

func isUnknownTool(err error) bool {
	_, ok := err.(*unknownToolError)
	return ok
}
