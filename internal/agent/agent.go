package agent

import (
	"context"

	"github.com/zer0-os/ZAI/internal/llm"
)

// Agent 是运行时可调度的专职智能体。
//
// 每个智能体暴露一组工具，并通过一个 transfer 工具向路由层声明自己能
// 处理哪类请求。运行时在路由阶段只看到 transfer 工具，转交之后才把
// 智能体的完整工具集交给模型。
type Agent interface {
	// Name 返回智能体标识。
	Name() string

	// SystemPrompt 返回该智能体的系统提示词。
	SystemPrompt() string

	// Tools 返回该智能体可执行的工具描述。
	Tools() []llm.Tool

	// TransferTool 返回路由层使用的转交工具描述。
	TransferTool() llm.Tool

	// Invoke 执行一次工具调用，返回提供给模型的结果文本。
	Invoke(ctx context.Context, call llm.ToolCall) (string, error)
}

// objectSchema 构造 OpenAI function 参数的 JSON Schema。
func objectSchema(required []string, properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}
