package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleStream 通过标准输入输出与用户交互，用于本地命令行模式。
type ConsoleStream struct {
	reader *bufio.Reader
	writer io.Writer

	mu     sync.Mutex
	closed bool
}

// NewConsoleStream 创建控制台消息流。
func NewConsoleStream(in io.Reader, out io.Writer) *ConsoleStream {
	return &ConsoleStream{
		reader: bufio.NewReader(in),
		writer: out,
	}
}

// Send 输出一条完整回复。
func (s *ConsoleStream) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	_, err := fmt.Fprintf(s.writer, "\n%s\n\n", msg.Content)
	return err
}

// SendPartial 输出一条进度消息。
func (s *ConsoleStream) SendPartial(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	_, err := fmt.Fprintf(s.writer, "... %s\n", msg.Content)
	return err
}

// Receive 读取下一行用户输入。输入 exit 或 quit 返回 io.EOF。
func (s *ConsoleStream) Receive(ctx context.Context) (string, error) {
	if _, err := fmt.Fprint(s.writer, "> "); err != nil {
		return "", err
	}
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		line := strings.TrimSpace(res.line)
		if line == "exit" || line == "quit" {
			return "", io.EOF
		}
		return line, nil
	}
}

// Close 关闭控制台流。
func (s *ConsoleStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ MessageStream = (*ConsoleStream)(nil)
