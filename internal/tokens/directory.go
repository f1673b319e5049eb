package tokens

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resolver 定义代币目录检索的通用接口。
type Resolver interface {
	Resolve(symbol string) (Token, bool)
	Query(hint string) []Token
}

// Token 描述一个可供钱包引用的代币。
type Token struct {
	Symbol   string   `yaml:"symbol" json:"symbol"`
	Name     string   `yaml:"name" json:"name"`
	Address  string   `yaml:"address" json:"address"`
	Decimals int      `yaml:"decimals" json:"decimals"`
	ChainID  int64    `yaml:"chain_id" json:"chain_id"`
	Tags     []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Directory 通过加载 YAML 文件提供静态代币检索能力。
type Directory struct {
	items      []Token
	bySymbol   map[string]Token
	maxResults int
}

// NewDirectory 创建静态代币目录实例。
func NewDirectory(items []Token, maxResults int) *Directory {
	if maxResults <= 0 {
		maxResults = 5
	}
	bySymbol := make(map[string]Token, len(items))
	for _, item := range items {
		bySymbol[strings.ToUpper(strings.TrimSpace(item.Symbol))] = item
	}
	return &Directory{
		items:      items,
		bySymbol:   bySymbol,
		maxResults: maxResults,
	}
}

// LoadDirectory 从 YAML 文件加载代币条目。
func LoadDirectory(path string, maxResults int) (*Directory, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("代币目录文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析代币目录路径失败: %w", err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取代币目录文件失败: %w", err)
	}

	var doc struct {
		Tokens []Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("解析代币目录文件失败: %w", err)
	}

	return NewDirectory(doc.Tokens, maxResults), nil
}

// Resolve 按符号精确查找代币，大小写不敏感。
func (d *Directory) Resolve(symbol string) (Token, bool) {
	if d == nil {
		return Token{}, false
	}
	token, ok := d.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return token, ok
}

// Query 根据提示词进行简单匹配，返回最多 maxResults 个结果。
func (d *Directory) Query(hint string) []Token {
	if d == nil {
		return nil
	}

	hint = strings.ToLower(strings.TrimSpace(hint))

	results := make([]Token, 0, d.maxResults)
	for _, item := range d.items {
		if matches(item, hint) {
			results = append(results, item)
			if len(results) >= d.maxResults {
				break
			}
		}
	}
	return results
}

// All 返回目录内的全部代币。
func (d *Directory) All() []Token {
	if d == nil {
		return nil
	}
	out := make([]Token, len(d.items))
	copy(out, d.items)
	return out
}

func matches(token Token, hint string) bool {
	if hint == "" {
		return true
	}
	if strings.Contains(strings.ToLower(token.Symbol), hint) {
		return true
	}
	if strings.Contains(strings.ToLower(token.Name), hint) {
		return true
	}
	for _, tag := range token.Tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if strings.Contains(normalized, hint) || strings.Contains(hint, normalized) {
			return true
		}
	}
	return false
}

// Ensure Directory 实现 Resolver 接口。
var _ Resolver = (*Directory)(nil)
