package tokens

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleTokens() []Token {
	return []Token{
		{Symbol: "WETH", Name: "Wrapped Ether", Address: "0x1", Decimals: 18, ChainID: 1, Tags: []string{"wrapped"}},
		{Symbol: "USDC", Name: "USD Coin", Address: "0x2", Decimals: 6, ChainID: 1, Tags: []string{"stablecoin"}},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x3", Decimals: 18, ChainID: 1, Tags: []string{"stablecoin"}},
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	directory := NewDirectory(sampleTokens(), 5)

	for _, symbol := range []string{"usdc", "USDC", " Usdc "} {
		token, ok := directory.Resolve(symbol)
		if !ok {
			t.Fatalf("expected to resolve %q", symbol)
		}
		if token.Decimals != 6 {
			t.Fatalf("unexpected decimals: %d", token.Decimals)
		}
	}

	if _, ok := directory.Resolve("DOGE"); ok {
		t.Fatal("expected miss for unknown symbol")
	}
}

func TestQueryMatchesNameAndTags(t *testing.T) {
	directory := NewDirectory(sampleTokens(), 5)

	stables := directory.Query("stablecoin")
	if len(stables) != 2 {
		t.Fatalf("expected 2 stablecoins, got %d", len(stables))
	}
	if results := directory.Query("wrapped"); len(results) != 1 || results[0].Symbol != "WETH" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestQueryHonorsMaxResults(t *testing.T) {
	directory := NewDirectory(sampleTokens(), 2)

	if results := directory.Query(""); len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestLoadDirectory(t *testing.T) {
	content := `tokens:
  - symbol: USDC
    name: USD Coin
    address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
    decimals: 6
    chain_id: 1
    tags: [stablecoin]
`
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	directory, err := LoadDirectory(path, 10)
	if err != nil {
		t.Fatalf("load directory: %v", err)
	}
	token, ok := directory.Resolve("usdc")
	if !ok {
		t.Fatal("expected to resolve USDC")
	}
	if token.ChainID != 1 || token.Decimals != 6 {
		t.Fatalf("unexpected token: %+v", token)
	}
	if len(directory.All()) != 1 {
		t.Fatalf("unexpected directory size: %d", len(directory.All()))
	}
}

func TestLoadDirectoryErrors(t *testing.T) {
	if _, err := LoadDirectory("", 5); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := LoadDirectory(filepath.Join(t.TempDir(), "missing.yaml"), 5); err == nil {
		t.Fatal("expected error for missing file")
	}
}
