package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
)

// DefaultKeyPath is where the daemon looks for the encrypted keyfile when
// no path is configured. The keyfile itself is produced by an external
// client (geth account new) and treated as opaque input here.
const DefaultKeyPath = "./keyfile"

// LoadKey reads an encrypted geth keystore file and decrypts the private key.
func LoadKey(path, password string) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultKeyPath
	}
	if password == "" {
		return nil, xerrors.New(CodeKeyLoadFailure, "未提供 keyfile 密码")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(CodeKeyLoadFailure, err, fmt.Sprintf("读取 keyfile %s 失败", path))
	}
	key, err := keystore.DecryptKey(content, password)
	if err != nil {
		return nil, xerrors.Wrap(CodeKeyLoadFailure, err, "解密 keyfile 失败")
	}
	return key.PrivateKey, nil
}

// ParsePrivateKey decodes a raw hex private key, with or without 0x prefix.
// Used for the development flow where the key is injected via environment.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, xerrors.New(CodeKeyLoadFailure, "私钥不能为空")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, xerrors.Wrap(CodeKeyLoadFailure, err, "解析私钥失败")
	}
	return key, nil
}
