package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/zer0-os/ZAI/internal/agent"
	"github.com/zer0-os/ZAI/internal/api"
	"github.com/zer0-os/ZAI/internal/auth"
	"github.com/zer0-os/ZAI/internal/config"
	"github.com/zer0-os/ZAI/internal/llm"
	"github.com/zer0-os/ZAI/internal/llm/openai"
	"github.com/zer0-os/ZAI/internal/memory"
	"github.com/zer0-os/ZAI/internal/observability/alerting"
	"github.com/zer0-os/ZAI/internal/storage/mysql"
	"github.com/zer0-os/ZAI/internal/stream"
	"github.com/zer0-os/ZAI/internal/tokens"
	"github.com/zer0-os/ZAI/internal/txwatch"
	"github.com/zer0-os/ZAI/internal/wallet"
	"github.com/zer0-os/ZAI/internal/wallet/lifi"
	"github.com/zer0-os/ZAI/internal/web3/provider"
	"github.com/zer0-os/ZAI/pkg/logger"
)

// main 是 ZAI 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("zaid 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	web := flag.Bool("web", false, "以 HTTP/websocket 服务模式启动，默认为交互式控制台")
	flag.Parse()

	configPath := os.Getenv("ZAI_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "zai.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer registry.Close()

	web3Client, err := registry.DefaultClient()
	if err != nil {
		return err
	}
	if snapshot, err := web3Client.FetchChainSnapshot(ctx); err != nil {
		logger.L().Warn("获取链状态失败", "chain", registry.DefaultChain(), "error", err)
	} else {
		logger.L().Info("链连接就绪",
			"chain", snapshot.Name,
			"chain_id", snapshot.ChainID,
			"block", snapshot.BlockNumber)
	}

	key, err := loadWalletKey(cfg)
	if err != nil {
		return err
	}
	w := wallet.New(web3Client, key)
	if err := w.AddAdapter(lifi.New(w)); err != nil {
		return err
	}

	var directory *tokens.Directory
	if cfg.Tokens.Source != "" {
		directory, err = tokens.LoadDirectory(cfg.Tokens.Source, cfg.Tokens.MaxResults)
		if err != nil {
			return err
		}
		for _, token := range directory.All() {
			if token.ChainID == 0 || token.ChainID == registry.DefaultChainID() {
				if err := w.TrackToken(token.Address); err != nil {
					logger.L().Warn("跟踪代币失败", "symbol", token.Symbol, "error", err)
				}
			}
		}
	}

	// 持久化后端：mysql 驱动同时承载交易记录与会话归档。
	var (
		txStore txwatch.Store
		archive memory.Archive
	)
	switch cfg.Storage.Driver {
	case "", "memory":
		txStore = txwatch.NewMemoryStore()
	case "mysql":
		store, err := mysql.NewTxStore(ctx, mysql.Config{
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Storage.ConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		txStore = store
		archive = mysql.NewMessageRepositoryWithDB(store.DB())
	default:
		return fmt.Errorf("未知的存储驱动: %s", cfg.Storage.Driver)
	}
	defer txStore.Close()

	var queue txwatch.Queue
	switch cfg.TxWatch.Queue.Driver {
	case "", "memory":
		queue = txwatch.NewMemoryQueue(1024)
	case "redis":
		q, err := txwatch.NewRedisQueue(txwatch.RedisQueueConfig{
			Address:   cfg.TxWatch.Queue.Redis.Address,
			Password:  cfg.TxWatch.Queue.Redis.Password,
			DB:        cfg.TxWatch.Queue.Redis.DB,
			Queue:     cfg.TxWatch.Queue.Redis.Queue,
			BlockWait: time.Duration(cfg.TxWatch.Queue.Redis.BlockWait) * time.Second,
		})
		if err != nil {
			return err
		}
		queue = q
	case "rabbitmq":
		q, err := txwatch.NewRabbitMQQueue(txwatch.RabbitMQConfig{
			URL:        cfg.TxWatch.Queue.RabbitMQ.URL,
			Queue:      cfg.TxWatch.Queue.RabbitMQ.Queue,
			Prefetch:   cfg.TxWatch.Queue.RabbitMQ.Prefetch,
			Durable:    cfg.TxWatch.Queue.RabbitMQ.Durable,
			AutoDelete: cfg.TxWatch.Queue.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		queue = q
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.TxWatch.Queue.Driver)
	}
	defer queue.Close()

	txService := txwatch.NewService(txStore, queue, registry.DefaultChain(), cfg.TxWatch.MaxRetries)
	watcher := txwatch.NewWatcher(web3Client, txStore, queue, queue,
		txwatch.WithWorkerCount(cfg.TxWatch.Workers),
		txwatch.WithPollInterval(time.Duration(cfg.TxWatch.PollIntervalSeconds)*time.Second),
		txwatch.WithAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{})),
	)
	go func() {
		if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("交易监听器异常退出", "error", err)
		}
	}()

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	var memoryOpts []memory.Option
	if archive != nil {
		memoryOpts = append(memoryOpts, memory.WithArchive(archive))
	}
	messages := memory.NewManager(cfg.Agent.MemoryDepth, memoryOpts...)

	walletAgentOpts := []agent.WalletAgentOption{
		agent.WithTxRecorder(txService),
	}
	if directory != nil {
		walletAgentOpts = append(walletAgentOpts, agent.WithTokenDirectory(directory))
	}
	walletAgent := agent.NewWalletAgent(w, walletAgentOpts...)

	runtime, err := agent.NewRuntime(llmClient, messages, []agent.Agent{walletAgent},
		agent.WithMaxGenerations(cfg.Agent.MaxGenerations))
	if err != nil {
		return err
	}

	if *web {
		server := api.NewServer(cfg.Server.Address, runtime, w,
			api.WithStaticDir(cfg.Server.StaticDir),
			api.WithTxService(txService),
			api.WithChainStatus(web3Client),
			api.WithGuard(auth.NewGuard(cfg.Auth.Mode, cfg.Auth.APIKeys)),
			api.WithMaxConnections(cfg.Server.MaxConnections),
		)
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	return runConsole(ctx, runtime)
}

// runConsole 在终端上与智能体交互，输入 exit 退出。
func runConsole(ctx context.Context, runtime *agent.Runtime) error {
	console := stream.NewConsoleStream(os.Stdin, os.Stdout)
	defer console.Close()

	sessionID := "console"
	for {
		text, err := console.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return nil
		}
		if text == "" {
			continue
		}
		replyCtx := stream.WithNotifier(ctx, func(msg stream.Message) {
			_ = console.SendPartial(ctx, msg)
		})
		reply, err := runtime.ProcessMessage(replyCtx, sessionID, text)
		if err != nil {
			_ = console.Send(ctx, stream.Message{Type: stream.TypeError, Content: err.Error()})
			continue
		}
		_ = console.Send(ctx, stream.Message{Type: stream.TypeMessage, Content: reply})
	}
}

// loadWalletKey 依次尝试环境变量私钥与加密 keyfile。都缺失时返回
// 只读钱包所需的空密钥。
func loadWalletKey(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	if raw := strings.TrimSpace(os.Getenv(cfg.Wallet.PrivateKeyEnv)); raw != "" {
		return wallet.ParsePrivateKey(raw)
	}

	password := strings.TrimSpace(cfg.Wallet.KeyPassword)
	if password == "" && cfg.Wallet.KeyPasswordEnv != "" {
		password = strings.TrimSpace(os.Getenv(cfg.Wallet.KeyPasswordEnv))
	}
	if password == "" {
		logger.L().Warn("未提供 keyfile 密码，钱包以只读模式启动")
		return nil, nil
	}
	key, err := wallet.LoadKey(cfg.Wallet.KeyPath, password)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}
