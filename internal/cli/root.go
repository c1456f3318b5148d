// Package cli 实现 counsel 控制台客户端命令
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/safety"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/config"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/ai"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

const deviceKey = kv.Prefix + "device_id"

// app 持有一次命令执行期间的共享依赖。
type app struct {
	// sender 非 nil 时代替配置中的模型
	sender ai.Sender

	dbPath string
	store  *kv.SQLiteStore
	conv   *counsel.Conversation
	close  func()
}

// Execute 执行根命令
func Execute() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "counsel",
		Short: "KFM Counsel console client",
		Long: `KFM Counsel console client.

Runs counselling sessions as a guest on this device. Sessions and the
profile are kept in the local SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "local database path (default: LOCAL_DB_PATH)")

	root.AddCommand(newChatCmd(a), newAssessCmd(a), newSessionsCmd(a), newStatusCmd(a))
	return root
}

func (a *app) open(ctx context.Context, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dbPath == "" {
		a.dbPath = cfg.Storage.LocalPath
	}

	store, err := kv.NewSQLiteStore(a.dbPath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	a.store = store

	sender := a.sender
	if sender == nil {
		sender = ai.Unavailable{}
		if cfg.AI.Enabled() {
			svc, err := ai.NewFromConfig(ctx, cfg.AI)
			if err != nil {
				fmt.Fprintf(stderr, "warning: model unavailable, replies are disabled: %v\n", err)
			} else {
				sender = svc
			}
		}
	}

	manager := counsel.NewManager(counsel.NewFactory(counsel.Deps{
		Local:        store,
		Model:        sender,
		Detector:     safety.Scanner{},
		HistoryLimit: cfg.AI.HistoryLimit,
	}))
	conv, err := manager.Get(ctx, nil)
	if err != nil {
		manager.Close()
		store.Close()
		return err
	}
	a.conv = conv
	a.close = func() {
		manager.Close()
		store.Close()
	}
	return nil
}

func (a *app) shutdown() {
	if a.close != nil {
		a.close()
		a.close = nil
	}
}

// deviceID 返回本机的设备标识，首次调用时生成并保存。
func (a *app) deviceID(ctx context.Context) (string, error) {
	raw, ok, err := a.store.Get(ctx, deviceKey)
	if err != nil {
		return "", err
	}
	if ok && len(raw) > 0 {
		return string(raw), nil
	}
	id := uuid.NewString()
	if err := a.store.Set(ctx, deviceKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
