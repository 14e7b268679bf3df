// ordora CLIのエントリポイント。
// ストアフロントAPIへのログイン、商品・注文・支払いの操作をコマンドラインから行う。
// 認証トークンはSQLiteファイルに保存し、コマンドの実行をまたいでセッションを維持する。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/config"
	"github.com/Olatundeawo/ordora/internal/logging"
	"github.com/Olatundeawo/ordora/internal/session"
	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/credential"
	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// 終了コード。
const (
	exitOK             = 0
	exitError          = 1
	exitSessionExpired = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := realMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// realMain はフラグと設定を読み込み、コマンドを実行して終了コードを返す。
func realMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ordora", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "設定ファイルのパス")
	interval := fs.Duration("interval", 3*time.Second, "watchコマンドの問い合わせ間隔")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ordora [-config path] [-interval d] <command> [args]")
		printCommands(stderr)
	}
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitError
	}
	if *interval <= 0 {
		fmt.Fprintf(stderr, "-interval は0より大きい値を指定してください: %s\n", *interval)
		fs.Usage()
		return exitError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "設定の読み込みに失敗: %v\n", err)
		return exitError
	}
	if cfg.API.BaseURL == "" {
		fmt.Fprintln(stderr, "APIのベースURLが設定されていません (ORDORA_BASE_URL)")
		return exitError
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	store, err := credential.OpenSQLite(ctx, cfg.Credentials.Path, logger)
	if err != nil {
		logger.Error("[CLI] 認証情報ストアを開けませんでした", zap.Error(err))
		return exitError
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	gw := httpclient.New(cfg.API.BaseURL, store,
		httpclient.WithTimeout(cfg.API.Timeout),
		httpclient.WithLogger(logger),
		httpclient.WithRenewalCoalescing(!cfg.API.DisableRenewalCoalescing),
		httpclient.WithRegisterer(reg),
	)
	sess := session.New(
		storefront.New(gw, storefront.WithLogger(logger)),
		store,
		session.WithLogger(logger),
	)
	if _, err := sess.Restore(ctx); err != nil {
		logger.Error("[CLI] セッションの復元に失敗しました", zap.Error(err))
		return exitError
	}

	app := &app{sess: sess, out: stdout, interval: *interval}
	err = app.run(ctx, fs.Args())
	logMetrics(logger, reg)

	switch {
	case err == nil:
		return exitOK
	case httpclient.IsSessionExpired(err):
		fmt.Fprintln(stderr, "セッションの有効期限が切れました。もう一度ログインしてください: ordora login <email> <password>")
		return exitSessionExpired
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		printCommands(stderr)
		return exitError
	case errors.Is(err, errRejected):
		return exitError
	default:
		fmt.Fprintf(stderr, "エラー: %v\n", err)
		return exitError
	}
}

// logMetrics はGatewayのカウンタをDEBUGレベルで出力する。
func logMetrics(logger *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Debug("[CLI] メトリクスの収集に失敗しました", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{
				zap.String("name", mf.GetName()),
				zap.Float64("value", m.GetCounter().GetValue()),
			}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			logger.Debug("[CLI] メトリクス", fields...)
		}
	}
}
