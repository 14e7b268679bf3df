package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/Olatundeawo/ordora/internal/session"
	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

var (
	// errUsage はコマンドの引数が不正であることを表す。
	errUsage = errors.New("引数が不正です")
	// errRejected はバックエンドがリクエストを受け付けなかったことを表す。
	errRejected = errors.New("リクエストが拒否されました")
)

// app はコマンドの実行に必要な状態。
type app struct {
	sess     *session.Session
	out      io.Writer
	interval time.Duration
}

// command はCLIのサブコマンド。
type command struct {
	// usage は引数の書式。
	usage string
	// minArgs は必要な引数の最小数。
	minArgs int
	// run はコマンドの本体。
	run func(ctx context.Context, a *app, args []string) error
}

// commands はサブコマンドの一覧。
var commands = map[string]command{
	"login":           {usage: "<email> <password>", minArgs: 2, run: cmdLogin},
	"register":        {usage: "<email> <name> <password> <producer|customer>", minArgs: 4, run: cmdRegister},
	"logout":          {run: cmdLogout},
	"goods":           {run: cmdGoods},
	"my-goods":        {run: cmdMyGoods},
	"product":         {usage: "<id>", minArgs: 1, run: cmdProduct},
	"add-product":     {usage: "<name> <description> <price> <quality>", minArgs: 4, run: cmdAddProduct},
	"delete-product":  {usage: "<id>", minArgs: 1, run: cmdDeleteProduct},
	"orders":          {run: cmdOrders},
	"producer-orders": {run: cmdProducerOrders},
	"order":           {usage: "<id>", minArgs: 1, run: cmdOrder},
	"buy":             {usage: "<productID> <quantity> [<productID> <quantity> ...]", minArgs: 2, run: cmdBuy},
	"pay":             {usage: "<orderID>", minArgs: 1, run: cmdPay},
	"payments":        {usage: "[pending|paid|successful|failed]", run: cmdPayments},
	"watch":           {usage: "<reference>", minArgs: 1, run: cmdWatch},
	"dashboard":       {run: cmdDashboard},
}

// printCommands はサブコマンドの一覧を出力する。
func printCommands(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Fprintln(w, "commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s %s\n", name, commands[name].usage)
	}
}

// run はサブコマンドを実行する。セッション切れの場合はローカルの状態を破棄する。
func (a *app) run(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: 不明なコマンド %q", errUsage, args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("%w: ordora %s %s", errUsage, args[0], cmd.usage)
	}
	return a.sess.Observe(ctx, cmd.run(ctx, a, args[1:]))
}

// emit はResultをJSONで出力する。成功しなかった場合はステータスとエラーを出力してerrRejectedを返す。
func emit[T any](a *app, res httpclient.Result[T], err error) error {
	if err != nil {
		return err
	}
	if !res.OK {
		if werr := a.write(map[string]any{"status": res.Status, "errors": res.Errors}); werr != nil {
			return werr
		}
		return errRejected
	}
	return a.write(res.Data)
}

func (a *app) write(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("出力に失敗: %w", err)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: IDは正の整数で指定してください: %q", errUsage, s)
	}
	return id, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	res, err := a.sess.Login(ctx, args[0], args[1])
	return emit(a, res, err)
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	res, err := a.sess.Register(ctx, storefront.RegisterInput{
		Email:    args[0],
		Name:     args[1],
		Password: args[2],
		Role:     storefront.Role(args[3]),
	})
	return emit(a, res, err)
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.sess.Logout(ctx); err != nil {
		return err
	}
	return a.write(map[string]string{"status": "logged_out"})
}

func cmdGoods(ctx context.Context, a *app, _ []string) error {
	res, err := a.sess.API().ListGoods(ctx)
	return emit(a, res, err)
}

func cmdMyGoods(ctx context.Context, a *app, _ []string) error {
	res, err := a.sess.API().MyGoods(ctx)
	return emit(a, res, err)
}

func cmdProduct(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	res, err := a.sess.API().GetProduct(ctx, id)
	return emit(a, res, err)
}

func cmdAddProduct(ctx context.Context, a *app, args []string) error {
	quality, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("%w: 在庫数は整数で指定してください: %q", errUsage, args[3])
	}
	res, err := a.sess.API().CreateProduct(ctx, storefront.ProductInput{
		Name:        args[0],
		Description: args[1],
		Price:       args[2],
		Quality:     quality,
	})
	return emit(a, res, err)
}

func cmdDeleteProduct(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	res, err := a.sess.API().DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if !res.OK {
		return emit(a, res, nil)
	}
	return a.write(map[string]any{"deleted": id})
}

func cmdOrders(ctx context.Context, a *app, _ []string) error {
	res, err := a.sess.API().CustomerOrders(ctx)
	return emit(a, res, err)
}

func cmdProducerOrders(ctx context.Context, a *app, _ []string) error {
	res, err := a.sess.API().ProducerOrders(ctx)
	return emit(a, res, err)
}

func cmdOrder(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	res, err := a.sess.API().CustomerOrder(ctx, id)
	return emit(a, res, err)
}

// cmdBuy は商品をカートに入れて注文する。
func cmdBuy(ctx context.Context, a *app, args []string) error {
	if len(args)%2 != 0 {
		return fmt.Errorf("%w: 商品IDと数量は組で指定してください", errUsage)
	}
	for i := 0; i < len(args); i += 2 {
		id, err := parseID(args[i])
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(args[i+1])
		if err != nil {
			return fmt.Errorf("%w: 数量は整数で指定してください: %q", errUsage, args[i+1])
		}
		product, err := a.sess.API().GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if !product.OK {
			return emit(a, product, nil)
		}
		if err := a.sess.Cart().Add(product.Data, qty); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
	}
	res, err := a.sess.Checkout(ctx)
	return emit(a, res, err)
}

func cmdPay(ctx context.Context, a *app, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	res, err := a.sess.API().CreateQRPayment(ctx, id)
	return emit(a, res, err)
}

func cmdPayments(ctx context.Context, a *app, args []string) error {
	res, err := a.sess.API().CustomerPayments(ctx)
	if err == nil && res.OK && len(args) > 0 {
		res.Data = storefront.FilterPayments(res.Data, storefront.PaymentState(args[0]))
	}
	return emit(a, res, err)
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	status, err := a.sess.API().WatchPayment(ctx, args[0], a.interval)
	if err != nil {
		return err
	}
	return a.write(status)
}

func cmdDashboard(ctx context.Context, a *app, _ []string) error {
	res, err := a.sess.API().ProducerDashboard(ctx)
	return emit(a, res, err)
}
