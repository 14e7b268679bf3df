package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/tidwall/gjson"
)

const (
	// KeyNonField はフィールドに紐付かないエラーのキー。
	KeyNonField = "non_field_errors"
	// KeyDetail は本文から構造化エラーを取り出せない場合のキー。
	KeyDetail = "detail"
)

// FieldErrors はフィールド名ごとのエラーメッセージ。
// ネストしたフィールドは "items.product" のようにドットで連結される。
type FieldErrors map[string][]string

// Add はフィールドにメッセージを追加する。
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// First はkeysの順に探して最初に見つかったメッセージを返す。
// keysを省略した場合はフィールド名の辞書順で探す。
func (f FieldErrors) First(keys ...string) string {
	if len(keys) == 0 {
		keys = make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		if msgs := f[k]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// Result はAPI呼び出しの結果。
// OKがtrueの場合はDataが、falseの場合はErrorsが有効になる。
type Result[T any] struct {
	// OK はレスポンスが2xxだったか。
	OK bool
	// Status はHTTPステータスコード。送信前の検証で失敗した場合は0。
	Status int
	// Data はデシリアライズされたレスポンス本文。
	Data T
	// Errors はエラーレスポンスから取り出したフィールドエラー。
	Errors FieldErrors
}

// Invalid は送信前の検証で失敗したResultを返す。
func Invalid[T any](errs FieldErrors) Result[T] {
	return Result[T]{Errors: errs}
}

// Decode はレスポンスを読み取ってResultに変換し、本文を閉じる。
// 2xxの場合は本文をTにデシリアライズする。空の本文は許容する。
// それ以外の場合は本文をFieldErrorsとして解釈する。
func Decode[T any](resp *http.Response) (Result[T], error) {
	defer resp.Body.Close()

	res := Result[T]{Status: resp.StatusCode}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return res, fmt.Errorf("レスポンスボディの読み込みに失敗: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Errors = ParseFieldErrors(body, resp.StatusCode)
		return res, nil
	}

	res.OK = true
	if len(bytes.TrimSpace(body)) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(body, &res.Data); err != nil {
		return res, fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return res, nil
}

// ParseFieldErrors はエラーレスポンスの本文をFieldErrorsに正規化する。
//
// オブジェクトは各キーをフィールドとし、文字列・配列・ネストしたオブジェクトを
// 再帰的に展開する。トップレベルの配列は non_field_errors に入る。
// JSONでない本文や空の本文は detail に入る。
func ParseFieldErrors(body []byte, status int) FieldErrors {
	errs := FieldErrors{}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		msg := string(trimmed)
		if msg == "" {
			msg = http.StatusText(status)
		}
		errs.Add(KeyDetail, msg)
		return errs
	}

	root := gjson.ParseBytes(trimmed)
	switch {
	case root.IsObject():
		flatten("", root, errs)
	case root.IsArray():
		collect(KeyNonField, root, errs)
	default:
		addScalar(KeyDetail, root, errs)
	}

	if len(errs) == 0 {
		errs.Add(KeyDetail, http.StatusText(status))
	}
	return errs
}

// flatten はオブジェクトの各キーを展開する。
func flatten(prefix string, obj gjson.Result, errs FieldErrors) {
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if prefix != "" {
			key = prefix + "." + key
		}
		switch {
		case v.IsObject():
			flatten(key, v, errs)
		case v.IsArray():
			collect(key, v, errs)
		default:
			addScalar(key, v, errs)
		}
		return true
	})
}

// collect は配列の要素をすべてkeyのメッセージとして追加する。
func collect(key string, arr gjson.Result, errs FieldErrors) {
	arr.ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.IsObject():
			flatten(key, v, errs)
		case v.IsArray():
			collect(key, v, errs)
		default:
			addScalar(key, v, errs)
		}
		return true
	})
}

func addScalar(key string, v gjson.Result, errs FieldErrors) {
	switch v.Type {
	case gjson.Null:
		return
	case gjson.String:
		errs.Add(key, v.String())
	default:
		errs.Add(key, v.Raw)
	}
}
