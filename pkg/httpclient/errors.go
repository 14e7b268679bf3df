package httpclient

import (
	"errors"
	"fmt"
)

// SessionExpiredError はアクセストークンを更新できずセッションが終了したことを表す。
// 呼び出し側は再ログインを促す必要がある。
type SessionExpiredError struct {
	// RenewalStatus はトークン更新エンドポイントが返したステータスコード。
	// リフレッシュトークンが存在せず更新を試みなかった場合は0。
	RenewalStatus int
}

// Error はエラーメッセージを返す。
func (e *SessionExpiredError) Error() string {
	if e.RenewalStatus == 0 {
		return "セッションの有効期限が切れました。再度ログインしてください (リフレッシュトークンなし)"
	}
	return fmt.Sprintf("セッションの有効期限が切れました。再度ログインしてください (トークン更新 status=%d)", e.RenewalStatus)
}

// IsSessionExpired はerrがSessionExpiredErrorを含むかを返す。
func IsSessionExpired(err error) bool {
	var target *SessionExpiredError
	return errors.As(err, &target)
}

// ErrInvalidRenewalResponse はトークン更新が200を返したが本文から
// アクセストークンを取り出せなかったことを表す。
var ErrInvalidRenewalResponse = errors.New("トークン更新レスポンスが不正です")
