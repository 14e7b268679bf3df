// Package backend はストアフロントAPIと同じHTTP契約を持つ開発用バックエンドを提供する。
//
// 状態はすべてメモリ上に保持し、プロセス終了で消える。
// アクセストークンはHS256のJWT、リフレッシュトークンは有効期限付きの不透明なUUID。
// 決済は実際の決済事業者を呼ばず、webhookエンドポイントで支払い完了を通知する。
package backend
