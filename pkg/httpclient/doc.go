// Package httpclient はバックエンドAPIと通信する認証付きHTTPクライアントを提供する。
//
// Client.Do はすべての認証付きリクエストの唯一の入口であり、
// 保存済みのアクセストークンを Authorization ヘッダーに付与する。
// 401が返った場合はリフレッシュトークンでアクセストークンを更新し、
// 元のリクエストを1回だけ再送する。更新できない場合は SessionExpiredError を返す。
//
// Client.Send はログインや公開APIなど認証不要のリクエストに使用する。
// レスポンスは Decode で Result に変換できる。
package httpclient
