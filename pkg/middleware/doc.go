// Package middleware は開発用バックエンドのGinルーターで使用する共通ミドルウェアを提供する。
//
// アクセストークン（JWT）の発行と検証、パニックリカバリ、CORS設定、
// Prometheusによるリクエスト計測を含む。
package middleware
