// Package config はクライアントと開発用バックエンドの設定を読み込む。
//
// 読み込みの優先順位:
//  1. 明示的なパス（-config フラグ）
//  2. 環境変数 CONFIG_PATH のパス
//  3. 作業ディレクトリの ordora.yaml
//  4. 環境変数のみ
//
// いずれの場合も事前に作業ディレクトリの .env を環境変数として読み込み、
// ファイルの値の上に環境変数を重ねる。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultFile は作業ディレクトリから探す設定ファイル名。
const DefaultFile = "ordora.yaml"

// legacyBaseURLEnv はモバイルクライアントで使われていたベースURLの環境変数名。
const legacyBaseURLEnv = "EXPO_PUBLIC_BASE_URL"

// Config はルートの設定。
type Config struct {
	Env         string            `yaml:"env" env:"ORDORA_ENV" env-default:"local"`
	API         APIConfig         `yaml:"api"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Backend     BackendConfig     `yaml:"backend"`
}

// APIConfig はバックエンドAPIへの接続設定。
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"ORDORA_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"ORDORA_API_TIMEOUT" env-default:"30s"`
	// DisableRenewalCoalescing が true の場合、同時に発生したトークン更新をまとめない。
	DisableRenewalCoalescing bool `yaml:"disable_renewal_coalescing" env:"ORDORA_DISABLE_RENEWAL_COALESCING"`
}

// CredentialsConfig は認証トークンの保存先。
type CredentialsConfig struct {
	// Path はSQLiteファイルのパス。":memory:" の場合は永続化しない。
	Path string `yaml:"path" env:"ORDORA_CREDENTIALS_PATH" env-default:"ordora.db"`
}

// BackendConfig は開発用バックエンドの設定。
type BackendConfig struct {
	Port           string        `yaml:"port" env:"ORDORA_BACKEND_PORT" env-default:"8000"`
	JWTSecret      string        `yaml:"jwt_secret" env:"ORDORA_JWT_SECRET" env-default:"ordora-dev-secret"`
	AccessTTL      time.Duration `yaml:"access_ttl" env:"ORDORA_ACCESS_TTL" env-default:"5m"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl" env:"ORDORA_REFRESH_TTL" env-default:"24h"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ORDORA_ALLOWED_ORIGINS" env-default:"*"`
	WebhookSecret  string        `yaml:"webhook_secret" env:"ORDORA_WEBHOOK_SECRET" env-default:"ordora-dev-webhook"`
}

// MustLoad はLoadのラッパーで、失敗時にpanicする。
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load は設定を読み込む。
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config
	switch {
	case path != "":
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH"), &cfg); err != nil {
			return nil, err
		}
	case fileExists(DefaultFile):
		if err := readFile(DefaultFile, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("環境変数からの設定読み込みに失敗: %w", err)
		}
	}

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = os.Getenv(legacyBaseURLEnv)
	}
	return &cfg, nil
}

// readFile は設定ファイルを読み込み、その上に環境変数を重ねる。
func readFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("設定ファイル %q が見つかりません: %w", path, err)
	}
	// ReadConfig はファイルを読んだ後に環境変数も反映する。
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("設定ファイル %q の読み込みに失敗: %w", path, err)
	}
	return nil
}

// loadDotEnv は .env が存在すれば環境変数として読み込む。既存の環境変数は上書きしない。
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf(".env の読み込みに失敗: %w", err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
