// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // コンテナにタイムゾーンDBがない場合に備えて埋め込む

	"github.com/joho/godotenv"
)

// Config はバックエンドとCLIが共有する設定。
type Config struct {
	// Port はバックエンドのリッスンポート。
	Port string
	// BackendURL はクライアントが接続するバックエンドのベースURL。
	BackendURL string
	// DBPath はSQLiteデータベースのパス。
	DBPath string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
	// LogLevel はログレベル。
	LogLevel string
	// DevMode は開発用トークン発行エンドポイントを有効にするかどうか。
	DevMode bool
	// Token はCLIが使う認証トークン。空の場合は認証ヘッダーを付けない。
	Token string
	// Location は通知の判定と日時表示に使う基準タイムゾーン。
	Location *time.Location
}

// Load は .env ファイル（存在する場合）と環境変数から設定を読み込む。
// 未設定の項目には開発環境向けの既定値を使う。
func Load() (*Config, error) {
	// .env がなくてもエラーにしない。既存の環境変数は上書きされない。
	_ = godotenv.Load()

	tz := getEnvOr("TIMEZONE", "Asia/Colombo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONEが不正です: %w", err)
	}

	devMode, err := parseBool(getEnvOr("DEV_MODE", "false"))
	if err != nil {
		return nil, fmt.Errorf("DEV_MODEが不正です: %w", err)
	}

	return &Config{
		Port:        getEnvOr("PORT", "5000"),
		BackendURL:  strings.TrimRight(getEnvOr("BACKEND_URL", "http://localhost:5000"), "/"),
		DBPath:      getEnvOr("DB_PATH", "/data/notification.db"),
		JWTSecret:   getEnvOr("JWT_SECRET", "dev-secret-key"),
		FrontendURL: getEnvOr("FRONTEND_URL", "http://localhost:5173"),
		LogLevel:    getEnvOr("LOG_LEVEL", "info"),
		DevMode:     devMode,
		Token:       os.Getenv("NOTIFY_TOKEN"),
		Location:    loc,
	}, nil
}

// getEnvOr は環境変数を取得し、未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
