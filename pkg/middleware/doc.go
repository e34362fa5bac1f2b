// Package middleware は通知APIのGinミドルウェアを提供する。
//
// JWT認証（BearerヘッダーまたはセッションCookie）、zapによるアクセスログ、
// パニックリカバリ、資格情報付きCORSを含む。
package middleware
