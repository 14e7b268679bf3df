package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// issuer はアクセストークンの発行者。
const issuer = "ordora-backend"

// tokenTypeAccess はアクセストークンを表すtoken_typeクレームの値。
const tokenTypeAccess = "access"

// コンテキストに設定する認証情報のキー。
const (
	contextKeyUserID = "user_id"
	contextKeyEmail  = "email"
	contextKeyRole   = "role"
)

// codeTokenNotValid はトークンが無効な場合にレスポンスのcodeに入る値。
const codeTokenNotValid = "token_not_valid"

// ErrTokenInvalid はトークンの署名・有効期限・種別のいずれかが不正であることを表す。
var ErrTokenInvalid = errors.New("トークンが無効です")

// Subject はアクセストークンに埋め込むユーザー情報。
type Subject struct {
	// UserID はユーザーID。
	UserID int64
	// Email はメールアドレス。
	Email string
	// Role はユーザーの役割。
	Role string
}

// JWTClaims はアクセストークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// TokenType はトークン種別。アクセストークンでは "access"。
	TokenType string `json:"token_type"`
	// UserID は認証済みユーザーのID。
	UserID int64 `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーの役割。
	Role string `json:"role"`
}

// GenerateJWT はユーザー情報から有効期限ttlのアクセストークンを生成する。
func GenerateJWT(secret string, sub Subject, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		TokenType: tokenTypeAccess,
		UserID:    sub.UserID,
		Email:     sub.Email,
		Role:      sub.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はアクセストークンを検証してクレームを返す。
// HS256以外の署名方式、期限切れ、発行者やトークン種別の不一致はErrTokenInvalidになる。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.TokenType != tokenTypeAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// JWTAuth はアクセストークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "email" と "role" を設定する。
// 失敗した場合は401と {"detail": ..., "code": "token_not_valid"} を返す。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "認証情報が提供されていません",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "トークンが無効か期限切れです",
				"code":   codeTokenNotValid,
			})
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyEmail, claims.Email)
		c.Set(contextKeyRole, claims.Role)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。未設定の場合は0。
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(contextKeyUserID)
}

// GetRole はGinコンテキストからユーザーの役割を取得する。
func GetRole(c *gin.Context) string {
	return c.GetString(contextKeyRole)
}
