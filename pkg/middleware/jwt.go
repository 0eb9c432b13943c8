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

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID int64 `json:"user_id"`
}

const (
	// tokenIssuer はトークンの発行者名。
	tokenIssuer = "feedhub"
	// tokenTTL はトークンの有効期間。
	tokenTTL = 24 * time.Hour
	// contextKeyUserID はGinコンテキストにユーザーIDを格納するキー。
	contextKeyUserID = "user_id"
	// queryKeyToken はWebSocketハンドシェイクでトークンを渡すクエリパラメータ名。
	queryKeyToken = "token"
)

var (
	// ErrMissingToken はリクエストにトークンが含まれていないことを表す。
	ErrMissingToken = errors.New("Authorizationヘッダーが必要です")
	// ErrMalformedToken はAuthorizationヘッダーの形式が不正であることを表す。
	ErrMalformedToken = errors.New("Bearer トークン形式が不正です")
	// ErrInvalidToken はトークンの検証に失敗したことを表す。
	ErrInvalidToken = errors.New("トークンが無効です")
)

// GenerateJWT はユーザーIDからJWTトークンを生成する。
func GenerateJWT(secret string, userID int64) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列を検証し、クレームを返す。
// HS256以外の署名アルゴリズムとユーザーIDを持たないトークンは拒否する。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest はAuthorizationヘッダー、なければtokenクエリパラメータからトークンを取り出す。
// ブラウザはWebSocketのアップグレード要求にヘッダーを付与できないため、クエリパラメータも受け付ける。
func TokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			return "", ErrMalformedToken
		}
		return tokenString, nil
	}
	if tokenString := r.URL.Query().Get(queryKeyToken); tokenString != "" {
		return tokenString, nil
	}
	return "", ErrMissingToken
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMalformedToken.Error()})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		SetUserID(c, claims.UserID)
		c.Next()
	}
}

// SetUserID はGinコンテキストに認証済みユーザーIDを設定する。
func SetUserID(c *gin.Context, userID int64) {
	c.Set(contextKeyUserID, userID)
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
