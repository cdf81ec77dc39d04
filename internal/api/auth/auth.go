package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNoSecret 表示进程没有配置签名密钥，无法签发令牌。
	ErrNoSecret = errors.New("auth: signing secret is not configured")
	// ErrInvalidToken 统一表示令牌不可用：签名错误、过期、格式损坏都归一到它。
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims 是令牌中携带的身份信息。
//
// 服务端不保存令牌，有效性完全由签名与过期时间决定。
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
}

// HashPassword 对明文密码做 bcrypt 哈希（cost 10，每次调用随机盐）。
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 校验明文与哈希是否匹配，不匹配返回 false，不会 panic。
func CheckPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// IssueToken 签发一个携带 username/email 的 HS256 令牌。
func IssueToken(username, email string, expiry time.Duration, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
		Email:    email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken 校验令牌并返回其中的身份信息。
//
// 任何校验失败（签名、过期、算法不符）都返回 ErrInvalidToken，
// 不向调用方暴露底层密码学错误。
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Username == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
