// Package auth 把连接时出示的令牌解析为用户身份。
// 令牌的签发不在本服务的职责范围内，这里只负责校验。
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultName 是身份中没有名字时使用的显示名
const DefaultName = "Guest"

var (
	// ErrMissingToken 表示请求里没有令牌
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken 表示令牌无法通过校验
	ErrInvalidToken = errors.New("invalid token")
)

// Identity 是已认证的用户身份
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Verifier 把令牌解析为身份
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Claims 是令牌中携带的声明，用户ID放在 sub 中
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier 使用HMAC签名的JWT
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier 创建校验器，issuer为空时不校验签发者
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify 实现Verifier接口
func (v *JWTVerifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = DefaultName
	}
	return Identity{UserID: claims.Subject, Name: name}, nil
}

// Sign 签发一个令牌，只用于本地开发和测试
func (v *JWTVerifier) Sign(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Static 是固定令牌表，测试中使用
type Static map[string]Identity

// Verify 实现Verifier接口
func (s Static) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	identity, ok := s[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return identity, nil
}

// FromRequest 从 Authorization 头或 token 查询参数中取出令牌
// 浏览器的WebSocket不能设置请求头，所以同时支持查询参数
func FromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// Authenticate 从请求中解析身份
func Authenticate(v Verifier, r *http.Request) (Identity, error) {
	token, err := FromRequest(r)
	if err != nil {
		return Identity{}, err
	}
	return v.Verify(token)
}
