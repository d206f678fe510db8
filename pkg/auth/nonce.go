package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ContactFormAction 联系表单nonce的动作名
const ContactFormAction = "headless_contact_form"

var (
	// ErrInvalidNonce nonce无效或已过期
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrActionMismatch nonce不属于当前动作
	ErrActionMismatch = errors.New("nonce action mismatch")
)

// NonceConfig nonce配置
type NonceConfig struct {
	Secret     string
	ExpireTime time.Duration
}

// nonceClaims 绑定动作的一次性令牌
type nonceClaims struct {
	Action string `json:"action"`
	jwt.RegisteredClaims
}

// NonceManager 签发和校验表单nonce
type NonceManager struct {
	config NonceConfig
	now    func() time.Time
}

// NewNonceManager 创建nonce管理器
func NewNonceManager(config NonceConfig) *NonceManager {
	if config.ExpireTime <= 0 {
		config.ExpireTime = 12 * time.Hour
	}
	return &NonceManager{config: config, now: time.Now}
}

// WithClock 替换时钟
func (m *NonceManager) WithClock(now func() time.Time) *NonceManager {
	m.now = now
	return m
}

// Issue 为指定动作签发nonce
func (m *NonceManager) Issue(action string) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.config.ExpireTime)

	claims := nonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign nonce: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify 校验nonce签名、有效期和动作
func (m *NonceManager) Verify(nonce, action string) error {
	if nonce == "" {
		return ErrInvalidNonce
	}

	var claims nonceClaims
	token, err := jwt.ParseWithClaims(nonce, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return ErrInvalidNonce
	}

	if claims.Action != action {
		return ErrActionMismatch
	}
	return nil
}
