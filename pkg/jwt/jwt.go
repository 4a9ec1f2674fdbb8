package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Makarand-Tighare/project-api-sub000/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// 角色
const (
	RoleAdmin           = "admin"
	RoleDepartmentAdmin = "department_admin"
	RoleStudent         = "student"
)

// Claims 自定义 JWT 声明
// Token 由外部认证服务签发，本服务只负责校验
type Claims struct {
	// RegistrationNo 登录者学号（管理员为空）
	RegistrationNo string `json:"registration_no"`
	Role           string `json:"role"`          // admin | department_admin | student
	DepartmentID   string `json:"department_id"` // department_admin 的管辖部门
	TokenType      string `json:"token_type"`    // "access"
	jwtv5.RegisteredClaims
}

// CallerID 审计字段使用的调用者标识：学号，其次 sub，最后回退为角色名
func (c *Claims) CallerID() string {
	switch {
	case c.RegistrationNo != "":
		return c.RegistrationNo
	case c.Subject != "":
		return c.Subject
	default:
		return c.Role
	}
}

// Manager JWT 管理器
type Manager struct {
	secret         []byte
	accessTokenTTL time.Duration
	issuer         string
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "mentor-match"
	}
	return &Manager{
		secret:         []byte(cfg.JWTSecret),
		accessTokenTTL: cfg.AccessTokenTTL,
		issuer:         issuer,
	}
}

// GenerateAccessToken 生成 Access Token（供运维脚本与测试使用）
func (m *Manager) GenerateAccessToken(registrationNo, role, departmentID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegistrationNo: registrationNo,
		Role:           role,
		DepartmentID:   departmentID,
		TokenType:      "access",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   registrationNo,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.accessTokenTTL)),
			Issuer:    m.issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
