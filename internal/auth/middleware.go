package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals 키
const (
	LocalUserID   = "userID"
	LocalNickname = "nickname"
	LocalClaims   = "claims"
)

var errMissingToken = errors.New("missing authorization token")

// TokenFromRequest 토큰 추출 (Authorization 헤더, access_token 쿠키, token 쿼리 순)
// 브라우저는 WebSocket 핸드셰이크에 헤더를 붙일 수 없어서 쿼리도 허용
func TokenFromRequest(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}
	if cookie := c.Cookies("access_token"); cookie != "" {
		return cookie, nil
	}
	if q := c.Query("token"); q != "" {
		return q, nil
	}
	return "", errMissingToken
}

// AuthMiddleware JWT 인증 미들웨어
func AuthMiddleware(jwtManager *JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := TokenFromRequest(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "token expired",
					"code":  "TOKEN_EXPIRED",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalNickname, claims.Nickname)
		c.Locals(LocalClaims, claims)

		return c.Next()
	}
}

// GetClaimsFromContext AuthMiddleware가 저장한 클레임 조회
func GetClaimsFromContext(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals(LocalClaims).(*Claims)
	if !ok || claims == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
