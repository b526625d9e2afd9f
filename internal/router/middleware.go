package router

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"github.com/shkeeper-next/internal/config"
	"github.com/shkeeper-next/internal/constants"
	"github.com/shkeeper-next/internal/http/response"
	"github.com/shkeeper-next/internal/logger"
	"github.com/shkeeper-next/internal/repository"
	"github.com/shkeeper-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const merchantContextKey = "merchant"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			constants.HeaderAPIKey,
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// AdminJWTAuthMiddleware 管理端 JWT 鉴权中间件
func AdminJWTAuthMiddleware(secretKey string, adminRepo repository.AdminRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" || adminRepo == nil {
			response.Unauthorized(c, "认证服务未配置")
			c.Abort()
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "缺少或无效的认证头")
			c.Abort()
			return
		}

		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		claims := &service.JWTClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid || claims.AdminID == 0 {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}

		admin, err := adminRepo.GetByID(claims.AdminID)
		if err != nil || admin == nil {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// MerchantJWTAuthMiddleware 商户端 JWT 鉴权中间件
func MerchantJWTAuthMiddleware(merchantSvc *service.MerchantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if merchantSvc == nil {
			response.Unauthorized(c, "认证服务未配置")
			c.Abort()
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "缺少或无效的认证头")
			c.Abort()
			return
		}

		claims, err := merchantSvc.ParseJWT(tokenString)
		if err != nil || claims.MerchantID == 0 {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}

		merchant, err := merchantSvc.GetByID(claims.MerchantID)
		if err != nil || merchant == nil {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}
		if merchant.Status != constants.MerchantStatusActive {
			response.Forbidden(c, "商户已被停用")
			c.Abort()
			return
		}

		c.Set("merchant_id", merchant.ID)
		c.Set(merchantContextKey, merchant)
		c.Next()
	}
}

// APIKeyAuthMiddleware 商户 API 密钥鉴权中间件
func APIKeyAuthMiddleware(merchantSvc *service.MerchantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if merchantSvc == nil {
			response.Unauthorized(c, "认证服务未配置")
			c.Abort()
			return
		}
		apiKey := strings.TrimSpace(c.GetHeader(constants.HeaderAPIKey))
		if apiKey == "" {
			response.Unauthorized(c, "缺少 API 密钥")
			c.Abort()
			return
		}

		merchant, err := merchantSvc.AuthenticateAPIKey(apiKey)
		if err != nil {
			switch err {
			case service.ErrMerchantSuspended:
				response.Forbidden(c, "商户已被停用")
			case service.ErrMerchantPending:
				response.Forbidden(c, "商户待审核")
			default:
				response.Unauthorized(c, "无效的 API 密钥")
			}
			c.Abort()
			return
		}

		c.Set("merchant_id", merchant.ID)
		c.Set(merchantContextKey, merchant)
		c.Next()
	}
}

// BackendKeyMiddleware 链上守护进程回调鉴权中间件，密钥不匹配时直接拒绝
func BackendKeyMiddleware(backendKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := strings.TrimSpace(c.GetHeader(constants.HeaderBackendKey))
		if backendKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(backendKey)) != 1 {
			logger.Warnw("backend_key_rejected",
				"path", c.Request.URL.Path, "client_ip", c.ClientIP())
			response.Forbidden(c, "后端密钥无效")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}
