package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ticketwallet/internal/service"
	"ticketwallet/pkg/logger"
	"ticketwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	callerKey = "caller"
)

// Claims sub 为账户 ID，role 为 USER 或 ADMIN
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// LoggerMiddleware 访问日志
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		logger.Log.Info("http request",
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
			logger.String("method", c.Request.Method),
			logger.String("path", path),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.Error("panic recovered",
					logger.Any("panic", err),
					logger.String("path", c.Request.URL.Path),
				)
				response.Error(c, http.StatusInternalServerError, response.CodeServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 校验 Bearer token，解析出调用方身份
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			logger.Log.Warn("unauthorized request", logger.String("path", c.Request.URL.Path))
			response.Unauthorized(c, "Missing bearer token")
			return
		}

		caller, err := parseToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			logger.Log.Warn("unauthorized request", logger.String("path", c.Request.URL.Path), logger.Error(err))
			response.Unauthorized(c, "Invalid token")
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

func parseToken(tokenString, secret string) (service.Caller, error) {
	if secret == "" {
		return service.Caller{}, errors.New("jwt secret is not configured")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return service.Caller{}, err
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return service.Caller{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}

	return service.Caller{
		AccountID:  accountID,
		Privileged: strings.EqualFold(claims.Role, RoleAdmin),
	}, nil
}

// callerFrom 只能在 AuthMiddleware 之后调用
func callerFrom(c *gin.Context) service.Caller {
	caller, _ := c.MustGet(callerKey).(service.Caller)
	return caller
}
