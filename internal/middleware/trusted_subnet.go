package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"
)

// TrustedSubnet пропускает только запросы, у которых X-Real-IP входит в подсеть trustedSubnet.
// Пустая подсеть закрывает доступ полностью.
func TrustedSubnet(trustedSubnet string, logger *zap.Logger) func(http.Handler) http.Handler {
	var network *net.IPNet
	var parseErr error
	if trustedSubnet != "" {
		_, network, parseErr = net.ParseCIDR(trustedSubnet)
		if parseErr != nil {
			logger.Error("Invalid trusted subnet", zap.String("trusted_subnet", trustedSubnet), zap.Error(parseErr))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if parseErr != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			clientIP := r.Header.Get("X-Real-IP")
			ip := net.ParseIP(clientIP)
			if network == nil || ip == nil || !network.Contains(ip) {
				logger.Warn("Access denied",
					zap.String("method", r.Method),
					zap.String("uri", r.RequestURI),
					zap.String("client_ip", clientIP),
					zap.String("trusted_subnet", trustedSubnet))
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
