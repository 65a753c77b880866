package grpc

import (
	"context"
	"net"
	"time"

	"github.com/tempizhere/shortlink/internal/auth"
	"github.com/tempizhere/shortlink/internal/grpc/proto"
	"github.com/tempizhere/shortlink/internal/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// adminMethods доступны только из доверенной подсети
var adminMethods = map[string]bool{
	proto.MethodUpdateLink: true,
	proto.MethodDeleteLink: true,
}

// OwnerInterceptor извлекает владельца из метаданных authorization.
// Вызов без токена анонимный, неверный токен отклоняется.
func OwnerInterceptor(v *auth.Verifier, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return handler(ctx, req)
		}

		ownerID, err := v.ParseOwner(auth.BearerToken(authHeaders[0]))
		if err != nil {
			logger.Warn("Invalid owner token", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(middleware.WithOwnerID(ctx, ownerID), req)
	}
}

// TrustedSubnetInterceptor пропускает административные методы только из доверенной подсети
func TrustedSubnetInterceptor(trustedSubnet string, logger *zap.Logger) grpc.UnaryServerInterceptor {
	var subnet *net.IPNet
	var parseErr error
	if trustedSubnet != "" {
		_, subnet, parseErr = net.ParseCIDR(trustedSubnet)
		if parseErr != nil {
			logger.Error("Invalid trusted subnet", zap.String("subnet", trustedSubnet), zap.Error(parseErr))
		}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !adminMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		if parseErr != nil {
			return nil, status.Error(codes.Internal, "invalid trusted subnet configuration")
		}
		if subnet == nil {
			return nil, status.Error(codes.PermissionDenied, "trusted subnet not configured")
		}

		clientIP := net.ParseIP(peerIP(ctx))
		if clientIP == nil || !subnet.Contains(clientIP) {
			logger.Warn("Access denied from untrusted IP", zap.String("method", info.FullMethod), zap.Stringer("ip", clientIP))
			return nil, status.Error(codes.PermissionDenied, "access denied")
		}
		return handler(ctx, req)
	}
}

// LoggingInterceptor создаёт интерцептор для логирования gRPC запросов
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("client_ip", peerIP(ctx)),
			zap.String("status_code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("gRPC request", append(fields, zap.Error(err))...)
			return resp, err
		}
		logger.Info("gRPC request", fields...)
		return resp, err
	}
}
