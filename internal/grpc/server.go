// Package grpc содержит реализацию gRPC сервера для сервиса коротких ссылок
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/tempizhere/shortlink/internal/analytics"
	"github.com/tempizhere/shortlink/internal/auth"
	"github.com/tempizhere/shortlink/internal/grpc/proto"
	"github.com/tempizhere/shortlink/internal/middleware"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Analytics получает представления аналитики по ссылке
type Analytics interface {
	Get(ctx context.Context, code string, v analytics.View, opts analytics.Options) (*analytics.Result, error)
}

// Server реализует gRPC сервер для сервиса коротких ссылок
type Server struct {
	proto.UnimplementedLinkServiceServer
	svc       *service.Service
	analytics Analytics
	logger    *zap.Logger
}

// NewServer создаёт новый gRPC сервер
func NewServer(svc *service.Service, a Analytics, logger *zap.Logger) *Server {
	return &Server{
		svc:       svc,
		analytics: a,
		logger:    logger,
	}
}

// Options параметры gRPC сервера
type Options struct {
	Verifier      *auth.Verifier
	TrustedSubnet string
}

// NewGRPCServer создаёт grpc.Server с интерцепторами и зарегистрированным сервисом
func NewGRPCServer(srv *Server, opts Options) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{LoggingInterceptor(srv.logger)}
	if opts.Verifier != nil {
		interceptors = append(interceptors, OwnerInterceptor(opts.Verifier, srv.logger))
	}
	interceptors = append(interceptors, TrustedSubnetInterceptor(opts.TrustedSubnet, srv.logger))

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	proto.RegisterLinkServiceServer(s, srv)
	return s
}

// CreateLink обрабатывает создание короткой ссылки
func (s *Server) CreateLink(ctx context.Context, req *proto.CreateLinkRequest) (*proto.CreateLinkResponse, error) {
	ownerID, _ := middleware.OwnerID(ctx)
	link, created, err := s.svc.CreateLink(ctx, models.CreateLinkInput{
		OriginalURL: req.URL,
		CustomAlias: req.Alias,
		OwnerID:     ownerID,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	return &proto.CreateLinkResponse{Link: models.LinkResponse{
		Code:        link.Code,
		ShortURL:    s.svc.ShortURL(link.Code),
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
		Created:     created,
	}}, nil
}

// Resolve обрабатывает разрешение кода
func (s *Server) Resolve(ctx context.Context, req *proto.ResolveRequest) (*proto.ResolveResponse, error) {
	if req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	var meta *models.RequestMeta
	if req.Track {
		meta = &models.RequestMeta{IP: peerIP(ctx), Referrer: req.Referrer, UserAgent: req.UserAgent}
	}
	originalURL, err := s.svc.Resolve(ctx, req.Code, meta)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &proto.ResolveResponse{OriginalURL: originalURL}, nil
}

// GetAnalytics возвращает отчёт аналитики
func (s *Server) GetAnalytics(ctx context.Context, req *proto.GetAnalyticsRequest) (*proto.GetAnalyticsResponse, error) {
	view, err := analytics.ParseView(req.View)
	if err != nil {
		return nil, s.mapError(err)
	}
	res, err := s.analytics.Get(ctx, req.Code, view, analytics.Options{
		From:     req.From,
		To:       req.To,
		Interval: analytics.Interval(req.Interval),
		Limit:    req.Limit,
		Skip:     req.Skip,
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &proto.GetAnalyticsResponse{Result: res}, nil
}

// UpdateLink меняет активность или срок действия ссылки
func (s *Server) UpdateLink(ctx context.Context, req *proto.UpdateLinkRequest) (*proto.UpdateLinkResponse, error) {
	link, err := s.svc.UpdateLink(ctx, req.Code, req.Patch)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &proto.UpdateLinkResponse{Link: link}, nil
}

// DeleteLink удаляет ссылку
func (s *Server) DeleteLink(ctx context.Context, req *proto.DeleteLinkRequest) (*proto.DeleteLinkResponse, error) {
	if err := s.svc.DeleteLink(ctx, req.Code); err != nil {
		return nil, s.mapError(err)
	}
	return &proto.DeleteLinkResponse{}, nil
}

// Ping проверяет состояние сервиса
func (s *Server) Ping(ctx context.Context, _ *proto.PingRequest) (*proto.PingResponse, error) {
	err := s.svc.Ping(ctx)
	if err != nil {
		s.logger.Warn("Storage ping failed", zap.Error(err))
	}
	return &proto.PingResponse{StorageAvailable: err == nil}, nil
}

// peerIP возвращает IP клиента соединения
func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil || net.ParseIP(host) == nil {
		return ""
	}
	return host
}

// mapError преобразует ошибки бизнес-логики в gRPC статусы
func (s *Server) mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, models.ErrInvalidURL),
		errors.Is(err, models.ErrInvalidAliasFormat),
		errors.Is(err, models.ErrExpirationInPast),
		errors.Is(err, models.ErrInvalidAnalyticsOptions):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrAliasTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, models.ErrCreationConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrDeactivated), errors.Is(err, models.ErrExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return status.Error(codes.ResourceExhausted, "code space exhausted")
	default:
		s.logger.Error("Unexpected error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}
