package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
	"go.uber.org/zap"
)

func newBenchmarkService() *Service {
	return NewService(repository.NewMemoryRepository(), cache.NewMemoryCache(time.Minute), nil, zap.NewNop(), Options{
		BaseURL: "http://localhost:8080",
	})
}

// Бенчмарки для нормализации URL
func BenchmarkNormalizeURL(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := NormalizeURL("Example.com/very/long/url/that/needs/to/be/shortened/"); err != nil {
			b.Fatal(err)
		}
	}
}

// Бенчмарки для генерации кодов
func BenchmarkRandomCode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := RandomCode(DefaultCodeLength); err != nil {
			b.Fatal(err)
		}
	}
}

// Бенчмарки для создания ссылок
func BenchmarkCreateLink(b *testing.B) {
	svc := newBenchmarkService()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in := models.CreateLinkInput{OriginalURL: fmt.Sprintf("https://example.com/very/long/url/%d", i)}
		if _, _, err := svc.CreateLink(ctx, in); err != nil {
			b.Fatal(err)
		}
	}
}

// Бенчмарки для повторного создания того же URL
func BenchmarkCreateLinkDedupe(b *testing.B) {
	svc := newBenchmarkService()
	ctx := context.Background()
	in := models.CreateLinkInput{OriginalURL: "https://example.com/very/long/url"}
	if _, _, err := svc.CreateLink(ctx, in); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, created, err := svc.CreateLink(ctx, in); err != nil || created {
			b.Fatal("expected existing link")
		}
	}
}

// Бенчмарки для разрешения из кэша
func BenchmarkResolveCached(b *testing.B) {
	svc := newBenchmarkService()
	ctx := context.Background()
	link, _, err := svc.CreateLink(ctx, models.CreateLinkInput{OriginalURL: "https://example.com/very/long/url"})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Resolve(ctx, link.Code, nil); err != nil {
			b.Fatal(err)
		}
	}
}
