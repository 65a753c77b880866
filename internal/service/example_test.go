package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
	"github.com/tempizhere/shortlink/internal/service"
	"go.uber.org/zap"
)

// ExampleNormalizeURL демонстрирует нормализацию URL
func ExampleNormalizeURL() {
	for _, raw := range []string{"example.com/path/", "HTTPS://Example.COM/Docs/?page=2", "ftp://example.com"} {
		normalized, err := service.NormalizeURL(raw)
		if err != nil {
			fmt.Printf("%s: %v\n", raw, err)
			continue
		}
		fmt.Println(normalized)
	}

	// Output:
	// https://example.com/path
	// https://example.com/Docs?page=2
	// ftp://example.com: invalid URL: unsupported scheme "ftp"
}

// ExampleService_CreateLink демонстрирует создание ссылки с алиасом
func ExampleService_CreateLink() {
	repo := repository.NewMemoryRepository()
	svc := service.NewService(repo, cache.NewMemoryCache(time.Minute), nil, zap.NewNop(), service.Options{
		BaseURL: "http://localhost:8080",
	})
	ctx := context.Background()

	link, created, err := svc.CreateLink(ctx, models.CreateLinkInput{
		OriginalURL: "https://example.com/very-long-url/",
		CustomAlias: "promo",
	})
	if err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		return
	}
	fmt.Println(svc.ShortURL(link.Code), created)

	// тот же URL возвращает уже созданную ссылку
	again, created, _ := svc.CreateLink(ctx, models.CreateLinkInput{OriginalURL: "example.com/very-long-url"})
	fmt.Println(again.Code, created)

	_, _, err = svc.CreateLink(ctx, models.CreateLinkInput{OriginalURL: "https://example.org", CustomAlias: "promo"})
	fmt.Println(errors.Is(err, models.ErrAliasTaken))

	// Output:
	// http://localhost:8080/promo true
	// promo false
	// true
}

// ExampleService_Resolve демонстрирует разрешение кода
func ExampleService_Resolve() {
	repo := repository.NewMemoryRepository()
	svc := service.NewService(repo, cache.NewMemoryCache(time.Minute), nil, zap.NewNop(), service.Options{
		BaseURL: "http://localhost:8080",
	})
	ctx := context.Background()

	link, _, _ := svc.CreateLink(ctx, models.CreateLinkInput{OriginalURL: "https://example.com/docs/"})
	url, err := svc.Resolve(ctx, link.Code, nil)
	fmt.Println(url, err)

	_, err = svc.Resolve(ctx, "missing", nil)
	fmt.Println(err)

	// Output:
	// https://example.com/docs <nil>
	// link not found
}
