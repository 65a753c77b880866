package repository_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
)

// ExampleMemoryRepository_Create демонстрирует сохранение ссылки в in-memory репозитории
func ExampleMemoryRepository_Create() {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	link, err := repo.Create(ctx, &models.Link{
		Code:        "abc1234",
		OriginalURL: "https://example.com/very-long-url",
		CreatedAt:   time.Now(),
		IsActive:    true,
	})
	if err != nil {
		fmt.Printf("Ошибка сохранения: %v\n", err)
		return
	}
	fmt.Printf("Сохранена ссылка с кодом: %s\n", link.Code)

	// Тот же URL второй раз сохранить нельзя
	_, err = repo.Create(ctx, &models.Link{Code: "def5678", OriginalURL: "https://example.com/very-long-url"})
	fmt.Println(errors.Is(err, repository.ErrURLConflict))

	// Output:
	// Сохранена ссылка с кодом: abc1234
	// true
}

// ExampleMemoryRepository_Delete демонстрирует мягкое удаление: код остаётся занятым
func ExampleMemoryRepository_Delete() {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	_, _ = repo.Create(ctx, &models.Link{Code: "abc1234", OriginalURL: "https://example.com", IsActive: true})

	deleted, _ := repo.Delete(ctx, "abc1234", false)
	_, err := repo.FindByCode(ctx, "abc1234")
	exists, _ := repo.CodeExists(ctx, "abc1234")

	fmt.Println(deleted)
	fmt.Println(errors.Is(err, repository.ErrNotFound))
	fmt.Println(exists)

	// Output:
	// true
	// true
	// true
}
