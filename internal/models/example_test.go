package models_test

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tempizhere/shortlink/internal/models"
)

// ExampleCreateLinkInput демонстрирует тело запроса на создание ссылки
func ExampleCreateLinkInput() {
	in := models.CreateLinkInput{
		OriginalURL: "https://example.com/very-long-url",
		CustomAlias: "promo",
	}

	jsonData, _ := json.Marshal(in)
	fmt.Printf("JSON запрос: %s\n", jsonData)

	// Output:
	// JSON запрос: {"original_url":"https://example.com/very-long-url","custom_alias":"promo"}
}

// ExampleLink_Status демонстрирует состояние ссылки при разрешении
func ExampleLink_Status() {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	active := models.Link{Code: "abc1234", IsActive: true}
	inactive := models.Link{Code: "abc1235", IsActive: false}
	expired := models.Link{Code: "abc1236", IsActive: true, ExpiresAt: &past}

	fmt.Println(active.Status(now) == models.StatusResolvable)
	fmt.Println(inactive.Status(now) == models.StatusDeactivated)
	fmt.Println(expired.Status(now) == models.StatusExpired)

	// Output:
	// true
	// true
	// true
}
