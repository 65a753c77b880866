package service

import (
	"fmt"
	"regexp"

	"github.com/tempizhere/shortlink/internal/models"
)

// Границы длины пользовательского алиаса
const (
	MinAliasLength = 3
	MaxAliasLength = 50
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateAlias проверяет формат алиаса; уникальность не проверяется
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return fmt.Errorf("%w: length must be within [%d,%d]", models.ErrInvalidAliasFormat, MinAliasLength, MaxAliasLength)
	}
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: only letters, digits, '_' and '-' are allowed", models.ErrInvalidAliasFormat)
	}
	return nil
}
