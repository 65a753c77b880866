package models

import "errors"

// Ошибки создания ссылки
var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidAliasFormat = errors.New("invalid alias format")
	ErrAliasTaken         = errors.New("alias already taken")
	ErrExpirationInPast   = errors.New("expiration is not in the future")
	ErrCreationConflict   = errors.New("creation conflict")
)

// Ошибки разрешения ссылки
var (
	ErrNotFound    = errors.New("link not found")
	ErrDeactivated = errors.New("link deactivated")
	ErrExpired     = errors.New("link expired")
)

// Ошибки аналитики
var (
	ErrAggregationFailed       = errors.New("aggregation failed")
	ErrInvalidAnalyticsOptions = errors.New("invalid analytics options")
)
