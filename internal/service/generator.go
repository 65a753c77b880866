package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// Alphabet символы кода без визуально похожих (0/O, 1/l/I)
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Параметры генератора по умолчанию
const (
	DefaultCodeLength         = 7
	DefaultCollisionThreshold = 5
	DefaultMaxCodeLength      = 32
)

// ErrCodeSpaceExhausted генератор дошёл до максимальной длины и не нашёл свободный код
var ErrCodeSpaceExhausted = errors.New("code space exhausted")

// CodeChecker проверяет, занят ли код
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// GeneratorOptions настройки генератора кодов
type GeneratorOptions struct {
	Length             int
	CollisionThreshold int
	MaxLength          int
}

// Generator выдаёт случайные коды, увеличивая длину после серии коллизий.
// Проверка занятости не атомарна: окончательно уникальность обеспечивает хранилище.
type Generator struct {
	checker   CodeChecker
	length    atomic.Int32
	threshold int32
	maxLength int32
	logger    *zap.Logger
}

// NewGenerator создаёт новый экземпляр Generator
func NewGenerator(checker CodeChecker, opts GeneratorOptions, logger *zap.Logger) *Generator {
	if opts.Length <= 0 {
		opts.Length = DefaultCodeLength
	}
	if opts.CollisionThreshold <= 0 {
		opts.CollisionThreshold = DefaultCollisionThreshold
	}
	if opts.MaxLength < opts.Length {
		opts.MaxLength = max(DefaultMaxCodeLength, opts.Length)
	}
	g := &Generator{
		checker:   checker,
		threshold: int32(opts.CollisionThreshold),
		maxLength: int32(opts.MaxLength),
		logger:    logger,
	}
	g.length.Store(int32(opts.Length))
	return g
}

// Length возвращает текущую длину кода
func (g *Generator) Length() int {
	return int(g.length.Load())
}

// Next возвращает код, не занятый на момент проверки.
// Коллизии считаются в пределах одного вызова: длина растёт только после
// CollisionThreshold коллизий подряд у одного и того же вызывающего.
func (g *Generator) Next(ctx context.Context) (string, error) {
	var misses int32
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		length := g.length.Load()
		code, err := RandomCode(int(length))
		if err != nil {
			return "", err
		}
		exists, err := g.checker.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}

		misses++
		if misses < g.threshold {
			continue
		}
		misses = 0
		if length >= g.maxLength {
			return "", ErrCodeSpaceExhausted
		}
		// Длину увеличивает только одна из конкурирующих горутин
		if g.length.CompareAndSwap(length, length+1) {
			g.logger.Info("Code length escalated", zap.Int32("length", length+1))
		}
	}
}

// RandomCode возвращает криптографически случайную строку из Alphabet
func RandomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		j, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[j.Int64()])
	}
	return b.String(), nil
}
