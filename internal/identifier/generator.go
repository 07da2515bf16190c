package identifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tross/internal/apperr"
	"tross/internal/meta"
)

// Generator минтит человекочитаемые номера вида PREFIX-YYYY-NNNN.
// Чтение максимума и запись записи — две отдельные операции без
// транзакции, поэтому под конкуренцией два вызова могут получить один
// номер. Источник истины — уникальный индекс по identity-колонке;
// результат Generate — кандидат, на конфликте вызывающий перегенерирует.
type Generator struct {
	store MaxQuerier
	now   func() time.Time
}

// MaxQuerier — максимальный существующий номер по префиксу
// "PREFIX-YYYY-" (лексикографически убывающий порядок, limit 1).
type MaxQuerier interface {
	MaxIdentifier(ctx context.Context, table, field, prefix string) (string, bool, error)
}

func New(store MaxQuerier) *Generator {
	return &Generator{store: store, now: time.Now}
}

// WithClock — инъекция часов для тестов.
func WithClock(store MaxQuerier, now func() time.Time) *Generator {
	return &Generator{store: store, now: now}
}

// Generate — следующий номер для сущности в текущем году. Отсутствие
// prefix/table/field в метаданных — ошибка конфигурации.
func (g *Generator) Generate(ctx context.Context, e *meta.Entity) (string, error) {
	if e.Identifier == nil {
		return "", apperr.Config("entity %q has no identifier config", e.Name)
	}
	prefix := strings.ToUpper(strings.TrimSpace(e.Identifier.Prefix))
	field := strings.TrimSpace(e.Identifier.Field)
	table := strings.TrimSpace(e.Table)
	if prefix == "" || field == "" || table == "" {
		return "", apperr.Config("entity %q identifier config is incomplete", e.Name)
	}

	year := g.now().UTC().Year()
	yearPrefix := fmt.Sprintf("%s-%04d-", prefix, year)

	max, found, err := g.store.MaxIdentifier(ctx, table, field, yearPrefix)
	if err != nil {
		return "", err
	}

	seq := 1
	if found {
		n, ok := trailingSeq(max)
		if ok {
			seq = n + 1
		}
	}
	// %04d дополняет нулями до четырёх знаков и растёт дальше, не
	// обрезая и не заворачивая последовательность
	return fmt.Sprintf("%s%04d", yearPrefix, seq), nil
}

// MaxAttempts — потолок перегенераций при конфликте номера.
const MaxAttempts = 3

// GenerateWithRetry выполняет attempt с кандидатом и перегенерирует при
// конфликте по identity-полю. Любая другая ошибка отдаётся сразу.
func (g *Generator) GenerateWithRetry(ctx context.Context, e *meta.Entity, attempt func(candidate string) error) error {
	var lastErr error
	for i := 0; i < MaxAttempts; i++ {
		candidate, err := g.Generate(ctx, e)
		if err != nil {
			return err
		}
		err = attempt(candidate)
		if err == nil {
			return nil
		}
		if !isIdentifierConflict(err, e) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func isIdentifierConflict(err error, e *meta.Entity) bool {
	var ae *apperr.Error
	return errors.As(err, &ae) && ae.Category == apperr.Conflict && ae.Field == e.Identifier.Field
}

func trailingSeq(id string) (int, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 || i == len(id)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
