package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/onioncrawl/internal/model"
)

// ErrClosed is returned when appending to a closed store.
var ErrClosed = errors.New("store is closed")

// Appender durably records results.
type Appender interface {
	Append(ctx context.Context, result *model.Result) error
}

// Tee returns an Appender that appends to every given appender in order.
// All appenders are attempted; their errors are joined.
func Tee(appenders ...Appender) Appender {
	return tee(appenders)
}

type tee []Appender

func (t tee) Append(ctx context.Context, result *model.Result) error {
	var errs []error
	for _, a := range t {
		if err := a.Append(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort returns an Appender whose failures are logged and dropped. It
// is used for secondary stores that must not fail a page already recorded
// in the primary one.
func BestEffort(a Appender, logger *slog.Logger) Appender {
	if logger == nil {
		logger = slog.Default()
	}
	return bestEffort{appender: a, logger: logger}
}

type bestEffort struct {
	appender Appender
	logger   *slog.Logger
}

func (b bestEffort) Append(ctx context.Context, result *model.Result) error {
	if err := b.appender.Append(ctx, result); err != nil {
		b.logger.Error("secondary result store failed", "url", result.URL, "error", err)
	}
	return nil
}
