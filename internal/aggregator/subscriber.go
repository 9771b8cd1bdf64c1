package aggregator

import (
	"context"
	"fmt"
	"maps"

	"batchwatch/internal/logger"
	"batchwatch/internal/model"

	"go.uber.org/zap"
)

type Params map[string]any

// Callback receives one flushed batch. The slice is owned by the callee.
type Callback func(ctx context.Context, events []model.ChangeEvent, params Params) error

type Subscriber struct {
	Callback Callback
	Params   Params
}

// ReadyFunc runs once after the watch source reports readiness.
type ReadyFunc func(ctx context.Context) error

// NormalizeSubscribers accepts Callback values, plain functions with the
// Callback signature, Subscriber values or pointers, and slices of any of
// those. Unrecognised entries are logged and skipped, or rejected with
// ErrInvalidSubscriber when strict is set.
func NormalizeSubscribers(strict bool, entries ...any) ([]Subscriber, error) {
	subs := make([]Subscriber, 0, len(entries))

	var add func(entry any) error
	add = func(entry any) error {
		switch v := entry.(type) {
		case Callback:
			if v != nil {
				subs = append(subs, Subscriber{Callback: v})
				return nil
			}
		case func(context.Context, []model.ChangeEvent, Params) error:
			if v != nil {
				subs = append(subs, Subscriber{Callback: v})
				return nil
			}
		case Subscriber:
			if v.Callback != nil {
				subs = append(subs, v)
				return nil
			}
		case *Subscriber:
			if v != nil && v.Callback != nil {
				subs = append(subs, *v)
				return nil
			}
		case []Subscriber:
			for _, s := range v {
				if err := add(s); err != nil {
					return err
				}
			}
			return nil
		case []Callback:
			for _, c := range v {
				if err := add(c); err != nil {
					return err
				}
			}
			return nil
		case []any:
			for _, e := range v {
				if err := add(e); err != nil {
					return err
				}
			}
			return nil
		}

		if strict {
			return fmt.Errorf("%w: %T", ErrInvalidSubscriber, entry)
		}

		logger.Log.Warn("skipping unrecognised subscriber",
			zap.String("type", fmt.Sprintf("%T", entry)))
		return nil
	}

	for _, entry := range entries {
		if err := add(entry); err != nil {
			return nil, err
		}
	}

	return subs, nil
}

// mergeParams overlays the subscriber's params on the defaults into a new map.
func mergeParams(defaults, own Params) Params {
	merged := make(Params, len(defaults)+len(own))
	maps.Copy(merged, defaults)
	maps.Copy(merged, own)
	return merged
}
