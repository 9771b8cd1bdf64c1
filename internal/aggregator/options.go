package aggregator

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

const DefaultTimeout = 100 * time.Millisecond

type ErrorPolicy string

const (
	// FailFast stops delivering a batch at the first failing subscriber.
	FailFast ErrorPolicy = "fail-fast"
	// ContinueOnError delivers to every subscriber and joins the failures.
	ContinueOnError ErrorPolicy = "continue"
)

type Delivery string

const (
	Sequential Delivery = "sequential"
	Concurrent Delivery = "concurrent"
)

type Options struct {
	// Timeout is the debounce window, measured from the first event of a burst.
	// Zero means DefaultTimeout.
	Timeout   time.Duration
	Autostart bool
	OnReady   []ReadyFunc
	// CallbackParams is merged under every subscriber's own params.
	CallbackParams Params

	ErrorPolicy ErrorPolicy
	Delivery    Delivery
	// OnError receives every failed flush. Defaults to logging.
	OnError func(error)
	// StrictSubscribers rejects unrecognised subscriber entries.
	StrictSubscribers bool

	// SourceOptions is forwarded untouched to Source.Watch.
	SourceOptions map[string]any
}

func DefaultOptions() Options {
	return Options{
		Timeout:     DefaultTimeout,
		Autostart:   true,
		ErrorPolicy: FailFast,
		Delivery:    Sequential,
	}
}

func (o Options) validate() error {
	switch o.ErrorPolicy {
	case FailFast, ContinueOnError:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidErrorPolicy, o.ErrorPolicy)
	}

	switch o.Delivery {
	case Sequential, Concurrent:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDelivery, o.Delivery)
	}

	if o.Timeout < 0 {
		return fmt.Errorf("negative timeout: %s", o.Timeout)
	}

	return nil
}

type rawOptions struct {
	Timeout        *time.Duration `mapstructure:"timeout"`
	Autostart      *bool          `mapstructure:"autostart"`
	OnReady        any            `mapstructure:"onReady"`
	CallbackParams map[string]any `mapstructure:"callbackParams"`
	ErrorPolicy    string         `mapstructure:"errorPolicy"`
	Delivery       string         `mapstructure:"delivery"`
	Rest           map[string]any `mapstructure:",remain"`
}

// OptionsFromMap builds Options from an untyped map. Recognized keys are
// timeout (duration string or milliseconds), autostart, onReady,
// callbackParams, errorPolicy and delivery; every other key lands in SourceOptions.
func OptionsFromMap(m map[string]any) (Options, error) {
	opts := DefaultOptions()

	var raw rawOptions
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisecondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		// keys are matched case-sensitively so that look-alikes reach the source
		MatchName: func(mapKey, fieldName string) bool {
			return mapKey == fieldName
		},
		Result: &raw,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create options decoder: %w", err)
	}

	if err := dec.Decode(m); err != nil {
		return opts, fmt.Errorf("failed to decode options: %w", err)
	}

	if raw.Timeout != nil {
		opts.Timeout = *raw.Timeout
	}
	if raw.Autostart != nil {
		opts.Autostart = *raw.Autostart
	}
	if raw.OnReady != nil {
		ready, err := readyFuncs(raw.OnReady)
		if err != nil {
			return opts, err
		}
		opts.OnReady = ready
	}
	if raw.CallbackParams != nil {
		opts.CallbackParams = raw.CallbackParams
	}
	if raw.ErrorPolicy != "" {
		opts.ErrorPolicy = ErrorPolicy(raw.ErrorPolicy)
	}
	if raw.Delivery != "" {
		opts.Delivery = Delivery(raw.Delivery)
	}
	if len(raw.Rest) > 0 {
		opts.SourceOptions = raw.Rest
	}

	return opts, opts.validate()
}

func readyFuncs(v any) ([]ReadyFunc, error) {
	switch f := v.(type) {
	case ReadyFunc:
		return []ReadyFunc{f}, nil
	case func(context.Context) error:
		return []ReadyFunc{f}, nil
	case func():
		return []ReadyFunc{func(context.Context) error {
			f()
			return nil
		}}, nil
	case []ReadyFunc:
		return f, nil
	case []any:
		var out []ReadyFunc
		for _, e := range f {
			more, err := readyFuncs(e)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("onReady: unsupported callback type %T", v)
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook reads bare numbers destined for a duration as milliseconds.
func millisecondsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}

	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if from == durationType {
			return data, nil
		}
		return time.Duration(reflect.ValueOf(data).Int()) * time.Millisecond, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(reflect.ValueOf(data).Uint()) * time.Millisecond, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Millisecond)), nil
	default:
		return data, nil
	}
}
