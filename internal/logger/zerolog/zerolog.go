// Package zerolog adapts rs/zerolog to the engine's logger.Logger
// interface.
package zerolog

import (
	"fmt"
	"os"

	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/rs/zerolog"
)

// Adapter wraps a zerolog.Logger behind logger.Logger.
type Adapter struct {
	log zerolog.Logger
}

// New builds a console-writer backed adapter at the given level. Unknown
// levels fail loudly at startup rather than silently defaulting.
func New(level, timeLayout string, jsonFormat bool) (*Adapter, error) {
	logMode, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(logMode)

	var log zerolog.Logger
	if jsonFormat {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeLayout}
		log = zerolog.New(output).With().Timestamp().Logger()
	}

	return &Adapter{log: log}, nil
}

// NewAdapter wraps an existing zerolog.Logger.
func NewAdapter(log zerolog.Logger) *Adapter { return &Adapter{log: log} }

func (a *Adapter) WithField(key string, value any) logger.Logger {
	return &Adapter{log: a.log.With().Interface(key, value).Logger()}
}

func (a *Adapter) WithFields(fields map[string]any) logger.Logger {
	ctx := a.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Adapter{log: ctx.Logger()}
}

func (a *Adapter) WithError(err error) logger.Logger {
	return &Adapter{log: a.log.With().Err(err).Logger()}
}

func (a *Adapter) Debug(args ...any) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Info(args ...any)  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Warn(args ...any)  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Error(args ...any) { a.log.Error().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Fatal(args ...any) { a.log.Fatal().Msg(fmt.Sprint(args...)) }

func (a *Adapter) Debugf(format string, args ...any) { a.log.Debug().Msgf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.log.Info().Msgf(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.log.Warn().Msgf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.log.Error().Msgf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.log.Fatal().Msgf(format, args...) }
