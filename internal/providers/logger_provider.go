package providers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"mentiond/internal/structures"
)

type TypeEnum int

const (
	TypeApp TypeEnum = iota
	TypeGet
	TypePost
	TypeStream
)

type Logger interface {
	Errorf(t TypeEnum, format string, args ...interface{})
	Warnf(t TypeEnum, format string, args ...interface{})
	Debugf(t TypeEnum, format string, args ...interface{})
	Infof(t TypeEnum, format string, args ...interface{})
	Fatalf(t TypeEnum, format string, args ...interface{})
	Close()
}

func GetLogTypeByRequestType(method string) TypeEnum {
	switch method {
	case http.MethodPost, http.MethodPatch:
		return TypePost
	}
	return TypeGet
}

type LogProvider struct {
	appLog    zerolog.Logger
	accessLog zerolog.Logger
	files     []*os.File
}

func NewLogProvider(conf *structures.Config) (Logger, error) {
	level, err := zerolog.ParseLevel(conf.Logger.Level)
	if err != nil {
		return nil, err
	}
	mode := os.FileMode(conf.Logger.Mode)

	appFile, err := os.OpenFile(filepath.Join(conf.Logger.Dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		return nil, err
	}
	accessFile, err := os.OpenFile(filepath.Join(conf.Logger.Dir, "access.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		appFile.Close()
		return nil, err
	}

	return &LogProvider{
		appLog:    zerolog.New(appFile).Level(level).With().Timestamp().Logger(),
		accessLog: zerolog.New(accessFile).Level(level).With().Timestamp().Logger(),
		files:     []*os.File{appFile, accessFile},
	}, nil
}

func (l *LogProvider) pick(t TypeEnum) *zerolog.Logger {
	switch t {
	case TypeGet, TypePost:
		return &l.accessLog
	default:
		return &l.appLog
	}
}

func (l *LogProvider) Errorf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Error().Msgf(format, args...)
}

func (l *LogProvider) Warnf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Warn().Msgf(format, args...)
}

func (l *LogProvider) Debugf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Debug().Msgf(format, args...)
}

func (l *LogProvider) Infof(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Info().Msgf(format, args...)
}

func (l *LogProvider) Fatalf(t TypeEnum, format string, args ...interface{}) {
	l.pick(t).Fatal().Msgf(format, args...)
}

func (l *LogProvider) Close() {
	for _, f := range l.files {
		_ = f.Close()
	}
}
