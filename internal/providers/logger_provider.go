package providers

import (
	"fmt"
	"io"
	"jamsync/internal/structures"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

type TypeEnum int

const (
	TypeApp TypeEnum = iota
	TypeGet
	TypePost
	TypeSync
)

// GetLogTypeByRequestType maps an HTTP method to the access-log channel.
func GetLogTypeByRequestType(method string) TypeEnum {
	if method == "POST" {
		return TypePost
	}
	return TypeGet
}

type Logger interface {
	Errorf(t TypeEnum, format string, args ...interface{})
	Warnf(t TypeEnum, format string, args ...interface{})
	Infof(t TypeEnum, format string, args ...interface{})
	Debugf(t TypeEnum, format string, args ...interface{})
	Fatalf(t TypeEnum, format string, args ...interface{})
	Close()
}

// LogProvider writes the app and sync channels to app.log, the access
// channels to access.log. In debug mode everything is mirrored to stderr.
type LogProvider struct {
	app    zerolog.Logger
	access zerolog.Logger
	files  []*os.File
}

func NewLogProvider(conf *structures.Config) (Logger, error) {
	level, err := zerolog.ParseLevel(conf.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", conf.Logger.Level, err)
	}

	mode := os.FileMode(conf.Logger.Mode)
	appFile, err := openLogFile(filepath.Join(conf.Logger.Dir, "app.log"), mode)
	if err != nil {
		return nil, err
	}
	accessFile, err := openLogFile(filepath.Join(conf.Logger.Dir, "access.log"), mode)
	if err != nil {
		appFile.Close()
		return nil, err
	}

	appOut := io.Writer(appFile)
	accessOut := io.Writer(accessFile)
	if conf.Debug {
		console := zerolog.ConsoleWriter{Out: os.Stderr}
		appOut = zerolog.MultiLevelWriter(appFile, console)
		accessOut = zerolog.MultiLevelWriter(accessFile, console)
	}

	return &LogProvider{
		app:    zerolog.New(appOut).Level(level).With().Timestamp().Logger(),
		access: zerolog.New(accessOut).Level(level).With().Timestamp().Logger(),
		files:  []*os.File{appFile, accessFile},
	}, nil
}

func openLogFile(path string, mode os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

func (l *LogProvider) target(t TypeEnum) *zerolog.Logger {
	if t == TypeGet || t == TypePost {
		return &l.access
	}
	return &l.app
}

func channelName(t TypeEnum) string {
	switch t {
	case TypeGet:
		return "get"
	case TypePost:
		return "post"
	case TypeSync:
		return "sync"
	default:
		return "app"
	}
}

func (l *LogProvider) Errorf(t TypeEnum, format string, args ...interface{}) {
	l.target(t).Error().Str("chan", channelName(t)).Msgf(format, args...)
}

func (l *LogProvider) Warnf(t TypeEnum, format string, args ...interface{}) {
	l.target(t).Warn().Str("chan", channelName(t)).Msgf(format, args...)
}

func (l *LogProvider) Infof(t TypeEnum, format string, args ...interface{}) {
	l.target(t).Info().Str("chan", channelName(t)).Msgf(format, args...)
}

func (l *LogProvider) Debugf(t TypeEnum, format string, args ...interface{}) {
	l.target(t).Debug().Str("chan", channelName(t)).Msgf(format, args...)
}

func (l *LogProvider) Fatalf(t TypeEnum, format string, args ...interface{}) {
	l.target(t).Fatal().Str("chan", channelName(t)).Msgf(format, args...)
}

func (l *LogProvider) Close() {
	for _, f := range l.files {
		_ = f.Close()
	}
}
