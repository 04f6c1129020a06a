package logging

import (
	"context"
	"sync"
)

// LoggerFactory lets an embedding application route library logs into its own logger.
type LoggerFactory interface {
	CreateLogger(ctx context.Context) Logger
}

type LoggerFactoryFunc func(ctx context.Context) Logger

func (f LoggerFactoryFunc) CreateLogger(ctx context.Context) Logger {
	return f(ctx)
}

var (
	loggerFactoryMu sync.RWMutex
	loggerFactory   LoggerFactory
)

// SetLoggerFactory installs factory; nil restores the logrus default.
func SetLoggerFactory(factory LoggerFactory) {
	loggerFactoryMu.Lock()
	defer loggerFactoryMu.Unlock()

	loggerFactory = factory
}

func GetLoggerFactory() LoggerFactory {
	loggerFactoryMu.RLock()
	defer loggerFactoryMu.RUnlock()

	return loggerFactory
}
