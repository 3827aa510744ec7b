package logger

import (
	"go.uber.org/zap"
)

// New returns a sugared zap logger: JSON in production, console output otherwise.
func New(env string) (*zap.SugaredLogger, error) {
	var (
		z   *zap.Logger
		err error
	)
	if env == "production" {
		z, err = zap.NewProduction()
	} else {
		z, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return z.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
