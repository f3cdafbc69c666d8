package main

import (
	"os"
	"time"

	"github.com/riftlink/riftlink/gateway"
	"github.com/sirupsen/logrus"
)

func configureLogger(cfg Config) {
	logrusLogger.Out = os.Stderr
	if cfg.IsDebug {
		logrusLogger.SetLevel(logrus.DebugLevel)
		logrusLogger.SetReportCaller(true)
	} else {
		logrusLogger.SetLevel(logrus.InfoLevel)
		logrusLogger.SetReportCaller(false)
	}
	logrusLogger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})

	logSampling = gateway.LogSamplingConfig{
		Tick:  cfg.LogSamplingTick,
		After: cfg.LogSamplingAfter,
	}
}
