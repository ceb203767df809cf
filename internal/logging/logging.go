/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, nil)
}

// SetupWithWriter configures zerolog with an additional writer (e.g., the
// in-memory log buffer). Development gets a console writer and debug level;
// everything else emits JSON.
func SetupWithWriter(environment string, additionalWriter io.Writer) zerolog.Logger {
	// RFC3339 so the log buffer can recover entry timestamps from the line.
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	var writer io.Writer = os.Stdout
	if environment == "development" {
		level = zerolog.DebugLevel
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	if additionalWriter != nil {
		writer = zerolog.MultiLevelWriter(writer, additionalWriter)
	}

	logger := zerolog.New(writer).With().
		Timestamp().
		Str("service", "shuttle-hub").
		Logger().
		Level(level)
	log.Logger = logger
	return logger
}
