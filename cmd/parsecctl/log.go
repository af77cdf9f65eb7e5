package main

import (
	"os"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func initLogging() {
	levelFlag, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonFlag, _ := rootCmd.PersistentFlags().GetBool("log-json")

	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if jsonFlag {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
}
