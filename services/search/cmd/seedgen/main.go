// Command seedgen writes a synthetic catalog in the seed file format read by
// the search service when FIELD_DEFINITIONS_FILE is set.
//
//	SEED_DOCUMENTS=10000 SEED_OUTPUT=catalog.yaml go run ./services/search/cmd/seedgen
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"

	"github.com/Salle79/Litium/pkg/logger"
	"github.com/Salle79/Litium/services/search/internal/seed"
)

type config struct {
	Documents int    `env:"SEED_DOCUMENTS" envDefault:"10000"`
	Channels  int    `env:"SEED_CHANNELS" envDefault:"2"`
	Seed      uint64 `env:"SEED_RANDOM_SEED" envDefault:"1"`
	// Output is a file path. Empty writes to stdout.
	Output   string `env:"SEED_OUTPUT"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.NewWithFormat("seedgen", cfg.LogLevel, logger.FormatText, os.Stderr)

	if err := run(cfg, log); err != nil {
		log.Error("seed generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config, log *slog.Logger) error {
	if cfg.Documents < 0 || cfg.Channels < 1 {
		return errors.New("SEED_DOCUMENTS must not be negative and SEED_CHANNELS must be positive")
	}

	f := seed.Generate(seed.GenerateOptions{
		Documents: cfg.Documents,
		Channels:  cfg.Channels,
		Seed:      cfg.Seed,
	})

	var out io.Writer = os.Stdout
	if cfg.Output != "" {
		file, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		out = file
	}

	w := bufio.NewWriter(out)
	if err := f.Write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	log.Info("seed file written",
		slog.Int("documents", len(f.Documents)),
		slog.Int("channels", len(f.Channels)),
		slog.Int("field_definitions", len(f.FieldDefinitions)),
		slog.String("output", cfg.Output),
	)
	return nil
}
