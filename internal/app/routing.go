package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/chargeledger/internal/fx"
	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

// LoadRouting reads the ledger routing file on top of ledger.DefaultConfig. An empty path
// yields the defaults.
func LoadRouting(path string) (ledger.Config, error) {
	if path == "" {
		return ledger.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("app: open routing file: %w", err)
	}
	defer f.Close()
	return DecodeRouting(f)
}

// DecodeRouting parses a routing document. Unknown keys are rejected.
func DecodeRouting(r io.Reader) (ledger.Config, error) {
	cfg := ledger.DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return ledger.Config{}, fmt.Errorf("app: decode routing: %w", err)
	}
	code, err := fx.NormalizeCurrency(cfg.LocalCurrency)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("app: routing local_currency: %w", err)
	}
	cfg.LocalCurrency = code
	if err := validator.New().Struct(cfg); err != nil {
		return ledger.Config{}, fmt.Errorf("app: invalid routing: %w", err)
	}
	return cfg, nil
}
