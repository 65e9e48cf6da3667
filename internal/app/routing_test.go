package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/chargeledger/internal/ledger"
)

func TestLoadRoutingFile(t *testing.T) {
	fee := uuid.New()
	deposit := uuid.New()
	wallet := uuid.New()
	account := uuid.New()
	doc := "local_currency: ils\n" +
		"epsilon: 0.01\n" +
		"fee_tax_category_id: " + fee.String() + "\n" +
		"bank_deposit_business_id: " + deposit.String() + "\n" +
		"internal_wallet_businesses:\n" +
		"  " + wallet.String() + ": " + account.String() + "\n" +
		"reserves:\n" +
		"  recovery_day_value: 471\n"
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadRouting(path)
	require.NoError(t, err)
	require.Equal(t, "ILS", cfg.LocalCurrency)
	require.Equal(t, 0.01, cfg.Tolerance())
	require.Equal(t, fee, *cfg.FeeTaxCategoryID)
	require.Equal(t, deposit, *cfg.BankDepositBusinessID)
	require.Nil(t, cfg.RevaluationTaxCategoryID)
	got, ok := cfg.InternalWalletAccount(wallet)
	require.True(t, ok)
	require.Equal(t, account, got)
	require.Equal(t, 471.0, cfg.Reserves.RecoveryDayValue)
	require.Equal(t, 21.67, cfg.Reserves.WorkDaysPerMonth)
}

func TestLoadRoutingDefaults(t *testing.T) {
	cfg, err := LoadRouting("")
	require.NoError(t, err)
	require.Equal(t, ledger.DefaultConfig(), cfg)

	cfg, err = DecodeRouting(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "ILS", cfg.LocalCurrency)
}

func TestDecodeRoutingRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "fee_category: x\n",
		"bad currency":     "local_currency: QQQ\n",
		"epsilon too wide": "epsilon: 2\n",
		"bad uuid":         "fee_tax_category_id: nope\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRouting(strings.NewReader(doc))
			require.Error(t, err)
		})
	}

	_, err := LoadRouting(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestShippedRoutingFileLoads(t *testing.T) {
	cfg, err := LoadRouting(filepath.Join("..", "..", "config", "ledger.yaml"))
	require.NoError(t, err)
	require.Equal(t, "ILS", cfg.LocalCurrency)
	require.Equal(t, 418.0, cfg.Reserves.RecoveryDayValue)
	require.Nil(t, cfg.FeeTaxCategoryID)
}
