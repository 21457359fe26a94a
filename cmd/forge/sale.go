package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/rohankatakam/assetforge/internal/sales"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	saleAsset    string
	saleAmount   string
	saleCurrency string
)

var saleCmd = &cobra.Command{
	Use:   "sale",
	Short: "Record a manual sale and rescore the asset",
	Long: `Record an operator-entered sale. The amount is added to the asset's
revenue and the asset is rescored immediately.

Example:
  forge sale --asset 3f1c... --amount 19.99 --currency eur`,
	RunE: runSale,
}

func init() {
	saleCmd.Flags().StringVar(&saleAsset, "asset", "", "asset id")
	saleCmd.Flags().StringVar(&saleAmount, "amount", "", "sale amount, e.g. 19.99")
	saleCmd.Flags().StringVar(&saleCurrency, "currency", sales.DefaultCurrency, "ISO currency code")
	saleCmd.MarkFlagRequired("asset")
	saleCmd.MarkFlagRequired("amount")
}

func runSale(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(saleAmount)
	if err != nil {
		return fmt.Errorf("invalid --amount %q: %w", saleAmount, err)
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.ValidationContextStorage, false)
	if err != nil {
		return err
	}
	defer a.Close()

	receipt, err := a.ledger.RecordManual(ctx, sales.Manual{
		AssetID:  saleAsset,
		Amount:   amount,
		Currency: saleCurrency,
	})
	if err != nil {
		return err
	}
	return printer().Print(fmt.Sprintf("%s recorded for %s, now %s", amount.StringFixed(2), receipt.SKUSlug, receipt.NewRarity), struct {
		*sales.Receipt
		Transaction interface{} `json:"transaction"`
	}{receipt, receipt.Transaction})
}
