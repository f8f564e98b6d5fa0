package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	cl "coinpulse/internal/cli"
	"coinpulse/internal/config"
	"coinpulse/internal/market"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow)
	neutral = color.New(color.FgCyan)
)

func main() {
	cfg := config.LoadCLIFromEnv()

	root := &cobra.Command{
		Use:          "cpx",
		Short:        "CoinPulse market CLI",
		SilenceUsage: true,
	}

	root.AddCommand(
		newCompaniesCmd(&cfg),
		newHistoryCmd(&cfg),
		newBalanceCmd(&cfg),
		newHoldingCmd(&cfg),
		newBuyCmd(&cfg),
		newSellCmd(&cfg),
		newMarketCmd(&cfg),
		newPostCmd(&cfg),
		newFillCmd(&cfg),
		newCancelCmd(&cfg),
		newJoinCmd(&cfg),
		newVerifyCmd(&cfg),
		newAdminCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(cfg *config.CLIConfig) *cl.Client {
	return cl.NewClient(cfg.APIBaseURL, cfg.AdminToken)
}

func opCtx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func asInt64(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func newCompaniesCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List registered companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).ListCompanies(ctx)
			if err != nil {
				return err
			}
			companies, _ := out["companies"].([]any)
			if len(companies) == 0 {
				warn.Println("No companies registered.")
				return nil
			}
			for _, raw := range companies {
				c, _ := raw.(map[string]any)
				neutral.Printf("%s\n", c["name"])
				fmt.Printf("  price %s | pool %d/%d | valuation %s | owner %s\n",
					market.FormatCredits(asInt64(c["price_cents"])),
					asInt64(c["available_shares"]),
					asInt64(c["registered_shares"]),
					market.FormatCredits(asInt64(c["valuation_cents"])),
					c["owner_id"])
			}
			return nil
		},
	}
}

func newHistoryCmd(cfg *config.CLIConfig) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "history <company>",
		Short: "Show sampled share prices for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).PriceHistory(ctx, args[0], period)
			if err != nil {
				return err
			}
			points, _ := out["points"].([]any)
			if len(points) == 0 {
				warn.Println("No price history in this period.")
				return nil
			}
			for _, raw := range points {
				p, _ := raw.(map[string]any)
				fmt.Printf("%s  %s\n", p["sampled_at"], market.FormatCredits(asInt64(p["price_cents"])))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "1d", "lookback window: 1h, 12h, 1d, 3d or 7d")
	return cmd
}

func newBalanceCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user>",
		Short: "Show a user's credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).Balance(ctx, args[0])
			if err != nil {
				return err
			}
			success.Printf("%v credits\n", out["credits"])
			return nil
		},
	}
}

func newHoldingCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "holding <user> <company>",
		Short: "Show a user's shares in a company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).Holding(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%d shares\n", asInt64(out["shares"]))
			return nil
		},
	}
}

func newBuyCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <user> <company> <shares>",
		Short: "Buy shares from the company pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("shares must be a whole number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).Buy(ctx, args[0], args[1], shares)
			if err != nil {
				return err
			}
			success.Printf("Bought %d shares of %s for %v. New price: %v\n", shares, args[1], out["total_cost"], out["new_price"])
			return nil
		},
	}
}

func newSellCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <user> <company> <shares>",
		Short: "Sell shares back to the company pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("shares must be a whole number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).Sell(ctx, args[0], args[1], shares)
			if err != nil {
				return err
			}
			success.Printf("Sold %d shares of %s for %v. New price: %v\n", shares, args[1], out["total_proceeds"], out["new_price"])
			return nil
		},
	}
}

func newMarketCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "market",
		Short: "List open trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).ListTrades(ctx)
			if err != nil {
				return err
			}
			trades, _ := out["trades"].([]any)
			if len(trades) == 0 {
				warn.Println("No trades available.")
				return nil
			}
			for _, raw := range trades {
				t, _ := raw.(map[string]any)
				neutral.Printf("Trade %d\n", asInt64(t["id"]))
				fmt.Printf("  seller %s | %s | %d shares @ %s\n",
					t["seller_id"], t["company_name"],
					asInt64(t["shares_available"]),
					market.FormatCredits(asInt64(t["price_per_share_cents"])))
				if to, ok := t["restricted_to"].(string); ok && to != "" {
					fmt.Printf("  restricted to %s\n", to)
				}
			}
			return nil
		},
	}
}

func newPostCmd(cfg *config.CLIConfig) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "post <seller> <company> <shares> <price>",
		Short: "Post a sell offer on the market",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("shares must be a whole number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).PostTrade(ctx, args[0], args[1], shares, args[3], to)
			if err != nil {
				return err
			}
			success.Printf("Trade %d posted: %d shares of %s at %s per share\n", asInt64(out["trade_id"]), shares, args[1], args[3])
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "restrict the trade to one buyer")
	return cmd
}

func newFillCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "fill <trade-id> <buyer> <shares>",
		Short: "Buy shares from a posted trade",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("trade id must be a number")
			}
			shares, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("shares must be a whole number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).FillTrade(ctx, tradeID, args[1], shares)
			if err != nil {
				return err
			}
			success.Printf("Bought %d shares for %v\n", shares, out["total_price"])
			if closed, _ := out["trade_closed"].(bool); closed {
				neutral.Println("Trade fully filled and closed.")
			} else {
				fmt.Printf("%d shares remain on the trade.\n", asInt64(out["remaining_shares"]))
			}
			return nil
		},
	}
}

func newCancelCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <trade-id> <requester>",
		Short: "Cancel a posted trade (seller only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("trade id must be a number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if _, err := newClient(cfg).CancelTrade(ctx, tradeID, args[1]); err != nil {
				return err
			}
			success.Println("Trade cancelled.")
			return nil
		},
	}
}

func newJoinCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "join <user>",
		Short: "Create a market account with a zero balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if _, err := newClient(cfg).EnsureUser(ctx, args[0]); err != nil {
				return err
			}
			success.Printf("Account %s is ready.\n", args[0])
			return nil
		},
	}
}

func newVerifyCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <user> <nation-id>",
		Short: "Link a user to their nation identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).Verify(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			success.Printf("Linked to nation %v (%v)\n", out["nation_id"], out["nation_name"])
			return nil
		},
	}
}

func newAdminCmd(cfg *config.CLIConfig) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations (require COINPULSE_ADMIN_TOKEN)",
	}

	admin.AddCommand(&cobra.Command{
		Use:   "register <name> <owner> <price> <total-shares>",
		Short: "Register a new company",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			totalShares, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("total shares must be a whole number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if _, err := newClient(cfg).RegisterCompany(ctx, args[0], args[1], args[2], totalShares); err != nil {
				return err
			}
			success.Printf("Company %s registered with %d shares at %s per share\n", args[0], totalShares, args[2])
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "edit <name> <price> <available-shares>",
		Short: "Override a company's price and pool size",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			available, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("available shares must be a whole number")
			}
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if _, err := newClient(cfg).EditCompany(ctx, args[0], args[1], available); err != nil {
				return err
			}
			success.Printf("Company %s updated\n", args[0])
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a company and all related data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if _, err := newClient(cfg).RemoveCompany(ctx, args[0]); err != nil {
				return err
			}
			success.Printf("Company %s removed\n", args[0])
			return nil
		},
	})

	admin.AddCommand(&cobra.Command{
		Use:   "grant <user> <amount>",
		Short: "Grant credits to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			if _, err := newClient(cfg).GrantCredits(ctx, args[0], args[1]); err != nil {
				return err
			}
			success.Printf("Granted %s credits to %s\n", args[1], args[0])
			return nil
		},
	})

	var limit int
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Show recent transaction records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opCtx(cmd)
			defer cancel()
			out, err := newClient(cfg).Transactions(ctx, limit)
			if err != nil {
				return err
			}
			records, _ := out["transactions"].([]any)
			if len(records) == 0 {
				warn.Println("No transactions recorded.")
				return nil
			}
			for _, raw := range records {
				t, _ := raw.(map[string]any)
				fmt.Printf("%s  %-5s %s %d shares of %s @ %s (total %s)\n",
					t["created_at"], t["kind"], t["user_id"],
					asInt64(t["shares"]), t["company_name"],
					market.FormatCredits(asInt64(t["price_cents"])),
					market.FormatCredits(asInt64(t["total_cents"])))
			}
			return nil
		},
	}
	txCmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	admin.AddCommand(txCmd)

	return admin
}
