package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	pricingsvc "xstock-options/internal/application/pricing"
	"xstock-options/internal/pkg/units"
	"xstock-options/internal/pricing"

	"github.com/spf13/cobra"
)

func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newIVCmd(app))
	rootCmd.AddCommand(newHVCmd(app))
	rootCmd.AddCommand(newPremiumCmd(app))
}

// addContractFlags registers the inputs shared by every priced contract.
func addContractFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spot", 0, "underlying spot price")
	cmd.Flags().Float64("strike", 0, "strike price per unit")
	cmd.Flags().Float64("time", 30, "time to expiry, in --unit")
	cmd.Flags().String("unit", string(pricing.Days), "time unit (minutes, hours, days, weeks, months)")
	cmd.Flags().Float64("rate", pricing.DefaultRiskFreeRate, "annual risk-free rate")
	cmd.Flags().String("type", string(pricing.Call), "option type (call, put)")
}

type contract struct {
	Spot   float64
	Strike float64
	Years  float64
	Rate   float64
	Type   pricing.OptionType
}

func readContract(cmd *cobra.Command) (contract, error) {
	var c contract
	c.Spot, _ = cmd.Flags().GetFloat64("spot")
	c.Strike, _ = cmd.Flags().GetFloat64("strike")
	c.Rate, _ = cmd.Flags().GetFloat64("rate")
	t, _ := cmd.Flags().GetFloat64("time")
	unit, _ := cmd.Flags().GetString("unit")
	typ, _ := cmd.Flags().GetString("type")

	if c.Spot <= 0 || c.Strike <= 0 {
		return c, fmt.Errorf("--spot and --strike must be positive")
	}
	if t < 0 {
		return c, fmt.Errorf("--time must not be negative")
	}
	var err error
	if c.Years, err = pricing.TimeToYears(t, pricing.TimeUnit(unit)); err != nil {
		return c, err
	}
	if c.Type, err = pricing.ParseOptionType(typ); err != nil {
		return c, err
	}
	return c, nil
}

func newQuoteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an option with Greeks",
		Long: `Price a European option with Black-Scholes after adjusting the base
volatility for skew and term structure.`,
		Example: `  optionsctl quote --spot 150 --strike 155 --vol 0.3 --time 30
  optionsctl quote --spot 150 --strike 140 --vol 0.3 --time 2 --unit weeks --type put --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readContract(cmd)
			if err != nil {
				return err
			}
			vol, _ := cmd.Flags().GetFloat64("vol")
			if vol <= 0 {
				return fmt.Errorf("--vol must be positive")
			}

			q := pricing.PriceOption(c.Spot, c.Strike, c.Rate, vol, c.Years, c.Type)
			app.Logger.Debug().Float64("years", c.Years).Float64("iv", q.IV).Msg("priced")

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(q)
			}
			output.Row("Price", "%.4f", q.Price)
			output.Row("Intrinsic", "%.4f", q.IntrinsicValue)
			output.Row("Time value", "%.4f", q.TimeValue)
			output.Row("In the money", "%t", q.IsITM)
			output.Row("Surface IV", "%.2f%%", q.IV*100)
			output.Row("Delta", "%.4f", q.Delta)
			output.Row("Gamma", "%.6f", q.Gamma)
			output.Row("Theta/day", "%.4f", q.Theta)
			output.Row("Vega/1%", "%.4f", q.Vega)
			output.Row("Rho/1%", "%.4f", q.Rho)
			return nil
		},
	}
	addContractFlags(cmd)
	cmd.Flags().Float64("vol", 0, "annualized base volatility (0.3 = 30%)")
	return cmd
}

func newIVCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Solve implied volatility from an option price",
		Example: `  optionsctl iv --price 4.2 --spot 150 --strike 155 --time 30
  optionsctl iv --price 4.2 --spot 150 --strike 155 --time 30 --method newton`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readContract(cmd)
			if err != nil {
				return err
			}
			price, _ := cmd.Flags().GetFloat64("price")
			method, _ := cmd.Flags().GetString("method")
			m := pricing.IVMethod(method)
			if m != pricing.Bisection && m != pricing.NewtonRaphson {
				return fmt.Errorf("unknown method %q", method)
			}

			res := pricing.ImpliedVolatility(price, c.Spot, c.Strike, c.Rate, c.Years, c.Type, pricing.IVOptions{Method: m})
			app.Logger.Debug().Int("iterations", res.Iterations).Bool("converged", res.Converged).Msg("iv solved")

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(pricingsvc.NewIVView(res))
			}
			output.Row("IV", "%.2f%%", res.IV*100)
			output.Row("Converged", "%t", res.Converged)
			output.Row("Iterations", "%d", res.Iterations)
			output.Row("Price error", "%.6f", res.Error)
			if !res.Converged {
				output.Row("Reason", "%s", res.ReasonText())
			}
			return nil
		},
	}
	addContractFlags(cmd)
	cmd.Flags().Float64("price", 0, "observed option price")
	cmd.Flags().String("method", string(pricing.Bisection), "solver (bisection, newton)")
	return cmd
}

func newHVCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hv [prices...]",
		Short: "Estimate historical volatility from closes",
		Long: `Estimate annualized close-to-close volatility over 5, 10, 20 and 60
period windows and the full series. Prices are oldest first, either as
arguments or one per line in --file.`,
		Example: `  optionsctl hv 148 149.5 151 150 152.3
  optionsctl hv --file closes.txt --periods 365`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			periods, _ := cmd.Flags().GetFloat64("periods")

			var prices []float64
			var err error
			switch {
			case file != "" && len(args) > 0:
				return fmt.Errorf("pass prices as arguments or --file, not both")
			case file != "":
				prices, err = readPriceFile(file)
			default:
				prices, err = parsePrices(args)
			}
			if err != nil {
				return err
			}
			if len(prices) == 0 {
				return fmt.Errorf("no prices given")
			}

			full := pricing.HistoricalVolatility(prices, periods)
			w := pricing.VolatilityWindows(prices, periods)
			app.Logger.Debug().Int("prices", len(prices)).Int("samples", full.SampleSize).Msg("hv computed")

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"result": full, "windows": w})
			}
			if full.NoData() {
				output.Printf("not enough data, using fallback %.2f%%\n", pricing.FallbackHV*100)
				return nil
			}
			output.Row("HV", "%.2f%%", full.HV*100)
			output.Row("HV daily", "%.4f%%", full.HVDaily*100)
			output.Row("Samples", "%d", full.SampleSize)
			output.Row("HV 5", "%.2f%%", w.HV5*100)
			output.Row("HV 10", "%.2f%%", w.HV10*100)
			output.Row("HV 20", "%.2f%%", w.HV20*100)
			output.Row("HV 60", "%.2f%%", w.HV60*100)
			output.Row("Weighted", "%.2f%%", w.HVWeighted*100)
			return nil
		},
	}
	cmd.Flags().String("file", "", "read prices from a file, one per line")
	cmd.Flags().Float64("periods", pricing.TradingDaysPerYear, "periods per year for annualizing")
	return cmd
}

type premiumOutput struct {
	PerUnit     float64 `json:"per_unit"`
	Premium     uint64  `json:"premium"`
	Strike      uint64  `json:"strike"`
	DisplayPrem string  `json:"display_premium"`
	DisplayStrk string  `json:"display_strike"`
	IV          float64 `json:"iv"`
}

func newPremiumCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "premium",
		Short: "Size a covered-call premium and strike in base units",
		Long: `Price a covered call on --amount base units of the underlying and
convert the per-unit premium and strike to quote base units, ready for a
create-covered-call request.`,
		Example: `  optionsctl premium --spot 150 --strike 155 --vol 0.3 --time 30 --amount 1000000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readContract(cmd)
			if err != nil {
				return err
			}
			if c.Type != pricing.Call {
				return fmt.Errorf("covered positions are calls only")
			}
			vol, _ := cmd.Flags().GetFloat64("vol")
			amount, _ := cmd.Flags().GetUint64("amount")
			uDec, _ := cmd.Flags().GetInt32("underlying-decimals")
			qDec, _ := cmd.Flags().GetInt32("quote-decimals")
			if vol <= 0 {
				return fmt.Errorf("--vol must be positive")
			}
			if amount == 0 {
				return fmt.Errorf("--amount must be positive")
			}

			q := pricing.PriceOption(c.Spot, c.Strike, c.Rate, vol, c.Years, pricing.Call)
			premium, err := units.Total(q.Price, qDec, amount, uDec)
			if err != nil {
				return err
			}
			strike, err := units.Total(c.Strike, qDec, amount, uDec)
			if err != nil {
				return err
			}
			app.Logger.Debug().Uint64("premium", premium).Uint64("strike", strike).Msg("premium sized")

			out := premiumOutput{
				PerUnit:     q.Price,
				Premium:     premium,
				Strike:      strike,
				DisplayPrem: units.ToDisplay(premium, qDec).String(),
				DisplayStrk: units.ToDisplay(strike, qDec).String(),
				IV:          q.IV,
			}
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(out)
			}
			output.Row("Per unit", "%.4f", out.PerUnit)
			output.Row("Premium", "%d (%s)", out.Premium, out.DisplayPrem)
			output.Row("Strike", "%d (%s)", out.Strike, out.DisplayStrk)
			output.Row("Surface IV", "%.2f%%", out.IV*100)
			return nil
		},
	}
	addContractFlags(cmd)
	cmd.Flags().Float64("vol", 0, "annualized base volatility (0.3 = 30%)")
	cmd.Flags().Uint64("amount", 0, "underlying amount in base units")
	cmd.Flags().Int32("underlying-decimals", units.DefaultDecimals, "underlying asset decimals")
	cmd.Flags().Int32("quote-decimals", units.DefaultDecimals, "quote asset decimals")
	return cmd
}

func parsePrices(args []string) ([]float64, error) {
	prices := make([]float64, 0, len(args))
	for _, a := range args {
		p, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", a, err)
		}
		prices = append(prices, p)
	}
	return prices, nil
}

func readPriceFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return parsePrices(lines)
}
