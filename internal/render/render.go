// Package render turns a RiskReport into text, Markdown or JSON.
package render

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"eth-rugcheck/internal/bytecode"
	"eth-rugcheck/internal/derive"
	"eth-rugcheck/internal/risk"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var ErrUnknownFormat = errors.New("unknown output format")

const (
	FormatText     = "text"
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// Write renders r to w in the named format.
func Write(w io.Writer, format string, r *risk.RiskReport) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, Text(r))
		return err
	case FormatMarkdown, "markdown":
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatJSON:
		b, err := JSON(r)
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func Text(r *risk.RiskReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rug check: %s on chain %d\n", r.Token.Label(), r.ChainID)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	width := 0
	rs := rows(r)
	for _, row := range rs {
		if len(row.label) > width {
			width = len(row.label)
		}
	}
	for _, row := range rs {
		fmt.Fprintf(&b, "%-*s  %s\n", width+1, row.label+":", row.value)
	}

	if r.Narrative != nil {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", *r.Narrative)
	}
	if len(r.Caveats) > 0 {
		b.WriteString("\nCaveats:\n")
		for _, c := range r.Caveats {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	return b.String()
}

func Markdown(r *risk.RiskReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Rug check: %s\n\n", r.Token.Label())
	fmt.Fprintf(&b, "Chain %d, generated %s.\n\n", r.ChainID, r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString("| Signal | Value |\n|---|---|\n")
	for _, row := range rows(r) {
		fmt.Fprintf(&b, "| %s | %s |\n", row.label, strings.ReplaceAll(row.value, "|", `\|`))
	}
	if r.Narrative != nil {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", *r.Narrative)
	}
	if len(r.Caveats) > 0 {
		b.WriteString("\n## Caveats\n\n")
		for _, c := range r.Caveats {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return b.String()
}

// JSON is the indented machine-readable form.
func JSON(r *risk.RiskReport) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// AppendJSONL appends r as one line to the file at path.
func AppendJSONL(path string, r *risk.RiskReport) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	w := bufio.NewWriter(f)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
	return w.Flush()
}

type row struct {
	label string
	value string
}

func rows(r *risk.RiskReport) []row {
	target, quote := r.Token, r.Quote
	qs := r.QuoteSignals
	return []row{
		{"Token", tokenLine(target)},
		{"Quote", tokenLine(quote)},
		{"Pair", r.Pair.Pair.Hex()},
		{"Total supply", show(target.TotalSupply, func(v *uint256.Int) string { return amount(v, target) })},
		{"Reserves", show(r.Reserves, func(v risk.Reserves) string {
			t, q := v.Oriented(r.Pair)
			return fmt.Sprintf("%s / %s", amount(t, target), amount(q, quote))
		})},
		{"Spot price", show(risk.Map(r.Reserves, func(v risk.Reserves) decimal.Decimal {
			t, q := v.Oriented(r.Pair)
			return derive.SpotPrice(t, q)
		}), func(v decimal.Decimal) string { return spotPrice(v, target, quote) })},
		{"LP total supply", show(r.LPTotalSupply, func(v *uint256.Int) string { return v.Dec() })},
		{"Liquidity", liquidity(r.LiquidityStatus, r.LockedPercent)},
		{"Quote liquidity", string(r.QuoteLiquidityStatus)},
		{"Market cap", show(r.MarketCap, func(v decimal.Decimal) string { return marketCap(v, quote) })},
		{"Mintable", show(r.Mintable, func(v risk.Mintability) string { return string(v) })},
		{"Supply", show(r.SupplyFixed, func(v risk.SupplyStatus) string { return string(v) })},
		{"Mint selector in code", show(r.MintSelector, yesNo)},
		{"Ownership", show(r.Ownership, ownership)},
		{"Age", show(r.AgeDays, func(v int) string { return fmt.Sprintf("%d days", v) })},
		{"Self-destruct", show(r.SelfDestructPresent, yesNo)},
		{"Volume (24h)", show(r.Volume24h, func(v risk.Volume) string { return volume(v, r) })},
		{"Code flags", show(r.CodeFlags, flags)},
		{"Token standard", orNone(r.TokenStandard)},
		{"Quote market cap", show(qs.MarketCap, func(v decimal.Decimal) string { return marketCap(v, target) })},
		{"Quote mintable", show(qs.Mintable, func(v risk.Mintability) string { return string(v) })},
		{"Quote supply", show(qs.SupplyFixed, func(v risk.SupplyStatus) string { return string(v) })},
		{"Quote ownership", show(qs.Ownership, ownership)},
		{"Quote age", show(qs.AgeDays, func(v int) string { return fmt.Sprintf("%d days", v) })},
		{"Quote self-destruct", show(qs.SelfDestructPresent, yesNo)},
	}
}

// show renders a failed result as FAILED (<reason>) and an ok one through f.
func show[T any](res risk.Result[T], f func(T) string) string {
	v, ok := res.Get()
	if !ok {
		return fmt.Sprintf("FAILED (%s)", res.Reason())
	}
	return f(v)
}

func tokenLine(t risk.TokenStaticInfo) string {
	name := "?"
	if t.Name != nil {
		name = *t.Name
	}
	sym := "?"
	if t.Symbol != nil {
		sym = *t.Symbol
	}
	dec := "?"
	if t.Decimals != nil {
		dec = fmt.Sprint(*t.Decimals)
	}
	return fmt.Sprintf("%s (%s) %s, decimals %s", name, sym, t.Address.Hex(), dec)
}

// amount scales raw units by the token's decimals when they are known.
func amount(v *uint256.Int, t risk.TokenStaticInfo) string {
	if v == nil {
		return "?"
	}
	if t.Decimals == nil {
		return v.Dec() + " raw " + t.Label()
	}
	return derive.ScaleUnits(derive.ToDecimal(v), *t.Decimals).String() + " " + t.Label()
}

// marketCap scales a cap priced in raw units of in.
func marketCap(v decimal.Decimal, in risk.TokenStaticInfo) string {
	if in.Decimals == nil {
		return v.StringFixed(2) + " raw " + in.Label()
	}
	return derive.ScaleUnits(v, *in.Decimals).StringFixed(6) + " " + in.Label()
}

// spotPrice is quote per target, in whole units when both decimals are known.
func spotPrice(v decimal.Decimal, target, quote risk.TokenStaticInfo) string {
	if target.Decimals == nil || quote.Decimals == nil {
		return v.String() + " raw " + quote.Label() + " per raw " + target.Label()
	}
	return v.Shift(int32(*target.Decimals)-int32(*quote.Decimals)).String() + " " + quote.Label() + " per " + target.Label()
}

func liquidity(status risk.LiquidityStatus, pct risk.Result[decimal.Decimal]) string {
	if p, ok := pct.Get(); ok {
		return fmt.Sprintf("%s (%s%% of supply in pool)", status, p.StringFixed(2))
	}
	return fmt.Sprintf("%s (locked share FAILED (%s))", status, pct.Reason())
}

func ownership(o risk.Ownership) string {
	if o.Status == risk.Renounced {
		return string(o.Status)
	}
	return fmt.Sprintf("%s (owner %s)", o.Status, o.Owner.Hex())
}

func volume(v risk.Volume, r *risk.RiskReport) string {
	t0, t1 := r.Token, r.Quote
	if !r.Pair.TargetIsToken0() {
		t0, t1 = r.Quote, r.Token
	}
	return fmt.Sprintf("%s in / %s in, %d swaps in blocks %d-%d",
		amount(v.Token0, t0), amount(v.Token1, t1), v.Swaps, v.FromBlock, v.ToBlock)
}

func flags(a bytecode.Analysis) string {
	if len(a.Flags) == 0 {
		return "none"
	}
	return fmt.Sprintf("%s (score %d)", strings.Join(a.Flags, ", "), a.Score)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNone(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
