// pkg/cleaner/operations_test.go
package cleaner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

func TestFillOp(t *testing.T) {
	op := &fillOp{fill: model.FloatValue(0)}

	v, entries, drop := op.clean("discount_pct", model.MissingValue())
	assert.Equal(t, model.FloatValue(0), v)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionNullFilled, entries[0].Action)
	assert.Equal(t, "fill=0", entries[0].Detail)
	assert.False(t, drop)

	v, entries, _ = op.clean("discount_pct", model.FloatValue(12))
	assert.Equal(t, model.FloatValue(12), v)
	assert.Empty(t, entries, "present values are never overwritten")
}

func TestDateOpFormatsTriedInOrder(t *testing.T) {
	op, err := newDateOp(config.DatesConfig{
		Fields:        []string{"order_date"},
		InputFormats:  []string{"%Y-%m-%d", "%d/%m/%Y"},
		InvalidToNull: true,
	})
	require.NoError(t, err)

	jan5 := model.DateValue(time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name       string
		input      string
		want       model.Value
		wantAction string
		wantDetail string
	}{
		{name: "first format wins", input: "2023-01-05", want: jan5, wantAction: model.ActionParsed, wantDetail: "format=%Y-%m-%d"},
		{name: "later format matches", input: "05/01/2023", want: jan5, wantAction: model.ActionParsed, wantDetail: "format=%d/%m/%Y"},
		{name: "whitespace tolerated", input: " 2023-01-05 ", want: jan5, wantAction: model.ActionParsed, wantDetail: "format=%Y-%m-%d"},
		{name: "no format matches", input: "Jan-5-23", want: model.MissingValue(), wantAction: model.ActionUnparseable, wantDetail: "value=Jan-5-23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, entries, drop := op.clean("order_date", model.StringValue(tt.input))
			assert.Equal(t, tt.want, v)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantAction, entries[0].Action)
			assert.Equal(t, tt.wantDetail, entries[0].Detail)
			assert.False(t, drop)
		})
	}
}

func TestDateOpKeepsTextWithoutInvalidToNull(t *testing.T) {
	op, err := newDateOp(config.DatesConfig{InputFormats: []string{"%Y-%m-%d"}})
	require.NoError(t, err)

	v, entries, _ := op.clean("order_date", model.StringValue("not a date"))
	assert.Equal(t, model.StringValue("not a date"), v)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionUnparseable, entries[0].Action)
}

func TestDateOpIgnoresNonText(t *testing.T) {
	op, err := newDateOp(config.DatesConfig{InputFormats: []string{"%Y-%m-%d"}})
	require.NoError(t, err)

	v, entries, _ := op.clean("order_date", model.MissingValue())
	assert.True(t, v.IsMissing())
	assert.Empty(t, entries)
}

func TestDateOpRejectsBadFormat(t *testing.T) {
	_, err := newDateOp(config.DatesConfig{InputFormats: []string{"%Q"}})
	require.Error(t, err)
}

func TestPriceOpParsing(t *testing.T) {
	op := newPriceOp(config.PricesConfig{
		Fields:                   []string{"unit_price"},
		Min:                      0,
		Max:                      100000,
		DecimalPlaces:            2,
		AllowParenthesesNegative: true,
		Policy:                   config.PolicyFlag,
	})

	tests := []struct {
		name  string
		input model.Value
		want  model.Value
	}{
		{name: "currency symbol and grouping", input: model.StringValue("₹1,234.56"), want: model.FloatValue(1234.56)},
		{name: "dollar prefix", input: model.StringValue("$99.90"), want: model.FloatValue(99.9)},
		{name: "plain integer text", input: model.StringValue("300"), want: model.FloatValue(300)},
		{name: "rounded to cents", input: model.StringValue("19.999"), want: model.FloatValue(20)},
		{name: "numeric passthrough", input: model.FloatValue(42.424), want: model.FloatValue(42.42)},
		{name: "int input", input: model.IntValue(5), want: model.FloatValue(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, entries, drop := op.clean("unit_price", tt.input)
			assert.Equal(t, tt.want, v)
			require.Len(t, entries, 1)
			assert.Equal(t, model.ActionParsed, entries[0].Action)
			assert.False(t, drop)
		})
	}
}

func TestPriceOpBoundPolicies(t *testing.T) {
	base := config.PricesConfig{
		Fields:                   []string{"unit_price"},
		Min:                      0,
		Max:                      100000,
		DecimalPlaces:            2,
		AllowParenthesesNegative: true,
	}

	t.Run("flag keeps the value and annotates", func(t *testing.T) {
		cfg := base
		cfg.Policy = config.PolicyFlag
		v, entries, drop := newPriceOp(cfg).clean("unit_price", model.FloatValue(-5))
		assert.Equal(t, model.FloatValue(-5), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionOutlierFlagged, entries[0].Action)
		assert.Equal(t, "outside [0, 100000]", entries[0].Detail)
		assert.False(t, drop)
	})

	t.Run("clamp pulls onto the violated bound", func(t *testing.T) {
		cfg := base
		cfg.Policy = config.PolicyClamp
		v, entries, drop := newPriceOp(cfg).clean("unit_price", model.FloatValue(-5))
		assert.Equal(t, model.FloatValue(0), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionClamped, entries[0].Action)
		assert.False(t, drop)

		v, _, _ = newPriceOp(cfg).clean("unit_price", model.FloatValue(250000))
		assert.Equal(t, model.FloatValue(100000), v)
	})

	t.Run("drop_row rejects the record", func(t *testing.T) {
		cfg := base
		cfg.Policy = config.PolicyDropRow
		v, entries, drop := newPriceOp(cfg).clean("unit_price", model.FloatValue(-5))
		assert.Equal(t, model.FloatValue(-5), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionInvalid, entries[0].Action)
		assert.True(t, drop)
	})

	t.Run("unset policy defaults to flag", func(t *testing.T) {
		v, entries, drop := newPriceOp(base).clean("unit_price", model.FloatValue(-5))
		assert.Equal(t, model.FloatValue(-5), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionOutlierFlagged, entries[0].Action)
		assert.False(t, drop)
	})
}

func TestPriceOpParenthesesNegative(t *testing.T) {
	cfg := config.PricesConfig{
		Fields:                   []string{"revenue"},
		Min:                      -1000,
		Max:                      1000,
		DecimalPlaces:            2,
		AllowParenthesesNegative: true,
	}
	v, entries, _ := newPriceOp(cfg).clean("revenue", model.StringValue("(500.00)"))
	assert.Equal(t, model.FloatValue(-500), v)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionParsed, entries[0].Action)

	cfg.AllowParenthesesNegative = false
	v, _, _ = newPriceOp(cfg).clean("revenue", model.StringValue("(500.00)"))
	assert.Equal(t, model.FloatValue(500), v, "accounting negatives need explicit opt-in")
}

func TestPriceOpUnparseable(t *testing.T) {
	op := newPriceOp(config.PricesConfig{Fields: []string{"unit_price"}, Min: 0, Max: 100})

	v, entries, drop := op.clean("unit_price", model.StringValue("call for pricing"))
	assert.True(t, v.IsMissing())
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionUnparseable, entries[0].Action)
	assert.Equal(t, "value=call for pricing", entries[0].Detail)
	assert.False(t, drop)

	v, entries, _ = op.clean("unit_price", model.MissingValue())
	assert.True(t, v.IsMissing())
	assert.Empty(t, entries)
}

func TestRatingOp(t *testing.T) {
	op := newRatingOp(config.RatingsConfig{Field: "customer_rating", Min: 1, Max: 5, DecimalPlaces: 1})

	tests := []struct {
		name       string
		input      model.Value
		want       model.Value
		wantAction string
	}{
		{name: "plain number", input: model.StringValue("4.2"), want: model.FloatValue(4.2), wantAction: model.ActionParsed},
		{name: "stars suffix", input: model.StringValue("4 stars"), want: model.FloatValue(4), wantAction: model.ActionParsed},
		{name: "single star", input: model.StringValue("1 Star"), want: model.FloatValue(1), wantAction: model.ActionParsed},
		{name: "ratio rescaled onto the bound", input: model.StringValue("9/10"), want: model.FloatValue(4.5), wantAction: model.ActionParsed},
		{name: "rounded to one decimal", input: model.FloatValue(4.27), want: model.FloatValue(4.3), wantAction: model.ActionParsed},
		{name: "above bound becomes missing", input: model.StringValue("6"), want: model.MissingValue(), wantAction: model.ActionInvalid},
		{name: "below bound becomes missing", input: model.FloatValue(0.5), want: model.MissingValue(), wantAction: model.ActionInvalid},
		{name: "unparseable text", input: model.StringValue("great"), want: model.MissingValue(), wantAction: model.ActionUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, entries, drop := op.clean("customer_rating", tt.input)
			assert.Equal(t, tt.want, v)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantAction, entries[0].Action)
			assert.False(t, drop)
		})
	}

	t.Run("invalid detail names the offending value", func(t *testing.T) {
		_, entries, _ := op.clean("customer_rating", model.StringValue("6"))
		require.Len(t, entries, 1)
		assert.Equal(t, "value=6 outside [1, 5]", entries[0].Detail)
	})
}

func TestBoolOp(t *testing.T) {
	op := newBoolOp(config.BooleansConfig{
		Fields:      []string{"is_returned"},
		TrueTokens:  []string{"true", "t", "yes", "y", "1"},
		FalseTokens: []string{"false", "f", "no", "n", "0"},
	})

	tests := []struct {
		name  string
		input string
		want  model.Value
	}{
		{name: "yes", input: "Yes", want: model.BoolValue(true)},
		{name: "padded no", input: " NO ", want: model.BoolValue(false)},
		{name: "numeric true", input: "1", want: model.BoolValue(true)},
		{name: "numeric false", input: "0", want: model.BoolValue(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, entries, _ := op.clean("is_returned", model.StringValue(tt.input))
			assert.Equal(t, tt.want, v)
			require.Len(t, entries, 1)
			assert.Equal(t, model.ActionParsed, entries[0].Action)
		})
	}

	t.Run("unknown token becomes missing, never false", func(t *testing.T) {
		v, entries, _ := op.clean("is_returned", model.StringValue("maybe"))
		assert.True(t, v.IsMissing())
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionInvalid, entries[0].Action)
		assert.Equal(t, "token=maybe", entries[0].Detail)
	})

	t.Run("already typed values pass through", func(t *testing.T) {
		v, entries, _ := op.clean("is_returned", model.BoolValue(true))
		assert.Equal(t, model.BoolValue(true), v)
		assert.Empty(t, entries)
	})
}

func TestParseDeliveryDays(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
		ok    bool
	}{
		{name: "same day", input: "same day", want: 0, ok: true},
		{name: "same day dashed", input: "Same-Day", want: 0, ok: true},
		{name: "plain integer", input: "7", want: 7, ok: true},
		{name: "range takes the upper bound", input: "3-5", want: 5, ok: true},
		{name: "worded range", input: "5 to 7", want: 7, ok: true},
		{name: "inverted range reordered", input: "9-6", want: 9, ok: true},
		{name: "leading integer", input: "4 days", want: 4, ok: true},
		{name: "negative integer", input: "-2", want: -2, ok: true},
		{name: "no digits", input: "soon", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDeliveryDays(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDeliveryOpPolicies(t *testing.T) {
	t.Run("in range parses to an integer", func(t *testing.T) {
		op := newDeliveryOp(config.DeliveryConfig{Field: "delivery_days", MaxDays: 30, Policy: config.PolicyClamp})
		v, entries, _ := op.clean("delivery_days", model.StringValue("3-5"))
		assert.Equal(t, model.IntValue(5), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionParsed, entries[0].Action)
	})

	t.Run("clamp bounds both ends", func(t *testing.T) {
		op := newDeliveryOp(config.DeliveryConfig{Field: "delivery_days", MaxDays: 30, Policy: config.PolicyClamp})

		v, entries, drop := op.clean("delivery_days", model.StringValue("45"))
		assert.Equal(t, model.IntValue(30), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionClamped, entries[0].Action)
		assert.Equal(t, "value=45 outside [0, 30]", entries[0].Detail)
		assert.False(t, drop)

		v, _, _ = op.clean("delivery_days", model.StringValue("-2"))
		assert.Equal(t, model.IntValue(0), v)
	})

	t.Run("flag keeps the value", func(t *testing.T) {
		op := newDeliveryOp(config.DeliveryConfig{Field: "delivery_days", MaxDays: 30, Policy: config.PolicyFlag})
		v, entries, drop := op.clean("delivery_days", model.IntValue(45))
		assert.Equal(t, model.IntValue(45), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionOutlierFlagged, entries[0].Action)
		assert.False(t, drop)
	})

	t.Run("drop_row rejects", func(t *testing.T) {
		op := newDeliveryOp(config.DeliveryConfig{Field: "delivery_days", MaxDays: 30, Policy: config.PolicyDropRow})
		_, _, drop := op.clean("delivery_days", model.IntValue(45))
		assert.True(t, drop)
	})

	t.Run("unparseable text becomes missing", func(t *testing.T) {
		op := newDeliveryOp(config.DeliveryConfig{Field: "delivery_days", MaxDays: 30})
		v, entries, _ := op.clean("delivery_days", model.StringValue("when it gets there"))
		assert.True(t, v.IsMissing())
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionUnparseable, entries[0].Action)
	})
}

func TestCategoryOp(t *testing.T) {
	cfg := config.CategoricalConfig{
		Fields:         []string{"category"},
		Strip:          true,
		CollapseSpaces: true,
		AmpersandToAnd: true,
	}
	op := newCategoryOp(cfg, "category")

	t.Run("normalizes label text", func(t *testing.T) {
		v, entries, _ := op.clean("category", model.StringValue("  Home &   Kitchen "))
		assert.Equal(t, model.StringValue("Home and Kitchen"), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionCanonicalized, entries[0].Action)
		assert.Equal(t, "from=  Home &   Kitchen ", entries[0].Detail)
	})

	t.Run("clean labels produce no entry", func(t *testing.T) {
		v, entries, _ := op.clean("category", model.StringValue("Electronics"))
		assert.Equal(t, model.StringValue("Electronics"), v)
		assert.Empty(t, entries)
	})

	t.Run("per-field mappings canonicalize spellings", func(t *testing.T) {
		mapped := cfg
		mapped.Lowercase = true
		mapped.Mappings = map[string]map[string]string{
			"category": {"electronics": "Electronics"},
		}
		v, entries, _ := newCategoryOp(mapped, "category").clean("category", model.StringValue("ELECTRONICS"))
		assert.Equal(t, model.StringValue("Electronics"), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionCanonicalized, entries[0].Action)
	})
}

func TestGeoOp(t *testing.T) {
	op := newGeoOp(map[string]string{"bombay": "Mumbai", "bengaluru": "Bangalore"})

	v, entries, _ := op.clean("city", model.StringValue("Bombay"))
	assert.Equal(t, model.StringValue("Mumbai"), v)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionCanonicalized, entries[0].Action)

	v, entries, _ = op.clean("city", model.StringValue("Pune"))
	assert.Equal(t, model.StringValue("Pune"), v)
	assert.Empty(t, entries)

	v, entries, _ = op.clean("city", model.StringValue("  bengaluru  "))
	assert.Equal(t, model.StringValue("Bangalore"), v)
	require.Len(t, entries, 1)
}

func TestOutlierOp(t *testing.T) {
	cfg := config.OutliersConfig{
		Fields:              []string{"quantity"},
		References:          map[string]float64{"quantity": 2},
		HighFactor:          50,
		DownscaleCandidates: []float64{10, 100},
		Policy:              config.PolicyFlag,
	}
	op := newOutlierOp(cfg, "quantity")

	t.Run("ordinary magnitudes pass untouched", func(t *testing.T) {
		v, entries, _ := op.clean("quantity", model.IntValue(3))
		assert.Equal(t, model.IntValue(3), v)
		assert.Empty(t, entries)
	})

	t.Run("numeric text is typed on the way through", func(t *testing.T) {
		v, entries, _ := op.clean("quantity", model.StringValue("3"))
		assert.Equal(t, model.FloatValue(3), v)
		assert.Empty(t, entries)
	})

	t.Run("shifted decimal recovered by division", func(t *testing.T) {
		v, entries, drop := op.clean("quantity", model.StringValue("300"))
		assert.Equal(t, model.FloatValue(3), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionDownscaled, entries[0].Action)
		assert.Equal(t, "divided by 100", entries[0].Detail)
		assert.False(t, drop)
	})

	t.Run("smaller shift uses the first fitting divisor", func(t *testing.T) {
		v, entries, _ := op.clean("quantity", model.IntValue(150))
		assert.Equal(t, model.FloatValue(15), v)
		require.Len(t, entries, 1)
		assert.Equal(t, "divided by 10", entries[0].Detail)
	})

	t.Run("unrecoverable magnitude is flagged", func(t *testing.T) {
		v, entries, drop := op.clean("quantity", model.IntValue(5000))
		assert.Equal(t, model.IntValue(5000), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionOutlierFlagged, entries[0].Action)
		assert.Equal(t, "factor=2500.0", entries[0].Detail)
		assert.False(t, drop)
	})

	t.Run("clamp policy pulls onto the threshold", func(t *testing.T) {
		clamped := cfg
		clamped.Policy = config.PolicyClamp
		v, entries, _ := newOutlierOp(clamped, "quantity").clean("quantity", model.IntValue(5000))
		assert.Equal(t, model.FloatValue(100), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionClamped, entries[0].Action)
	})

	t.Run("drop_row policy rejects", func(t *testing.T) {
		dropped := cfg
		dropped.Policy = config.PolicyDropRow
		_, _, drop := newOutlierOp(dropped, "quantity").clean("quantity", model.IntValue(5000))
		assert.True(t, drop)
	})

	t.Run("non-numeric text is left for its own family", func(t *testing.T) {
		v, entries, _ := op.clean("quantity", model.StringValue("a few"))
		assert.Equal(t, model.StringValue("a few"), v)
		assert.Empty(t, entries)
	})
}

func TestPaymentOp(t *testing.T) {
	op := newPaymentOp(config.PaymentConfig{Field: "payment_method"})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "phonepe is upi", input: "PhonePe", want: paymentUPI},
		{name: "gpay is upi", input: "gpay", want: paymentUPI},
		{name: "cod expands", input: "COD", want: paymentCOD},
		{name: "debit variants", input: "debit card", want: paymentDebit},
		{name: "cc is credit", input: "CC", want: paymentCredit},
		{name: "netbanking", input: "NetBanking", want: paymentNet},
		{name: "wallet", input: "Paytm Wallet", want: paymentWallet},
		{name: "whitespace trimmed", input: "  upi  ", want: paymentUPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, entries, _ := op.clean("payment_method", model.StringValue(tt.input))
			assert.Equal(t, model.StringValue(tt.want), v)
			require.Len(t, entries, 1)
			assert.Equal(t, model.ActionCanonicalized, entries[0].Action)
		})
	}

	t.Run("canonical labels produce no entry", func(t *testing.T) {
		v, entries, _ := op.clean("payment_method", model.StringValue("UPI"))
		assert.Equal(t, model.StringValue("UPI"), v)
		assert.Empty(t, entries)
	})

	t.Run("unknown labels pass through and are reported", func(t *testing.T) {
		v, entries, _ := op.clean("payment_method", model.StringValue("Barter"))
		assert.Equal(t, model.StringValue("Barter"), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionUncanonicalized, entries[0].Action)
		assert.Equal(t, "value=Barter", entries[0].Detail)
	})

	t.Run("alias table wins over heuristics", func(t *testing.T) {
		aliased := newPaymentOp(config.PaymentConfig{
			Field:   "payment_method",
			Aliases: map[string]string{"emi": paymentCredit},
		})
		v, entries, _ := aliased.clean("payment_method", model.StringValue("EMI"))
		assert.Equal(t, model.StringValue(paymentCredit), v)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionCanonicalized, entries[0].Action)
	})
}
