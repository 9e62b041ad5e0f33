// pkg/cleaner/operations.go
package cleaner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/convert"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

var (
	currencyJunkRe = regexp.MustCompile(`[^0-9.,()\-]`)
	ratingStarsRe  = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*stars?$`)
	ratingRatioRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)$`)
	deliveryRange  = regexp.MustCompile(`^(\d+)\s*(?:-|to)\s*(\d+)$`)
	leadingIntRe   = regexp.MustCompile(`^-?\d+`)
	multiSpaceRe   = regexp.MustCompile(`\s+`)
)

// fillOp replaces a missing value with a configured constant
type fillOp struct {
	fill model.Value
}

func (o *fillOp) family() string { return "missing" }

func (o *fillOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	if !v.IsMissing() {
		return v, nil, false
	}
	detail := fmt.Sprintf("fill=%s", convert.CSVCell(o.fill, convert.DefaultCellOptions()))
	return o.fill, []model.ReportEntry{{Field: field, Action: model.ActionNullFilled, Detail: detail}}, false
}

// dateOp parses date text against the configured formats in declared
// order; the first match wins
type dateOp struct {
	spellings     []string // strftime spellings, for report details
	layouts       []string // translated Go layouts, same order
	invalidToNull bool
}

func newDateOp(cfg config.DatesConfig) (*dateOp, error) {
	op := &dateOp{invalidToNull: cfg.InvalidToNull}
	for _, f := range cfg.InputFormats {
		layout, err := config.TranslateDateFormat(f)
		if err != nil {
			return nil, err
		}
		op.spellings = append(op.spellings, f)
		op.layouts = append(op.layouts, layout)
	}
	return op, nil
}

func (o *dateOp) family() string { return "dates" }

func (o *dateOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	if v.Kind != model.KindString {
		return v, nil, false
	}
	s := strings.TrimSpace(v.Str)
	for i, layout := range o.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			entry := model.ReportEntry{
				Field:  field,
				Action: model.ActionParsed,
				Detail: "format=" + o.spellings[i],
			}
			return model.DateValue(t), []model.ReportEntry{entry}, false
		}
	}
	entry := model.ReportEntry{Field: field, Action: model.ActionUnparseable, Detail: "value=" + s}
	if o.invalidToNull {
		return model.MissingValue(), []model.ReportEntry{entry}, false
	}
	return v, []model.ReportEntry{entry}, false
}

// priceOp parses monetary text and applies the configured range policy
type priceOp struct {
	min, max float64
	decimals int
	parens   bool
	policy   config.Policy
}

func newPriceOp(cfg config.PricesConfig) *priceOp {
	return &priceOp{
		min:      cfg.Min,
		max:      cfg.Max,
		decimals: cfg.DecimalPlaces,
		parens:   cfg.AllowParenthesesNegative,
		policy:   cfg.Policy.Effective(),
	}
}

func (o *priceOp) family() string { return "prices" }

func (o *priceOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	var amount float64
	switch v.Kind {
	case model.KindFloat:
		amount = v.Float
	case model.KindInt:
		amount = float64(v.Int)
	case model.KindString:
		parsed, ok := o.parseAmount(v.Str)
		if !ok {
			entry := model.ReportEntry{Field: field, Action: model.ActionUnparseable, Detail: "value=" + v.Str}
			return model.MissingValue(), []model.ReportEntry{entry}, false
		}
		amount = parsed
	default:
		return v, nil, false
	}

	amount = convert.Round(amount, o.decimals)
	if amount >= o.min && amount <= o.max {
		return model.FloatValue(amount), []model.ReportEntry{{Field: field, Action: model.ActionParsed}}, false
	}

	bounds := fmt.Sprintf("outside [%s, %s]",
		strconv.FormatFloat(o.min, 'f', -1, 64), strconv.FormatFloat(o.max, 'f', -1, 64))
	switch o.policy {
	case config.PolicyClamp:
		clamped := amount
		if clamped < o.min {
			clamped = o.min
		} else if clamped > o.max {
			clamped = o.max
		}
		entry := model.ReportEntry{Field: field, Action: model.ActionClamped, Detail: bounds}
		return model.FloatValue(clamped), []model.ReportEntry{entry}, false
	case config.PolicyDropRow:
		entry := model.ReportEntry{Field: field, Action: model.ActionInvalid, Detail: bounds}
		return model.FloatValue(amount), []model.ReportEntry{entry}, true
	default: // flag: keep the value, annotate the report
		entry := model.ReportEntry{Field: field, Action: model.ActionOutlierFlagged, Detail: bounds}
		return model.FloatValue(amount), []model.ReportEntry{entry}, false
	}
}

// parseAmount strips currency symbols and grouping commas; a fully
// parenthesized amount reads as negative when configured
func (o *priceOp) parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if o.parens && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && len(s) > 2 {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = currencyJunkRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// ratingOp parses rating text (plain number, "4 stars", "9/10") and
// treats out-of-bound values as invalid
type ratingOp struct {
	min, max float64
	decimals int
}

func newRatingOp(cfg config.RatingsConfig) *ratingOp {
	return &ratingOp{min: cfg.Min, max: cfg.Max, decimals: cfg.DecimalPlaces}
}

func (o *ratingOp) family() string { return "ratings" }

func (o *ratingOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	var rating float64
	switch v.Kind {
	case model.KindFloat:
		rating = v.Float
	case model.KindInt:
		rating = float64(v.Int)
	case model.KindString:
		parsed, ok := o.parseRating(v.Str)
		if !ok {
			entry := model.ReportEntry{Field: field, Action: model.ActionUnparseable, Detail: "value=" + v.Str}
			return model.MissingValue(), []model.ReportEntry{entry}, false
		}
		rating = parsed
	default:
		return v, nil, false
	}

	rating = convert.Round(rating, o.decimals)
	if rating < o.min || rating > o.max {
		detail := fmt.Sprintf("value=%s outside [%s, %s]",
			strconv.FormatFloat(rating, 'f', -1, 64),
			strconv.FormatFloat(o.min, 'f', -1, 64),
			strconv.FormatFloat(o.max, 'f', -1, 64))
		entry := model.ReportEntry{Field: field, Action: model.ActionInvalid, Detail: detail}
		return model.MissingValue(), []model.ReportEntry{entry}, false
	}
	return model.FloatValue(rating), []model.ReportEntry{{Field: field, Action: model.ActionParsed}}, false
}

func (o *ratingOp) parseRating(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if m := ratingStarsRe.FindStringSubmatch(s); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		return f, err == nil
	}
	if m := ratingRatioRe.FindStringSubmatch(s); m != nil {
		num, err1 := strconv.ParseFloat(m[1], 64)
		den, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0, false
		}
		// "9/10" rescales onto the configured bound
		return num / den * o.max, true
	}
	return 0, false
}

// boolOp maps tokens onto booleans through the configured sets.
// Unrecognized tokens become missing, never false.
type boolOp struct {
	trueSet  map[string]struct{}
	falseSet map[string]struct{}
}

func newBoolOp(cfg config.BooleansConfig) *boolOp {
	op := &boolOp{
		trueSet:  make(map[string]struct{}, len(cfg.TrueTokens)),
		falseSet: make(map[string]struct{}, len(cfg.FalseTokens)),
	}
	for _, t := range cfg.TrueTokens {
		op.trueSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, t := range cfg.FalseTokens {
		op.falseSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return op
}

func (o *boolOp) family() string { return "booleans" }

func (o *boolOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	if v.Kind != model.KindString {
		return v, nil, false
	}
	token := strings.ToLower(strings.TrimSpace(v.Str))
	if _, ok := o.trueSet[token]; ok {
		return model.BoolValue(true), []model.ReportEntry{{Field: field, Action: model.ActionParsed}}, false
	}
	if _, ok := o.falseSet[token]; ok {
		return model.BoolValue(false), []model.ReportEntry{{Field: field, Action: model.ActionParsed}}, false
	}
	entry := model.ReportEntry{Field: field, Action: model.ActionInvalid, Detail: "token=" + v.Str}
	return model.MissingValue(), []model.ReportEntry{entry}, false
}

// deliveryOp parses delivery-day text ("same day", "3-5", "4 days") and
// applies the configured bound policy
type deliveryOp struct {
	maxDays int
	policy  config.Policy
}

func newDeliveryOp(cfg config.DeliveryConfig) *deliveryOp {
	return &deliveryOp{maxDays: cfg.MaxDays, policy: cfg.Policy.Effective()}
}

func (o *deliveryOp) family() string { return "delivery" }

func (o *deliveryOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	var days int64
	switch v.Kind {
	case model.KindInt:
		days = v.Int
	case model.KindFloat:
		days = int64(v.Float)
	case model.KindString:
		parsed, ok := parseDeliveryDays(v.Str)
		if !ok {
			entry := model.ReportEntry{Field: field, Action: model.ActionUnparseable, Detail: "value=" + v.Str}
			return model.MissingValue(), []model.ReportEntry{entry}, false
		}
		days = parsed
	default:
		return v, nil, false
	}

	if days >= 0 && days <= int64(o.maxDays) {
		return model.IntValue(days), []model.ReportEntry{{Field: field, Action: model.ActionParsed}}, false
	}

	detail := fmt.Sprintf("value=%d outside [0, %d]", days, o.maxDays)
	switch o.policy {
	case config.PolicyClamp:
		clamped := days
		if clamped < 0 {
			clamped = 0
		} else if clamped > int64(o.maxDays) {
			clamped = int64(o.maxDays)
		}
		entry := model.ReportEntry{Field: field, Action: model.ActionClamped, Detail: detail}
		return model.IntValue(clamped), []model.ReportEntry{entry}, false
	case config.PolicyDropRow:
		entry := model.ReportEntry{Field: field, Action: model.ActionInvalid, Detail: detail}
		return model.IntValue(days), []model.ReportEntry{entry}, true
	default:
		entry := model.ReportEntry{Field: field, Action: model.ActionOutlierFlagged, Detail: detail}
		return model.IntValue(days), []model.ReportEntry{entry}, false
	}
}

func parseDeliveryDays(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	compact := strings.ReplaceAll(strings.ReplaceAll(s, "-", ""), " ", "")
	if compact == "sameday" {
		return 0, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if m := deliveryRange.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.ParseInt(m[1], 10, 64)
		hi, _ := strconv.ParseInt(m[2], 10, 64)
		if hi < lo {
			lo, hi = hi, lo
		}
		return hi, true
	}
	if m := leadingIntRe.FindString(s); m != "" {
		n, err := strconv.ParseInt(m, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// categoryOp normalizes free-text labels and applies per-field
// canonical mappings
type categoryOp struct {
	lowercase bool
	strip     bool
	collapse  bool
	ampersand bool
	mapping   map[string]string // normalized lowercase label → canonical
}

func newCategoryOp(cfg config.CategoricalConfig, field string) *categoryOp {
	op := &categoryOp{
		lowercase: cfg.Lowercase,
		strip:     cfg.Strip,
		collapse:  cfg.CollapseSpaces,
		ampersand: cfg.AmpersandToAnd,
		mapping:   make(map[string]string),
	}
	for raw, canonical := range cfg.Mappings[field] {
		op.mapping[strings.ToLower(strings.TrimSpace(raw))] = canonical
	}
	return op
}

func (o *categoryOp) family() string { return "categorical" }

func (o *categoryOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	if v.Kind != model.KindString {
		return v, nil, false
	}
	s := v.Str
	if o.strip {
		s = strings.TrimSpace(s)
	}
	if o.collapse {
		s = multiSpaceRe.ReplaceAllString(s, " ")
	}
	if o.ampersand {
		s = strings.ReplaceAll(s, "&", "and")
	}
	if o.lowercase {
		s = strings.ToLower(s)
	}
	if canonical, ok := o.mapping[strings.ToLower(s)]; ok {
		s = canonical
	}
	if s == v.Str {
		return v, nil, false
	}
	entry := model.ReportEntry{Field: field, Action: model.ActionCanonicalized, Detail: "from=" + v.Str}
	return model.StringValue(s), []model.ReportEntry{entry}, false
}

// geoOp canonicalizes place names through an alias table
type geoOp struct {
	aliases map[string]string // lowercase alias → canonical
}

func newGeoOp(aliases map[string]string) *geoOp {
	op := &geoOp{aliases: make(map[string]string, len(aliases))}
	for raw, canonical := range aliases {
		op.aliases[strings.ToLower(strings.TrimSpace(raw))] = canonical
	}
	return op
}

func (o *geoOp) family() string { return "geo" }

func (o *geoOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	if v.Kind != model.KindString {
		return v, nil, false
	}
	s := multiSpaceRe.ReplaceAllString(strings.TrimSpace(v.Str), " ")
	if canonical, ok := o.aliases[strings.ToLower(s)]; ok {
		s = canonical
	}
	if s == v.Str {
		return v, nil, false
	}
	entry := model.ReportEntry{Field: field, Action: model.ActionCanonicalized, Detail: "from=" + v.Str}
	return model.StringValue(s), []model.ReportEntry{entry}, false
}

// outlierOp detects magnitude anomalies against a configured reference
// value and recovers decimal-shift entry errors
type outlierOp struct {
	reference  float64
	highFactor float64
	candidates []float64
	policy     config.Policy
}

func newOutlierOp(cfg config.OutliersConfig, field string) *outlierOp {
	return &outlierOp{
		reference:  cfg.References[field],
		highFactor: cfg.HighFactor,
		candidates: cfg.DownscaleCandidates,
		policy:     cfg.Policy.Effective(),
	}
}

func (o *outlierOp) family() string { return "outliers" }

func (o *outlierOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	var val float64
	switch v.Kind {
	case model.KindFloat:
		val = v.Float
	case model.KindInt:
		val = float64(v.Int)
	case model.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			// not numeric; other families own coercion of their columns
			return v, nil, false
		}
		val = f
	default:
		return v, nil, false
	}

	if o.reference <= 0 || val <= o.reference*o.highFactor {
		return numericValue(v, val), nil, false
	}

	// a value hundreds of times the reference is usually a shifted
	// decimal point; try the configured divisors before flagging
	for _, div := range o.candidates {
		c := val / div
		if c >= o.reference/10 && c <= o.reference*10 {
			detail := fmt.Sprintf("divided by %s", strconv.FormatFloat(div, 'f', -1, 64))
			entry := model.ReportEntry{Field: field, Action: model.ActionDownscaled, Detail: detail}
			return model.FloatValue(c), []model.ReportEntry{entry}, false
		}
	}

	detail := fmt.Sprintf("factor=%.1f", val/o.reference)
	switch o.policy {
	case config.PolicyClamp:
		entry := model.ReportEntry{Field: field, Action: model.ActionClamped, Detail: detail}
		return model.FloatValue(o.reference * o.highFactor), []model.ReportEntry{entry}, false
	case config.PolicyDropRow:
		entry := model.ReportEntry{Field: field, Action: model.ActionInvalid, Detail: detail}
		return numericValue(v, val), []model.ReportEntry{entry}, true
	default:
		entry := model.ReportEntry{Field: field, Action: model.ActionOutlierFlagged, Detail: detail}
		return numericValue(v, val), []model.ReportEntry{entry}, false
	}
}

// numericValue keeps integer-typed input integer when the magnitude
// check passes untouched
func numericValue(orig model.Value, val float64) model.Value {
	if orig.Kind == model.KindInt {
		return orig
	}
	return model.FloatValue(val)
}

// canonical payment labels produced by the built-in heuristics
const (
	paymentUPI    = "UPI"
	paymentCOD    = "Cash on Delivery"
	paymentDebit  = "Debit Card"
	paymentCredit = "Credit Card"
	paymentNet    = "Net Banking"
	paymentWallet = "Wallet"
)

// paymentOp canonicalizes payment method labels via the configured
// alias table, falling back to substring heuristics. Unknown labels
// pass through verbatim and are reported so operators can extend the
// alias table.
type paymentOp struct {
	aliases map[string]string
}

func newPaymentOp(cfg config.PaymentConfig) *paymentOp {
	op := &paymentOp{aliases: make(map[string]string, len(cfg.Aliases))}
	for raw, canonical := range cfg.Aliases {
		op.aliases[strings.ToLower(strings.TrimSpace(raw))] = canonical
	}
	return op
}

func (o *paymentOp) family() string { return "payment" }

func (o *paymentOp) clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool) {
	if v.Kind != model.KindString {
		return v, nil, false
	}
	key := strings.ToLower(strings.TrimSpace(v.Str))

	canonical, known := o.aliases[key]
	if !known {
		canonical, known = canonicalPayment(key)
	}
	if !known {
		entry := model.ReportEntry{Field: field, Action: model.ActionUncanonicalized, Detail: "value=" + v.Str}
		return v, []model.ReportEntry{entry}, false
	}
	if canonical == v.Str {
		return v, nil, false
	}
	entry := model.ReportEntry{Field: field, Action: model.ActionCanonicalized, Detail: "from=" + v.Str}
	return model.StringValue(canonical), []model.ReportEntry{entry}, false
}

func canonicalPayment(key string) (string, bool) {
	switch {
	case strings.Contains(key, "upi"), strings.Contains(key, "phonepe"),
		strings.Contains(key, "gpay"), strings.Contains(key, "google pay"):
		return paymentUPI, true
	case strings.Contains(key, "cod"), strings.Contains(key, "cash on delivery"):
		return paymentCOD, true
	case strings.Contains(key, "debit"):
		return paymentDebit, true
	case key == "cc", strings.Contains(key, "credit"):
		return paymentCredit, true
	case strings.Contains(key, "netbank"), strings.Contains(key, "net banking"):
		return paymentNet, true
	case strings.Contains(key, "wallet"):
		return paymentWallet, true
	}
	return "", false
}
