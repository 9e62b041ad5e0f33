// pkg/config/cleaning.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Policy decides what happens to a value that violates its family's
// bounds.
type Policy string

const (
	PolicyClamp   Policy = "clamp"    // pull the value onto the violated bound
	PolicyFlag    Policy = "flag"     // keep the value, annotate the report
	PolicyDropRow Policy = "drop_row" // reject the whole row
)

// MissingConfig fills absent values with configured constants. Fills are
// constants rather than dataset statistics so cleaning stays a pure
// single-pass transform.
type MissingConfig struct {
	NumericFills     map[string]float64 `json:"numeric_fills,omitempty"`
	CategoricalFills map[string]string  `json:"categorical_fills,omitempty"`
}

// DatesConfig normalizes date columns. Input formats use strftime tokens
// and are tried in declared order; the first match wins.
type DatesConfig struct {
	Fields        []string `json:"fields"`
	InputFormats  []string `json:"input_formats"`
	TargetFormat  string   `json:"target_format"`
	InvalidToNull bool     `json:"invalid_to_null"`
}

// PricesConfig normalizes monetary columns
type PricesConfig struct {
	Fields                   []string `json:"fields"`
	Min                      float64  `json:"min"`
	Max                      float64  `json:"max"`
	DecimalPlaces            int      `json:"decimal_places"`
	AllowParenthesesNegative bool     `json:"allow_parentheses_negative"`
	Policy                   Policy   `json:"policy"`
}

// RatingsConfig normalizes a bounded rating column. Values outside
// [Min, Max] are invalid and become missing.
type RatingsConfig struct {
	Field         string  `json:"field"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	DecimalPlaces int     `json:"decimal_places"`
}

// BooleansConfig normalizes flag columns through case-insensitive token
// sets. Unrecognized tokens become missing, never false.
type BooleansConfig struct {
	Fields      []string `json:"fields"`
	TrueTokens  []string `json:"true_tokens"`
	FalseTokens []string `json:"false_tokens"`
}

// DeliveryConfig normalizes the delivery-days column
type DeliveryConfig struct {
	Field   string `json:"field"`
	MaxDays int    `json:"max_days"`
	Policy  Policy `json:"policy"`
}

// PaymentConfig canonicalizes payment method labels. Aliases extend the
// built-in heuristics; unknown labels pass through and are reported.
type PaymentConfig struct {
	Field   string            `json:"field"`
	Aliases map[string]string `json:"aliases,omitempty"`
}

// CategoricalConfig normalizes free-text label columns
type CategoricalConfig struct {
	Fields         []string                     `json:"fields"`
	Lowercase      bool                         `json:"lowercase"`
	Strip          bool                         `json:"strip"`
	CollapseSpaces bool                         `json:"collapse_spaces"`
	AmpersandToAnd bool                         `json:"ampersand_to_and"`
	Mappings       map[string]map[string]string `json:"mappings,omitempty"` // field → normalized label → canonical
}

// GeoConfig canonicalizes city and state names through alias tables
type GeoConfig struct {
	CityField    string            `json:"city_field"`
	StateField   string            `json:"state_field"`
	CityAliases  map[string]string `json:"city_aliases,omitempty"`
	StateAliases map[string]string `json:"state_aliases,omitempty"`
}

// OutliersConfig detects magnitude anomalies against a configured
// per-field reference value. Values above reference×high_factor are
// anomalous; downscale candidates (divide by 10, 100, ...) recover
// decimal-shift entry errors before the policy applies.
type OutliersConfig struct {
	Fields              []string           `json:"fields"`
	References          map[string]float64 `json:"references"`
	HighFactor          float64            `json:"high_factor"`
	DownscaleCandidates []float64          `json:"downscale_candidates"`
	Policy              Policy             `json:"policy"`
}

// DedupConfig drops repeated records. The key is built from the cleaned
// values of the listed fields; the first occurrence wins.
type DedupConfig struct {
	Enabled   bool     `json:"enabled"`
	KeyFields []string `json:"key_fields"`
}

// CleaningConfig is the full declarative cleaning rule set for one kind
// of input file. Immutable after load.
type CleaningConfig struct {
	Name        string            `json:"name"`
	Missing     MissingConfig     `json:"missing"`
	Dates       DatesConfig       `json:"dates"`
	Prices      PricesConfig      `json:"prices"`
	Ratings     RatingsConfig     `json:"ratings"`
	Booleans    BooleansConfig    `json:"booleans"`
	Delivery    DeliveryConfig    `json:"delivery"`
	Payment     PaymentConfig     `json:"payment"`
	Categorical CategoricalConfig `json:"categorical"`
	Geo         GeoConfig         `json:"geo"`
	Outliers    OutliersConfig    `json:"outliers"`
	Dedup       DedupConfig       `json:"dedup"`
}

// defaultDateFormats covers the date shapes seen across the source
// exports, most specific first
var defaultDateFormats = []string{
	"%Y-%m-%d",
	"%d-%m-%Y",
	"%d/%m/%Y",
	"%m/%d/%Y",
	"%d-%b-%Y",
	"%d %b %Y",
	"%b %d, %Y",
	"%Y/%m/%d",
	"%d.%m.%Y",
}

// DefaultCleaningConfig returns the rule set for transactional exports
func DefaultCleaningConfig() *CleaningConfig {
	return &CleaningConfig{
		Name: "transactions",
		Missing: MissingConfig{
			NumericFills: map[string]float64{"discount_pct": 0},
		},
		Dates: DatesConfig{
			Fields:        []string{"order_date"},
			InputFormats:  append([]string(nil), defaultDateFormats...),
			TargetFormat:  "%Y-%m-%d",
			InvalidToNull: true,
		},
		Prices: PricesConfig{
			Fields:                   []string{"unit_price", "revenue"},
			Min:                      0,
			Max:                      100000,
			DecimalPlaces:            2,
			AllowParenthesesNegative: true,
			Policy:                   PolicyFlag,
		},
		Ratings: RatingsConfig{
			Field:         "customer_rating",
			Min:           1,
			Max:           5,
			DecimalPlaces: 1,
		},
		Booleans: BooleansConfig{
			Fields:      []string{"is_returned", "is_prime_member"},
			TrueTokens:  []string{"true", "t", "yes", "y", "1"},
			FalseTokens: []string{"false", "f", "no", "n", "0"},
		},
		Delivery: DeliveryConfig{
			Field:   "delivery_days",
			MaxDays: 30,
			Policy:  PolicyClamp,
		},
		Payment: PaymentConfig{
			Field: "payment_method",
		},
		Categorical: CategoricalConfig{
			Fields:         []string{"category", "brand"},
			Strip:          true,
			CollapseSpaces: true,
			AmpersandToAnd: true,
		},
		Geo: GeoConfig{
			CityField:  "city",
			StateField: "state",
			CityAliases: map[string]string{
				"bombay":    "Mumbai",
				"bengaluru": "Bangalore",
				"calcutta":  "Kolkata",
				"madras":    "Chennai",
				"new delhi": "Delhi",
				"gurgaon":   "Gurugram",
			},
		},
		Outliers: OutliersConfig{
			Fields:              []string{"quantity"},
			References:          map[string]float64{"quantity": 2},
			HighFactor:          50,
			DownscaleCandidates: []float64{10, 100},
			Policy:              PolicyFlag,
		},
		Dedup: DedupConfig{
			Enabled:   true,
			KeyFields: []string{"order_id", "product_id"},
		},
	}
}

// DefaultCatalogConfig returns the rule set for product catalog exports
func DefaultCatalogConfig() *CleaningConfig {
	return &CleaningConfig{
		Name: "catalog",
		Prices: PricesConfig{
			Fields:                   []string{"base_price_2015"},
			Min:                      0,
			Max:                      1000000,
			DecimalPlaces:            2,
			AllowParenthesesNegative: true,
			Policy:                   PolicyFlag,
		},
		Categorical: CategoricalConfig{
			Fields:         []string{"category", "subcategory", "brand"},
			Strip:          true,
			CollapseSpaces: true,
			AmpersandToAnd: true,
		},
		Dedup: DedupConfig{
			Enabled:   true,
			KeyFields: []string{"product_id"},
		},
	}
}

// LoadCleaningConfig reads a cleaning rule document from disk. The file
// overrides the transaction defaults field by field, so partial
// documents are valid. Structural violations are collected into a
// single ConfigError; column checks happen later against each file's
// header via Validate.
func LoadCleaningConfig(path string) (*CleaningConfig, error) {
	cfg := DefaultCleaningConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cleaning config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cleaning config %s: %w", path, err)
	}

	if err := cfg.checkStructure(); err != nil {
		return nil, err
	}

	return cfg, nil
}
