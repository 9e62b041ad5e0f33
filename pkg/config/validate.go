// pkg/config/validate.go
package config

import (
	"fmt"
	"strings"
)

// Violation kinds reported by cleaning config validation
const (
	ViolationUnknownColumn  = "unknown_column"
	ViolationBadRange       = "bad_range"
	ViolationEmptyDedupKeys = "empty_dedup_keys"
	ViolationNoDateFormats  = "no_date_formats"
	ViolationBadDateFormat  = "bad_date_format"
	ViolationBadPolicy      = "bad_policy"
	ViolationBadParameter   = "bad_parameter"
)

// Violation is one reason a cleaning configuration was rejected
type Violation struct {
	Kind   string // one of the Violation* constants
	Field  string // offending column or parameter name
	Detail string
}

// ConfigError rejects a cleaning configuration. It enumerates every
// violation found, not just the first, so operators can fix all issues
// in one pass.
type ConfigError struct {
	Violations []Violation
}

// Error formats all violations on one line
func (e *ConfigError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, fmt.Sprintf("%s %s: %s", v.Kind, v.Field, v.Detail))
	}
	return fmt.Sprintf("invalid cleaning configuration (%d violations): %s",
		len(e.Violations), strings.Join(lines, "; "))
}

func (e *ConfigError) add(kind, field, detail string) {
	e.Violations = append(e.Violations, Violation{Kind: kind, Field: field, Detail: detail})
}

// orNil avoids returning a typed nil inside a non-nil error interface
func (e *ConfigError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// Effective resolves an unset policy to the flag default
func (p Policy) Effective() Policy {
	if p == "" {
		return PolicyFlag
	}
	return p
}

func validPolicy(p Policy) bool {
	switch p.Effective() {
	case PolicyClamp, PolicyFlag, PolicyDropRow:
		return true
	}
	return false
}

// checkStructure validates everything that does not require the input
// schema: ranges, policies, date formats, dedup keys, outlier
// references.
func (c *CleaningConfig) checkStructure() error {
	e := &ConfigError{}
	c.collect(e, nil)
	return e.orNil()
}

// Validate checks the configuration against the header of an actual
// input file. Every family field must resolve to a column present in
// the schema, matched exactly and case-sensitively. All violations are
// collected before returning.
func (c *CleaningConfig) Validate(schema []string) error {
	e := &ConfigError{}
	c.collect(e, schema)
	return e.orNil()
}

func (c *CleaningConfig) collect(e *ConfigError, schema []string) {
	var present map[string]struct{}
	if schema != nil {
		present = make(map[string]struct{}, len(schema))
		for _, col := range schema {
			present[col] = struct{}{}
		}
	}
	requireColumn := func(family, field string) {
		if present == nil || field == "" {
			return
		}
		if _, ok := present[field]; !ok {
			e.add(ViolationUnknownColumn, field,
				fmt.Sprintf("%s family references a column not present in the input header", family))
		}
	}

	// missing
	for field := range c.Missing.NumericFills {
		requireColumn("missing", field)
	}
	for field := range c.Missing.CategoricalFills {
		requireColumn("missing", field)
	}

	// dates
	if len(c.Dates.Fields) > 0 {
		if len(c.Dates.InputFormats) == 0 {
			e.add(ViolationNoDateFormats, "dates.input_formats",
				"date fields are declared but the input format list is empty")
		}
		for _, f := range c.Dates.InputFormats {
			if _, err := TranslateDateFormat(f); err != nil {
				e.add(ViolationBadDateFormat, "dates.input_formats", err.Error())
			}
		}
		if c.Dates.TargetFormat != "" {
			if _, err := TranslateDateFormat(c.Dates.TargetFormat); err != nil {
				e.add(ViolationBadDateFormat, "dates.target_format", err.Error())
			}
		}
	}
	for _, field := range c.Dates.Fields {
		requireColumn("dates", field)
	}

	// prices
	if len(c.Prices.Fields) > 0 {
		if c.Prices.Min > c.Prices.Max {
			e.add(ViolationBadRange, "prices",
				fmt.Sprintf("min %v exceeds max %v", c.Prices.Min, c.Prices.Max))
		}
		if c.Prices.DecimalPlaces < 0 {
			e.add(ViolationBadParameter, "prices.decimal_places", "cannot be negative")
		}
		if !validPolicy(c.Prices.Policy) {
			e.add(ViolationBadPolicy, "prices.policy", string(c.Prices.Policy))
		}
	}
	for _, field := range c.Prices.Fields {
		requireColumn("prices", field)
	}

	// ratings
	if c.Ratings.Field != "" {
		if c.Ratings.Min > c.Ratings.Max {
			e.add(ViolationBadRange, "ratings",
				fmt.Sprintf("min %v exceeds max %v", c.Ratings.Min, c.Ratings.Max))
		}
		if c.Ratings.DecimalPlaces < 0 {
			e.add(ViolationBadParameter, "ratings.decimal_places", "cannot be negative")
		}
		requireColumn("ratings", c.Ratings.Field)
	}

	// booleans
	if len(c.Booleans.Fields) > 0 {
		if len(c.Booleans.TrueTokens) == 0 || len(c.Booleans.FalseTokens) == 0 {
			e.add(ViolationBadParameter, "booleans", "true and false token sets must be non-empty")
		}
	}
	for _, field := range c.Booleans.Fields {
		requireColumn("booleans", field)
	}

	// delivery
	if c.Delivery.Field != "" {
		if c.Delivery.MaxDays < 0 {
			e.add(ViolationBadParameter, "delivery.max_days", "cannot be negative")
		}
		if !validPolicy(c.Delivery.Policy) {
			e.add(ViolationBadPolicy, "delivery.policy", string(c.Delivery.Policy))
		}
		requireColumn("delivery", c.Delivery.Field)
	}

	// payment
	requireColumn("payment", c.Payment.Field)

	// categorical
	for _, field := range c.Categorical.Fields {
		requireColumn("categorical", field)
	}
	for field := range c.Categorical.Mappings {
		requireColumn("categorical", field)
	}

	// geo
	requireColumn("geo", c.Geo.CityField)
	requireColumn("geo", c.Geo.StateField)

	// outliers
	if len(c.Outliers.Fields) > 0 {
		if c.Outliers.HighFactor <= 0 {
			e.add(ViolationBadParameter, "outliers.high_factor", "must be positive")
		}
		for _, d := range c.Outliers.DownscaleCandidates {
			if d <= 1 {
				e.add(ViolationBadParameter, "outliers.downscale_candidates",
					fmt.Sprintf("divisor %v must exceed 1", d))
			}
		}
		if !validPolicy(c.Outliers.Policy) {
			e.add(ViolationBadPolicy, "outliers.policy", string(c.Outliers.Policy))
		}
		for _, field := range c.Outliers.Fields {
			if ref, ok := c.Outliers.References[field]; !ok || ref <= 0 {
				e.add(ViolationBadParameter, "outliers.references",
					fmt.Sprintf("field %q needs a positive reference value", field))
			}
			requireColumn("outliers", field)
		}
	}

	// dedup
	if c.Dedup.Enabled && len(c.Dedup.KeyFields) == 0 {
		e.add(ViolationEmptyDedupKeys, "dedup.key_fields",
			"dedup is enabled but the key field list is empty")
	}
	if c.Dedup.Enabled {
		for _, field := range c.Dedup.KeyFields {
			requireColumn("dedup", field)
		}
	}
}
