// Package catalog loads the static pricing catalog: currencies, variation
// option slots and flat-rate shipping options per region.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/shipping"
	"github.com/spf13/viper"
)

var ErrUnknownCurrency = &domain.Error{Code: domain.EINVALID, Message: "Currency is not supported"}

// Catalog is read once at startup and never mutated.
type Catalog struct {
	DefaultCurrency string
	DefaultRegion   string
	OptionTypes     []string

	currencies map[string]domain.Currency
	regions    map[string][]shipping.FlatRate
}

type file struct {
	DefaultCurrency string                      `mapstructure:"default_currency"`
	DefaultRegion   string                      `mapstructure:"default_region"`
	Currencies      []domain.Currency           `mapstructure:"currencies"`
	Regions         map[string][]shippingOption `mapstructure:"regions"`
}

type shippingOption struct {
	Name    string            `mapstructure:"name"`
	Code    string            `mapstructure:"code"`
	Prices  map[string]string `mapstructure:"prices"`
	DaysMin int               `mapstructure:"days_min"`
	DaysMax int               `mapstructure:"days_max"`
	Default bool              `mapstructure:"default"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_currency", "AUD")
	v.SetDefault("default_region", "AU")
	v.SetDefault("option_types", "size,colour")
	v.SetDefault("currencies", []map[string]any{
		{"code": "AUD", "minor_units": 2},
		{"code": "NZD", "minor_units": 2},
	})
}

func defaultRegions() map[string][]shippingOption {
	return map[string][]shippingOption{
		"AU": {
			{Name: "Standard", Code: "standard", Prices: map[string]string{"AUD": "9.00", "NZD": "10.00"}, DaysMin: 3, DaysMax: 7, Default: true},
			{Name: "Express", Code: "express", Prices: map[string]string{"AUD": "15.00", "NZD": "17.00"}, DaysMin: 1, DaysMax: 2},
		},
		"WORLD": {
			{Name: "International", Code: "world", Prices: map[string]string{"AUD": "30.00", "NZD": "33.00"}, DaysMin: 7, DaysMax: 21, Default: true},
		},
	}
}

// Load reads the catalog from path (YAML; optional) on top of the built-in
// defaults. OPTION_TYPES in the environment overrides the option slots.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	setDefaults(v)
	if err := v.BindEnv("option_types", "OPTION_TYPES"); err != nil {
		return nil, fmt.Errorf("failed to bind OPTION_TYPES: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
		}
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	// Regions are replaced wholesale rather than merged key by key.
	if len(f.Regions) == 0 {
		f.Regions = defaultRegions()
	}

	return build(f, optionTypes(v))
}

// optionTypes accepts either a YAML list or a comma separated string.
func optionTypes(v *viper.Viper) []string {
	var raw []string
	if s, ok := v.Get("option_types").(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice("option_types")
	}

	slots := make([]string, 0, len(raw))
	for _, slot := range raw {
		if slot = strings.TrimSpace(slot); slot != "" {
			slots = append(slots, slot)
		}
	}
	return slots
}

func build(f file, slots []string) (*Catalog, error) {
	c := &Catalog{
		DefaultCurrency: domain.NormalizeCurrency(f.DefaultCurrency),
		DefaultRegion:   strings.ToUpper(f.DefaultRegion),
		OptionTypes:     slots,
		currencies:      make(map[string]domain.Currency, len(f.Currencies)),
		regions:         make(map[string][]shipping.FlatRate, len(f.Regions)),
	}

	for _, cur := range f.Currencies {
		cur.Code = domain.NormalizeCurrency(cur.Code)
		if cur.Code == "" {
			return nil, fmt.Errorf("catalog currency without a code")
		}
		if cur.MinorUnits < 0 {
			return nil, fmt.Errorf("catalog currency %s: minor units cannot be negative", cur.Code)
		}
		c.currencies[cur.Code] = cur
	}
	if _, ok := c.currencies[c.DefaultCurrency]; !ok {
		return nil, fmt.Errorf("default currency %s is not configured", c.DefaultCurrency)
	}

	// viper lower-cases map keys; region and currency codes are upper-cased back.
	for region, options := range f.Regions {
		region = strings.ToUpper(region)
		rates := make([]shipping.FlatRate, 0, len(options))
		defaults := 0
		for _, opt := range options {
			rate := shipping.FlatRate{
				ServiceName: opt.Name,
				ServiceCode: opt.Code,
				Prices:      make(map[string]domain.Money, len(opt.Prices)),
				DaysMin:     opt.DaysMin,
				DaysMax:     opt.DaysMax,
				Default:     opt.Default,
			}
			for code, amount := range opt.Prices {
				cur, err := c.Currency(code)
				if err != nil {
					return nil, fmt.Errorf("shipping option %s/%s: %w", region, opt.Code, err)
				}
				m, err := cur.Parse(amount)
				if err != nil {
					return nil, fmt.Errorf("shipping option %s/%s: %w", region, opt.Code, err)
				}
				rate.Prices[cur.Code] = m
			}
			if opt.Default {
				defaults++
			}
			rates = append(rates, rate)
		}
		if defaults > 1 {
			return nil, fmt.Errorf("region %s has %d default shipping options", region, defaults)
		}
		sort.SliceStable(rates, func(i, j int) bool { return rates[i].Default && !rates[j].Default })
		c.regions[region] = rates
	}
	if _, ok := c.regions[c.DefaultRegion]; !ok {
		return nil, fmt.Errorf("default region %s has no shipping options", c.DefaultRegion)
	}

	return c, nil
}

// Currency resolves a configured currency by code.
func (c *Catalog) Currency(code string) (domain.Currency, error) {
	cur, ok := c.currencies[domain.NormalizeCurrency(code)]
	if !ok {
		return domain.Currency{}, ErrUnknownCurrency
	}
	return cur, nil
}

// Currencies lists the configured currency codes in sorted order.
func (c *Catalog) Currencies() []string {
	codes := make([]string, 0, len(c.currencies))
	for code := range c.currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ShippingRegions returns the flat-rate options keyed by region for
// shipping.NewFlatRateProvider.
func (c *Catalog) ShippingRegions() map[string][]shipping.FlatRate {
	return c.regions
}
