package params

import (
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"creditmanager/native/credit"
)

// Registry is the in-process parameter source for the credit engine. It is
// seeded from a YAML file at startup and mutated only through the validated
// setters, so the engine never observes a half-written parameter set.
type Registry struct {
	mu           sync.RWMutex
	assets       map[string]*credit.AssetParams
	vaultConfigs map[string]*credit.VaultConfig
	closeFactor  decimal.Decimal
	targetHF     decimal.Decimal
	paused       map[string]bool
	prices       map[string]decimal.Decimal
}

func NewRegistry() *Registry {
	return &Registry{
		assets:       make(map[string]*credit.AssetParams),
		vaultConfigs: make(map[string]*credit.VaultConfig),
		closeFactor:  decimal.RequireFromString("0.5"),
		targetHF:     decimal.RequireFromString("1.2"),
		paused:       make(map[string]bool),
		prices:       make(map[string]decimal.Decimal),
	}
}

// seedFile is the YAML document layout of a parameter seed.
type seedFile struct {
	CloseFactor        string            `yaml:"close_factor"`
	TargetHealthFactor string            `yaml:"target_health_factor"`
	Assets             []seedAsset       `yaml:"assets"`
	Vaults             []seedVault       `yaml:"vaults"`
	Prices             map[string]string `yaml:"prices,omitempty"`
}

type seedAsset struct {
	Denom                string           `yaml:"denom"`
	MaxLTV               string           `yaml:"max_ltv"`
	LiquidationThreshold string           `yaml:"liquidation_threshold"`
	Whitelisted          bool             `yaml:"whitelisted"`
	DepositCap           string           `yaml:"deposit_cap,omitempty"`
	ProtocolFee          string           `yaml:"protocol_fee,omitempty"`
	LiquidationBonus     *seedBonus       `yaml:"liquidation_bonus,omitempty"`
	HLS                  *seedHLS         `yaml:"hls,omitempty"`
}

type seedBonus struct {
	StartingLB string `yaml:"starting_lb"`
	Slope      string `yaml:"slope"`
	MinLB      string `yaml:"min_lb"`
	MaxLB      string `yaml:"max_lb"`
}

type seedHLS struct {
	MaxLTV               string            `yaml:"max_ltv"`
	LiquidationThreshold string            `yaml:"liquidation_threshold"`
	Correlations         []seedCorrelation `yaml:"correlations"`
}

type seedCorrelation struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

type seedVault struct {
	Vault                string   `yaml:"vault"`
	MaxLTV               string   `yaml:"max_ltv"`
	LiquidationThreshold string   `yaml:"liquidation_threshold"`
	Whitelisted          bool     `yaml:"whitelisted"`
	DepositCap           string   `yaml:"deposit_cap,omitempty"`
	HLS                  *seedHLS `yaml:"hls,omitempty"`
}

// LoadFile seeds a registry from a YAML parameter file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse seeds a registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("params: decode seed: %w", err)
	}
	registry := NewRegistry()
	if seed.CloseFactor != "" {
		cf, err := parseDecimal("close_factor", seed.CloseFactor)
		if err != nil {
			return nil, err
		}
		if err := registry.SetCloseFactor(cf); err != nil {
			return nil, err
		}
	}
	if seed.TargetHealthFactor != "" {
		thf, err := parseDecimal("target_health_factor", seed.TargetHealthFactor)
		if err != nil {
			return nil, err
		}
		if err := registry.SetTargetHealthFactor(thf); err != nil {
			return nil, err
		}
	}
	for _, asset := range seed.Assets {
		parsed, err := asset.toParams()
		if err != nil {
			return nil, err
		}
		if err := registry.SetAssetParams(parsed); err != nil {
			return nil, err
		}
	}
	for _, vault := range seed.Vaults {
		parsed, err := vault.toConfig()
		if err != nil {
			return nil, err
		}
		if err := registry.SetVaultConfig(parsed); err != nil {
			return nil, err
		}
	}
	for denom, value := range seed.Prices {
		price, err := parseDecimal("prices."+denom, value)
		if err != nil {
			return nil, err
		}
		registry.SetPrice(denom, price)
	}
	return registry, nil
}

func (a seedAsset) toParams() (*credit.AssetParams, error) {
	maxLTV, err := parseDecimal(a.Denom+".max_ltv", a.MaxLTV)
	if err != nil {
		return nil, err
	}
	liqThreshold, err := parseDecimal(a.Denom+".liquidation_threshold", a.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	params := &credit.AssetParams{
		Denom:                a.Denom,
		MaxLTV:               maxLTV,
		LiquidationThreshold: liqThreshold,
		Whitelisted:          a.Whitelisted,
	}
	if a.DepositCap != "" {
		capAmount, ok := new(big.Int).SetString(a.DepositCap, 10)
		if !ok {
			return nil, fmt.Errorf("params: invalid deposit cap for %s", a.Denom)
		}
		params.DepositCap = capAmount
	}
	if a.ProtocolFee != "" {
		fee, err := parseDecimal(a.Denom+".protocol_fee", a.ProtocolFee)
		if err != nil {
			return nil, err
		}
		params.ProtocolFee = fee
	}
	if a.LiquidationBonus != nil {
		bonus, err := a.LiquidationBonus.toBonus(a.Denom)
		if err != nil {
			return nil, err
		}
		params.LiquidationBonus = bonus
	}
	if a.HLS != nil {
		hls, err := a.HLS.toHLS(a.Denom)
		if err != nil {
			return nil, err
		}
		params.HLS = hls
	}
	return params, nil
}

func (b seedBonus) toBonus(denom string) (credit.LiquidationBonus, error) {
	var out credit.LiquidationBonus
	var err error
	if out.StartingLB, err = parseDecimal(denom+".starting_lb", b.StartingLB); err != nil {
		return out, err
	}
	if out.Slope, err = parseDecimal(denom+".slope", b.Slope); err != nil {
		return out, err
	}
	if out.MinLB, err = parseDecimal(denom+".min_lb", b.MinLB); err != nil {
		return out, err
	}
	if out.MaxLB, err = parseDecimal(denom+".max_lb", b.MaxLB); err != nil {
		return out, err
	}
	return out, nil
}

func (h seedHLS) toHLS(owner string) (*credit.HLSParams, error) {
	maxLTV, err := parseDecimal(owner+".hls.max_ltv", h.MaxLTV)
	if err != nil {
		return nil, err
	}
	liqThreshold, err := parseDecimal(owner+".hls.liquidation_threshold", h.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	hls := &credit.HLSParams{MaxLTV: maxLTV, LiquidationThreshold: liqThreshold}
	for _, c := range h.Correlations {
		switch credit.CorrelationType(c.Type) {
		case credit.CorrelationCoin, credit.CorrelationVault:
		default:
			return nil, fmt.Errorf("params: unknown correlation type %q for %s", c.Type, owner)
		}
		hls.Correlations = append(hls.Correlations, credit.Correlation{
			Type:  credit.CorrelationType(c.Type),
			Value: c.Value,
		})
	}
	return hls, nil
}

func (v seedVault) toConfig() (*credit.VaultConfig, error) {
	maxLTV, err := parseDecimal(v.Vault+".max_ltv", v.MaxLTV)
	if err != nil {
		return nil, err
	}
	liqThreshold, err := parseDecimal(v.Vault+".liquidation_threshold", v.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	config := &credit.VaultConfig{
		Vault:                v.Vault,
		MaxLTV:               maxLTV,
		LiquidationThreshold: liqThreshold,
		Whitelisted:          v.Whitelisted,
	}
	if v.DepositCap != "" {
		capAmount, ok := new(big.Int).SetString(v.DepositCap, 10)
		if !ok {
			return nil, fmt.Errorf("params: invalid deposit cap for vault %s", v.Vault)
		}
		config.DepositCap = capAmount
	}
	if v.HLS != nil {
		hls, err := v.HLS.toHLS(v.Vault)
		if err != nil {
			return nil, err
		}
		config.HLS = hls
	}
	return config, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	out, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("params: invalid %s: %w", field, err)
	}
	return out, nil
}

// --- credit.ParamsRegistry ---

func (r *Registry) AssetParams(denom string) (*credit.AssetParams, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assets[denom], nil
}

func (r *Registry) VaultConfig(vault string) (*credit.VaultConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vaultConfigs[vault], nil
}

func (r *Registry) TargetHealthFactor() (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.targetHF, nil
}

func (r *Registry) CloseFactor() (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closeFactor, nil
}

// --- validated setters ---

func (r *Registry) SetAssetParams(params *credit.AssetParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[params.Denom] = params
	return nil
}

func (r *Registry) SetVaultConfig(config *credit.VaultConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vaultConfigs[config.Vault] = config
	return nil
}

func (r *Registry) SetCloseFactor(cf decimal.Decimal) error {
	one := decimal.NewFromInt(1)
	if cf.Sign() <= 0 || cf.GreaterThan(one) {
		return credit.InvalidConfigError{Reason: "close factor must be in (0, 1]"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFactor = cf
	return nil
}

func (r *Registry) SetTargetHealthFactor(thf decimal.Decimal) error {
	if thf.LessThan(decimal.NewFromInt(1)) {
		return credit.InvalidConfigError{Reason: "target health factor must be at least 1"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targetHF = thf
	return nil
}

// Price returns the seeded reference price for a denom, if any. The dev-mode
// oracle adapter reads from here; production deployments plug a real oracle
// into the engine instead.
func (r *Registry) Price(denom string) (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	price, ok := r.prices[denom]
	return price, ok
}

func (r *Registry) SetPrice(denom string, price decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[denom] = price
}

// --- pause view ---

// IsPaused reports whether a module has been administratively paused.
func (r *Registry) IsPaused(module string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[module]
}

func (r *Registry) SetPaused(module string, paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused[module] = paused
}
