package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for gradual rollout.
// Flags gate the report caching paths and export formats, so a misbehaving
// cache or renderer can be turned off without a deploy.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	tenantOverrides map[string]map[string]bool // tenantID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Tenants are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	TenantID string // Tenant (school) identifier
	ActorID  string // Acting user identifier
	IsAdmin  bool   // Is admin user
}

// Predefined feature flag names.
const (
	// === Report Features ===
	FeatureReportClassSummaryCache = "report.class_summary_cache" // Cache the class summary report
	FeatureReportTrendsCache       = "report.trends_cache"        // Cache the progress trends report
	FeatureReportWarmer            = "report.warmer"              // Background report warmup job

	// === Repository Features ===
	FeatureTenantIsolation = "repository.tenant_isolation" // Enforce tenant scope on every operation

	// === Export Features ===
	FeatureExportCSV  = "export.csv"  // CSV student export
	FeatureExportXLSX = "export.xlsx" // XLSX student export
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		tenantOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureReportClassSummaryCache] = &Feature{
		Name:           FeatureReportClassSummaryCache,
		Description:    "Cache the class summary report",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureReportTrendsCache] = &Feature{
		Name:           FeatureReportTrendsCache,
		Description:    "Cache the progress trends report",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureReportWarmer] = &Feature{
		Name:           FeatureReportWarmer,
		Description:    "Warm report caches in the background",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTenantIsolation] = &Feature{
		Name:           FeatureTenantIsolation,
		Description:    "Enforce tenant scope on repository operations",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExportCSV] = &Feature{
		Name:           FeatureExportCSV,
		Description:    "Export students as CSV",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExportXLSX] = &Feature{
		Name:           FeatureExportXLSX,
		Description:    "Export students as XLSX",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment applies environment overrides.
// A flag accepts either a boolean ("true"/"false") or a rollout percentage.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "report.warmer" -> "FEATURE_REPORT_WARMER"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.isEnabled(featureName, ctx)
}

func (ff *FeatureFlags) isEnabled(featureName string, ctx *FeatureContext) bool {
	// Check tenant overrides first
	if ctx != nil && ctx.TenantID != "" {
		if overrides, ok := ff.tenantOverrides[ctx.TenantID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.TenantID != "" {
		return isInRollout(ctx.TenantID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a tenant is in the rollout percentage.
// Uses consistent hashing so tenants stay in their bucket.
func isInRollout(tenantID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(tenantID))
	hash := h.Sum32()

	bucket := int(hash % 100)
	return bucket < percent
}

// SetTenantOverride sets a feature override for a specific tenant.
func (ff *FeatureFlags) SetTenantOverride(tenantID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.tenantOverrides[tenantID] == nil {
		ff.tenantOverrides[tenantID] = make(map[string]bool)
	}
	ff.tenantOverrides[tenantID][featureName] = enabled
}

// ClearTenantOverrides removes all overrides for a tenant.
func (ff *FeatureFlags) ClearTenantOverrides(tenantID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.tenantOverrides, tenantID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Feature: featureName, Message: "percent must be 0-100"}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Feature: featureName, Message: "unknown feature"}
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature turns a feature fully on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature turns a feature fully off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a snapshot of all features.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for name, feature := range ff.features {
		copied := *feature
		result[name] = &copied
	}
	return result
}

// FeatureFlagError describes a feature flag operation failure.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flag " + e.Feature + ": " + e.Message
}
