package preflight

import (
	"strings"

	"reelsmith/internal/config"
)

// CheckProvidersFromConfig evaluates each generative provider's configuration
// without touching the network. A provider passes when it has both an API key
// and a model; the detail names whichever is missing.
func CheckProvidersFromConfig(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	providers := []struct {
		name     string
		provider config.Provider
	}{
		{"Script", cfg.Providers.Script},
		{"Speech", cfg.Providers.Speech},
		{"Image", cfg.Providers.Image},
		{"Motion", cfg.Providers.Motion},
		{"Music", cfg.Providers.Music},
	}

	results := make([]Result, 0, len(providers))
	for _, entry := range providers {
		results = append(results, checkProviderConfig(entry.name, entry.provider))
	}
	return results
}

func checkProviderConfig(name string, provider config.Provider) Result {
	missing := make([]string, 0, 2)
	if strings.TrimSpace(provider.APIKey) == "" {
		missing = append(missing, "API key")
	}
	if strings.TrimSpace(provider.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: "Missing " + strings.Join(missing, " and ")}
	}
	detail := "Configured"
	if strings.TrimSpace(provider.BaseURL) != "" {
		detail = "Configured (" + provider.BaseURL + ")"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
