package env

import (
	"os"
	"strings"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
)

// EnvPrefix marks environment variables that are exposed to templates
// without the prefix, so SNOT_BRANCH becomes {{BRANCH}}.
const EnvPrefix = "SNOT_"

// RunVariables returns the variables available to templates for a run:
// prefixed environment variables, overridden by the configured run coordinates.
func RunVariables(cfg *config.Config) map[string]any {
	coords := map[string]any{}
	for k, v := range map[string]string{
		"project":     cfg.Project,
		"release":     cfg.Release,
		"build":       cfg.Build,
		"environment": cfg.Environment,
		"testPlan":    cfg.TestPlan,
	} {
		if v != "" {
			coords[k] = v
		}
	}
	return MergeVariables(LoadSystemEnv(EnvPrefix), coords)
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
