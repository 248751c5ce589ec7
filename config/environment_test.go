package config

import "testing"

func TestAppEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv(appEnvVar, "")
	if env := AppEnvironment(); env != EnvironmentDevelopment {
		t.Errorf("AppEnvironment() = %q want %q", env, EnvironmentDevelopment)
	}
}

func TestAppEnvironmentNormalizesAliases(t *testing.T) {
	cases := map[string]string{
		"prod":       EnvironmentProduction,
		"PROD":       EnvironmentProduction,
		"stagging":   EnvironmentStaging,
		"production": EnvironmentProduction,
		"custom-env": "custom-env",
	}
	for raw, want := range cases {
		t.Setenv(appEnvVar, raw)
		if env := AppEnvironment(); env != want {
			t.Errorf("AppEnvironment() with APP_ENV=%q = %q want %q", raw, env, want)
		}
	}
}

func TestIsProductionLike(t *testing.T) {
	if !IsProductionLike(EnvironmentProduction) || !IsProductionLike(EnvironmentStaging) {
		t.Error("production and staging should be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development should not be production-like")
	}
}

func TestResolveEnvSpecificPath(t *testing.T) {
	envPaths := map[string]string{
		EnvironmentProduction: "config/config.production.yml",
	}

	t.Setenv(appEnvVar, "prod")
	if got := resolveEnvSpecificPath("config/config.yml", "config/config.yml", envPaths); got != "config/config.production.yml" {
		t.Errorf("default path in production resolved to %q", got)
	}
	// explicit non-default paths are never overridden
	if got := resolveEnvSpecificPath("/etc/tradelink.yml", "config/config.yml", envPaths); got != "/etc/tradelink.yml" {
		t.Errorf("explicit path was overridden to %q", got)
	}

	t.Setenv(appEnvVar, "development")
	if got := resolveEnvSpecificPath("config/config.yml", "config/config.yml", envPaths); got != "config/config.yml" {
		t.Errorf("development resolved to %q", got)
	}
}
