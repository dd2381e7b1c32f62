// Package config resolves umami-report settings.
//
// Settings come from an optional YAML file, an optional dotenv file and the
// process environment, in increasing order of precedence. The CLI applies
// explicitly set flags on top. Environment variable names match those used
// by the scheduled CI job (UMAMI_API_URL, TELEGRAM_BOT_TOKEN, ...).
package config
