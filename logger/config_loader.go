package logger

const (
	// DefaultAppName is reported to the webhook when no application name is configured.
	DefaultAppName = "huaban-board-downloader"
	// DefaultEnvironment is used when no environment is configured.
	DefaultEnvironment = "development"
)

// NewConfig builds a logger Config from plain settings, typically read by the
// config package. Empty app and environment names fall back to the defaults.
func NewConfig(level, webhookURL, appName, environment string) *Config {
	if appName == "" {
		appName = DefaultAppName
	}
	if environment == "" {
		environment = DefaultEnvironment
	}
	return &Config{
		Level:       ParseLevel(level),
		WebhookURL:  webhookURL,
		AppName:     appName,
		Environment: environment,
	}
}
