package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Alpaca.APIKey)
	redact(&out.Alpaca.APISecret)

	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Slices share backing arrays with the original; copy them so callers
	// cannot mutate cfg through the redacted value.
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Scheduler.RunTimes = cloneStrings(cfg.Scheduler.RunTimes)
	out.Scheduler.Holidays = cloneStrings(cfg.Scheduler.Holidays)
	if cfg.Risk.Tiers != nil {
		out.Risk.Tiers = append([]TierConfig(nil), cfg.Risk.Tiers...)
	}
	if cfg.Themes != nil {
		out.Themes = make([]ThemeConfig, len(cfg.Themes))
		for i, t := range cfg.Themes {
			t.Symbols = cloneStrings(t.Symbols)
			out.Themes[i] = t
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
