package config

import "os"

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Cron specs for the two sweeps.
	ExpirySweepSpec   string
	ReminderSweepSpec string

	AllowedOrigin string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ExpirySweepSpec:   getEnv("EXPIRY_SWEEP_SPEC", "@every 1m"),
		ReminderSweepSpec: getEnv("REMINDER_SWEEP_SPEC", "@every 5m"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "*"),
		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendGridFromEmail: os.Getenv("SENDGRID_FROM_EMAIL"),
		SendGridFromName:  os.Getenv("SENDGRID_FROM_NAME"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_FROM_NUMBER"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
