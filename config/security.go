package config

import "time"

// SecurityConfig groups lockout policy, session, and password hashing
// configuration.
type SecurityConfig struct {
	// MaxFailedAttempts is the number of failed logins inside FailureWindow
	// that locks an account.
	MaxFailedAttempts int `env:"MAX_FAILED_ATTEMPTS" envDefault:"5"`

	// FailureWindow is the trailing window considered for MaxFailedAttempts.
	FailureWindow time.Duration `env:"FAILURE_WINDOW" envDefault:"15m"`

	// SessionTTL is the sliding-expiry window for sessions. Every
	// authenticated request pushes the deadline forward by this much.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// SuspiciousIPThreshold is the failed-login count per source address
	// that flags it on the admin overview.
	SuspiciousIPThreshold int `env:"SUSPICIOUS_IP_THRESHOLD" envDefault:"10"`

	// Argon2 hashing cost parameters. The defaults follow the OWASP
	// argon2id baseline (64 MiB, t=1, p=4).
	Argon2MemoryKB    uint32 `env:"ARGON2_MEMORY_KB"   envDefault:"65536"`
	Argon2Iterations  uint32 `env:"ARGON2_ITERATIONS"  envDefault:"1"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"4"`
}

// Sanitize applies guardrails to security configuration values.
func (s *SecurityConfig) Sanitize() {
	if s.MaxFailedAttempts < 1 {
		s.MaxFailedAttempts = 5
	}
	if s.FailureWindow <= 0 {
		s.FailureWindow = 15 * time.Minute
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = 168 * time.Hour
	}
	if s.SuspiciousIPThreshold < 1 {
		s.SuspiciousIPThreshold = 10
	}
}
