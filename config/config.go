package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/utils"
)

// DefaultLibrarianUsername is the username of the single librarian account.
const DefaultLibrarianUsername = "lib0.0"

type Config struct {
	Port        string
	MongoURI    string
	DBName      string
	JWTSecret   string
	CORSOrigins []string

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	MaxUploadMB   int64

	LibrarianUsername string
	LibrarianPassword string
	MaxAssistants     int

	Policy         lending.Policy
	RetryAttempts  int
	RetryBaseDelay time.Duration

	// SMTP settings used when none are stored in the database.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	MailEncryptionKey []byte // 32 bytes for AES-256; optional
}

func Load() (*Config, error) {
	def := lending.DefaultPolicy()
	p := &parser{}
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("MONGODB_DB", "library"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		S3Bucket:      getEnv("AWS_S3_BUCKET", ""),
		S3Region:      getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MaxUploadMB:   int64(p.int("MAX_UPLOAD_MB", 5)),

		LibrarianUsername: getEnv("LIBRARIAN_USERNAME", DefaultLibrarianUsername),
		LibrarianPassword: getEnv("LIBRARIAN_PASSWORD", ""),
		MaxAssistants:     p.int("MAX_ASSISTANTS", 10),

		Policy: lending.Policy{
			AssistantLoanLimit:  p.int("ASSISTANT_LOAN_LIMIT", def.AssistantLoanLimit),
			AssistantTitleLimit: p.int("ASSISTANT_TITLE_LIMIT", def.AssistantTitleLimit),
			BorrowerLoanLimit:   p.int("BORROWER_LOAN_LIMIT", def.BorrowerLoanLimit),
			GracePeriodDays:     p.int("FINE_GRACE_DAYS", def.GracePeriodDays),
			FinePerDay:          p.int("FINE_PER_DAY", def.FinePerDay),
		},
		RetryAttempts:  p.int("LENDING_RETRY_ATTEMPTS", 5),
		RetryBaseDelay: p.duration("LENDING_RETRY_DELAY", 10*time.Millisecond),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     p.int("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
	}
	if k := getEnv("MAIL_ENCRYPTION_KEY", ""); k != "" {
		key, err := utils.ParseSecretKey(k)
		if err != nil {
			p.fail("MAIL_ENCRYPTION_KEY", err)
		}
		cfg.MailEncryptionKey = key
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parser keeps the first malformed variable so Load can report it.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("env %s: %w", key, err)
	}
}

func (p *parser) int(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(key, fmt.Errorf("want a non-negative integer, got %q", v))
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return d
}

// RequiredEnvVars are checked at startup.
var RequiredEnvVars = []string{
	"MONGODB_URI",
	"MONGODB_DB",
	"JWT_SECRET",
	"LIBRARIAN_PASSWORD",
}

// OptionalEnvVars are logged at startup so you can confirm they are loaded when set.
var OptionalEnvVars = []string{
	"PORT",
	"CORS_ORIGINS",
	"LIBRARIAN_USERNAME",
	"AWS_S3_BUCKET",
	"AWS_REGION",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"SMTP_HOST",
	"SMTP_USERNAME",
	"SMTP_PASSWORD",
	"MAIL_ENCRYPTION_KEY",
}

var secretEnvVars = map[string]bool{
	"AWS_ACCESS_KEY_ID":     true,
	"AWS_SECRET_ACCESS_KEY": true,
	"SMTP_PASSWORD":         true,
	"MAIL_ENCRYPTION_KEY":   true,
}

// ValidateEnv checks that all required env vars are set and logs status of required + optional.
func ValidateEnv() error {
	var missing []string
	for _, key := range RequiredEnvVars {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		} else {
			log.Printf("env %s loaded", key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s (set these in .env or environment)", strings.Join(missing, ", "))
	}
	for _, key := range OptionalEnvVars {
		v := strings.TrimSpace(os.Getenv(key))
		switch {
		case v == "":
			log.Printf("env %s not set (optional)", key)
		case secretEnvVars[key]:
			log.Printf("env %s loaded", key)
		default:
			log.Printf("env %s = %s", key, v)
		}
	}
	if os.Getenv("JWT_SECRET") == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be set to a strong secret (not the default change-me-in-production)")
	}
	return nil
}
