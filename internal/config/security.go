package config

import "fmt"

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"https://*,http://*"`
	// QRAllowedOrigins limits which pages may open the QR websocket. "*" allows any.
	QRAllowedOrigins []string `env:"QR_ALLOWED_ORIGINS" yaml:"qr_allowed_origins" default:"*"`
	MaxRequestSize   int64    `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"` // 1MB default
	SecurityHeaders  bool     `env:"SECURITY_HEADERS" yaml:"security_headers" default:"true"`
}

func (s SecurityConfig) Validate() error {
	if s.MaxRequestSize <= 0 {
		return fmt.Errorf("max_request_size must be greater than 0")
	}
	return nil
}
