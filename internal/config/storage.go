package config

// StorageConfig holds blob storage configuration for the local and s3
// credentials backends.
type StorageConfig struct {
	LocalDir   string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"./data"` // Base directory for local storage
	S3Bucket   string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`                  // S3 bucket name
	S3Prefix   string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`                  // S3 object key prefix (optional)
	S3Region   string `env:"STORAGE_S3_REGION" yaml:"s3_region"`                  // AWS region
	S3Profile  string `env:"STORAGE_S3_PROFILE" yaml:"s3_profile"`                // AWS profile name (optional)
	S3Endpoint string `env:"STORAGE_S3_ENDPOINT" yaml:"s3_endpoint"`              // Custom endpoint, e.g. MinIO (optional)
	Namespace  string `env:"STORAGE_NAMESPACE" yaml:"namespace" default:"credentials"`
}
