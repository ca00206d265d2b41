package cloudinary

import "fmt"

// DefaultFolder is used when no upload folder is configured
const DefaultFolder = "holidaysri-admin"

// Config holds Cloudinary configuration
type Config struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadFolder string
}

// Enabled reports whether credentials were supplied at all
func (c Config) Enabled() bool {
	return c.CloudName != "" || c.APIKey != "" || c.APISecret != ""
}

// Validate checks if the config is valid
func (c Config) Validate() error {
	if c.CloudName == "" {
		return fmt.Errorf("cloudinary cloud name is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("cloudinary API key is required")
	}
	if c.APISecret == "" {
		return fmt.Errorf("cloudinary API secret is required")
	}
	return nil
}
