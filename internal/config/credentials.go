package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment prefixes of the two services.
const (
	ConfluencePrefix = "CONFLUENCE"
	JiraPrefix       = "JIRA"
)

// Credentials identify one remote Atlassian site.
type Credentials struct {
	URL      string
	Username string
	APIToken string
	Cloud    bool
}

// ConfigurationError reports credentials that could not be resolved.
type ConfigurationError struct {
	Prefix  string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	p := e.Prefix
	return fmt.Sprintf("%s_URL, %s_USERNAME, and %s_API_TOKEN must be set", p, p, p)
}

// ResolveCredentials reads <prefix>_URL, <prefix>_USERNAME, <prefix>_API_TOKEN and
// <prefix>_CLOUD from the environment, falling back to file values for empty vars.
// The cloud flag defaults to true; only the literal "true" (any case) enables it.
func ResolveCredentials(prefix string, fallback ServiceConfig) (Credentials, error) {
	creds := Credentials{
		URL:      firstNonEmpty(os.Getenv(prefix+"_URL"), fallback.URL),
		Username: firstNonEmpty(os.Getenv(prefix+"_USERNAME"), fallback.Username),
		APIToken: firstNonEmpty(os.Getenv(prefix+"_API_TOKEN"), fallback.APIToken),
	}

	cloud := "true"
	if fallback.Cloud != nil && !*fallback.Cloud {
		cloud = "false"
	}
	if v, ok := os.LookupEnv(prefix + "_CLOUD"); ok {
		cloud = v
	}
	creds.Cloud = strings.EqualFold(strings.TrimSpace(cloud), "true")

	var missing []string
	if creds.URL == "" {
		missing = append(missing, prefix+"_URL")
	}
	if creds.Username == "" {
		missing = append(missing, prefix+"_USERNAME")
	}
	if creds.APIToken == "" {
		missing = append(missing, prefix+"_API_TOKEN")
	}
	if len(missing) > 0 {
		return Credentials{}, &ConfigurationError{Prefix: prefix, Missing: missing}
	}
	return creds, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
