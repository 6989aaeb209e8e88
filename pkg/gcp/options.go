// Package gcp builds the client options shared by the Pub/Sub and BigQuery
// clients.
package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
)

// ClientOptions picks inline credentials over a credentials file. With neither
// set the SDKs fall back to application default credentials, which is what the
// Pub/Sub emulator and workload identity both expect.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(cfg.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// ProjectID returns the trimmed project id and whether one is configured.
func ProjectID(cfg config.GCPConfig) (string, bool) {
	id := strings.TrimSpace(cfg.ProjectID)
	return id, id != ""
}
