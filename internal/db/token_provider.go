package db

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// TokenProvider abstracts cloud token acquisition for database authentication.
type TokenProvider interface {
	// GetToken acquires a short-lived token that is sent as the password.
	// Returns the token string and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String returns a human-readable description for logging.
	// Should NOT include secrets. Example: "AzureServicePrincipal(tenant=xxx, client=yyy)"
	String() string
}

// AzureOSSRDBMSScope is the OAuth scope for Azure Database for PostgreSQL
// and Azure Database for MySQL.
const AzureOSSRDBMSScope = "https://ossrdbms-aad.database.windows.net/.default"

// newTokenProvider returns the provider for the configured auth method, or
// nil when the password is used as-is. Google IAM is handled by the Cloud
// SQL dialer rather than a token.
func newTokenProvider(config *sqlmcp.ConnectionConfig) (TokenProvider, error) {
	switch config.AuthMethod {
	case sqlmcp.AuthMethodAWSIAM:
		endpoint := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
		provider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS IAM token provider: %w: %w", err, sqlmcp.ErrInvalidConfig)
		}
		return provider, nil

	case sqlmcp.AuthMethodAzureEntraID:
		if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
			provider, err := NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
			}
			return provider, nil
		}
		provider, err := NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
		return provider, nil

	case sqlmcp.AuthMethodStandard, sqlmcp.AuthMethodGoogleIAM:
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, sqlmcp.ErrUnsupportedAuthMethod)
	}
}
