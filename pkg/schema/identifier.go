package schema

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
)

// MaxIdentifierLength is the PostgreSQL identifier limit, also applied to SQLite.
const MaxIdentifierLength = 63

// ValidateIdentifier checks that key is safe to splice into DDL as a column name.
// Allowed characters are lowercase ASCII letters, digits, '_' and '-', which is
// the output alphabet of fields.Normalize for the supported labels.
func ValidateIdentifier(key string) error {
	if key == "" {
		return fmt.Errorf("empty column name: %w", apperrors.ErrInvalidIdentifier)
	}
	if len(key) > MaxIdentifierLength {
		return fmt.Errorf("column name %q longer than %d bytes: %w", key, MaxIdentifierLength, apperrors.ErrInvalidIdentifier)
	}
	for _, c := range key {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return fmt.Errorf("column name %q contains %q: %w", key, c, apperrors.ErrInvalidIdentifier)
		}
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(key); isSQLi {
		return fmt.Errorf("column name %q matches injection pattern %s: %w", key, fingerprint, apperrors.ErrInvalidIdentifier)
	}
	return nil
}
