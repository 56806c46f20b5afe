package kalshi

import (
	"fmt"
	"os"
)

// Tier selects a credential pair. The trader signs with the write tier;
// the console and feeds use the read-only tier.
type Tier string

const (
	TierWrite    Tier = "WRITE"
	TierReadOnly Tier = "READONLY"
)

// LoadSigner builds a Signer from the environment. The key ID comes from
// KALSHI_<TIER>_KEY_ID and the PEM private key from the file named by
// KALSHI_<TIER>_KEY_FILE, falling back to an inline KALSHI_<TIER>_KEY.
// Secrets in a .env file must be loaded (godotenv) before calling this.
func LoadSigner(tier Tier) (*Signer, error) {
	idVar := fmt.Sprintf("KALSHI_%s_KEY_ID", tier)
	fileVar := fmt.Sprintf("KALSHI_%s_KEY_FILE", tier)
	inlineVar := fmt.Sprintf("KALSHI_%s_KEY", tier)

	keyID := os.Getenv(idVar)
	if keyID == "" {
		return nil, fmt.Errorf("kalshi: %s is not set", idVar)
	}

	var pemBytes []byte
	switch {
	case os.Getenv(fileVar) != "":
		b, err := os.ReadFile(os.Getenv(fileVar))
		if err != nil {
			return nil, fmt.Errorf("kalshi: read %s: %w", fileVar, err)
		}
		pemBytes = b
	case os.Getenv(inlineVar) != "":
		pemBytes = []byte(os.Getenv(inlineVar))
	default:
		return nil, fmt.Errorf("kalshi: neither %s nor %s is set", fileVar, inlineVar)
	}

	return NewSigner(keyID, pemBytes)
}
