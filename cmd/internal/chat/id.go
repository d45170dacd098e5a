package chat

import (
	"crypto/rand"
	"encoding/hex"
)

// wsClientID returns a short random connection id for hub bookkeeping and
// log correlation. It is not a credential.
func wsClientID() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
