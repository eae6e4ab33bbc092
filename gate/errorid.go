package gate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Error identifier generators accepted by ErrorIDGenerator.
const (
	ErrorIDHex  = "hex"
	ErrorIDUUID = "uuid"
)

// HexErrorID returns 8 random bytes, hex encoded. The identifier is only
// used to correlate a response with logs; it carries no information about
// the failure.
func HexErrorID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// UUIDErrorID returns a random (version 4) UUID.
func UUIDErrorID(*http.Request) string {
	return uuid.NewString()
}

// ErrorIDGenerator resolves a configured generator name. The default hex
// generator is returned as nil.
func ErrorIDGenerator(name string) (func(*http.Request) string, error) {
	switch name {
	case "", ErrorIDHex:
		return nil, nil
	case ErrorIDUUID:
		return UUIDErrorID, nil
	default:
		return nil, fmt.Errorf("unknown error id generator %q (supported: hex, uuid)", name)
	}
}
