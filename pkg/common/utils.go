package common

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const slipCharacters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBetslipId returns the short code printed on a bet slip. It is
// for humans only; bets are keyed by id and idempotency key.
func GenerateBetslipId() string {
	result := make([]byte, 7)
	for i := range result {
		result[i] = slipCharacters[rand.IntN(len(slipCharacters))]
	}
	return string(result)
}

// GenerateTrxNo returns a 20 character transaction reference.
func GenerateTrxNo() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TRX" + id[:17]
}
