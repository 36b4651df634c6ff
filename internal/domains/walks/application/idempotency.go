package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
)

type normalizedRequestWalkInput struct {
	OwnerID   string   `json:"ownerId"`
	PetNames  []string `json:"petNames"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
}

// FingerprintRequestWalk builds a deterministic hash of a walk request (excluding the idempotency key).
func FingerprintRequestWalk(input walktypes.RequestWalkInput) (string, error) {
	normalized := normalizedRequestWalkInput{
		OwnerID:   strings.TrimSpace(input.Caller.UserID),
		PetNames:  make([]string, 0, len(input.PetNames)),
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}
	for _, name := range input.PetNames {
		normalized.PetNames = append(normalized.PetNames, strings.TrimSpace(name))
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
