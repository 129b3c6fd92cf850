package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ==================== UUID ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

// ==================== TRANSACTION ID ====================

// GenerateTransactionID creates an external transaction id when the caller
// did not supply one.
// Format: PAY-YYYYMMDD-<32 hex>
func GenerateTransactionID() string {
	datePart := time.Now().UTC().Format("20060102")
	randomPart := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))

	return fmt.Sprintf("PAY-%s-%s", datePart, randomPart)
}
