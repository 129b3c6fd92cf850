package entity

import "github.com/google/uuid"

type AuditLevel string

const (
	AuditLevelInfo     AuditLevel = "info"
	AuditLevelWarning  AuditLevel = "warning"
	AuditLevelError    AuditLevel = "error"
	AuditLevelCritical AuditLevel = "critical"
)

type AuditEntry struct {
	BaseSimple
	TransactionID uuid.UUID      `db:"transaction_id"`
	Level         AuditLevel     `db:"level"`
	Message       string         `db:"message"`
	Context       map[string]any `db:"context"`
}
