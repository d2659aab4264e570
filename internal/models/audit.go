package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of privileged actions recorded in the audit log.
type AuditAction string

const (
	AuditUserCreated               AuditAction = "USER_CREATED"
	AuditUserUpdated               AuditAction = "USER_UPDATED"
	AuditUserDeleted               AuditAction = "USER_DELETED"
	AuditRoleChanged               AuditAction = "ROLE_CHANGED"
	AuditLogin                     AuditAction = "LOGIN"
	AuditEventCreated              AuditAction = "EVENT_CREATED"
	AuditEventUpdated              AuditAction = "EVENT_UPDATED"
	AuditEventDeleted              AuditAction = "EVENT_DELETED"
	AuditRegistrationStatusChanged AuditAction = "REGISTRATION_STATUS_CHANGED"
	AuditExportGenerated           AuditAction = "EXPORT_GENERATED"
	AuditReportDownloaded          AuditAction = "REPORT_DOWNLOADED"
	AuditSnapshotGenerated         AuditAction = "SNAPSHOT_GENERATED"
	AuditBulkOperation             AuditAction = "BULK_OPERATION"
)

// AuditActions lists every recordable action.
var AuditActions = []AuditAction{
	AuditUserCreated, AuditUserUpdated, AuditUserDeleted, AuditRoleChanged, AuditLogin,
	AuditEventCreated, AuditEventUpdated, AuditEventDeleted, AuditRegistrationStatusChanged,
	AuditExportGenerated, AuditReportDownloaded, AuditSnapshotGenerated, AuditBulkOperation,
}

// ValidAuditAction reports whether s names a known action.
func ValidAuditAction(s string) bool {
	for _, a := range AuditActions {
		if string(a) == s {
			return true
		}
	}
	return false
}

// AuditTarget is the kind of entity an audit record refers to.
type AuditTarget string

const (
	TargetUser         AuditTarget = "USER"
	TargetEvent        AuditTarget = "EVENT"
	TargetRegistration AuditTarget = "REGISTRATION"
	TargetSystem       AuditTarget = "SYSTEM"
	TargetReport       AuditTarget = "REPORT"
)

// AuditLog is an append-only record of a privileged action.
type AuditLog struct {
	ID          uuid.UUID       `json:"id"`
	Action      AuditAction     `json:"action"`
	ActorID     *uuid.UUID      `json:"actor_id,omitempty"`
	ActorRole   Role            `json:"actor_role,omitempty"`
	ActorName   string          `json:"actor_name,omitempty"`
	TargetType  AuditTarget     `json:"target_type"`
	TargetID    string          `json:"target_id,omitempty"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
