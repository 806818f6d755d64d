package audit

import (
	"time"

	id "miriesgo/pkg/domain"
)

// Entry is one row of the audit trail. It is append-only.
type Entry struct {
	ID        int64
	UserID    *id.UserID
	Action    Action
	TableName string
	RecordID  string
	Detail    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

type Action string

const (
	ActionLogin         Action = "login"
	ActionLoginFailed   Action = "login_failed"
	ActionAccountLocked Action = "account_locked"
	ActionLogout        Action = "logout"
	ActionTokenRefresh  Action = "token_refresh"
	ActionUserCreated   Action = "user_created"
	ActionUserUpdated   Action = "user_updated"
	ActionUserDeleted   Action = "user_deleted"
	ActionPasswordReset Action = "password_reset"
	ActionClientUpdated Action = "client_updated"
	ActionClientDeleted Action = "client_deleted"
	ActionLoanUpdated   Action = "loan_updated"
	ActionCompanyChange Action = "company_changed"
	ActionFileUploaded  Action = "file_uploaded"
	ActionReportViewed  Action = "report_viewed"
)
