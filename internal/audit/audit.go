package audit

import (
	"context"

	"github.com/hxbeeb/excalidraw/pkg/log"
)

// Audit actions for the room hub.
const (
	ActionConnect       = "hub.connect"
	ActionAuthFailed    = "hub.auth_failed"
	ActionDisconnect    = "hub.disconnect"
	ActionJoinRoom      = "hub.join_room"
	ActionLeaveRoom     = "hub.leave_room"
	ActionCreateRoom    = "hub.create_room"
	ActionSendMessage   = "hub.send_message"
	ActionClearCanvas   = "hub.clear_canvas"
	ActionClearAll      = "hub.clear_all"
	ActionClearMessages = "hub.clear_messages"
	ActionSignup        = "account.signup"
	ActionLogin         = "account.login"
	ActionLoginFailed   = "account.login_failed"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
