package enums

// NoticeLevel classifies user-facing notices.
type NoticeLevel string

const (
	NoticeLevelSuccess NoticeLevel = "success"
	NoticeLevelError   NoticeLevel = "error"
	NoticeLevelWarning NoticeLevel = "warning"
	NoticeLevelInfo    NoticeLevel = "info"
)
