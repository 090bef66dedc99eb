package orders

import (
	"context"

	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/logger"
)

// Notice is a toast-style message for the person building the order.
type Notice struct {
	Level   enums.NoticeLevel `json:"level"`
	Message string            `json:"message"`
}

// Notifier surfaces notices. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice Notice)

func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	f(ctx, notice)
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	ctx = n.logg.WithField(ctx, "notice_level", string(notice.Level))
	switch notice.Level {
	case enums.NoticeLevelError, enums.NoticeLevelWarning:
		n.logg.Warn(ctx, notice.Message)
	default:
		n.logg.Info(ctx, notice.Message)
	}
}

// LoginPrompter opens the login flow when an order is placed without an identity.
type LoginPrompter interface {
	PromptLogin(ctx context.Context)
}

// LoginPrompterFunc adapts a function to LoginPrompter.
type LoginPrompterFunc func(ctx context.Context)

func (f LoginPrompterFunc) PromptLogin(ctx context.Context) {
	f(ctx)
}
