package session

import "context"

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a single user-facing notification produced by an
// identity-affecting operation, the toast analog.
type Notice struct {
	Level   NoticeLevel
	Code    string
	Message string
}

// Notifier receives notices. Implementations run best-effort: errors are
// logged by the caller and never block the operation that produced the
// notice.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, notice Notice) error

func (f NotifierFunc) Notify(ctx context.Context, notice Notice) error {
	if f == nil {
		return nil
	}
	return f(ctx, notice)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notice) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
