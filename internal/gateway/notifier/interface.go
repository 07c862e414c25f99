package notifier

// TextNotifier defines a minimal text notification interface so components
// can send operator alerts without importing a concrete backend.
type TextNotifier interface {
	SendText(text string) error
}

// Noop 丢弃所有通知，未配置 Telegram 时使用。
type Noop struct{}

func (Noop) SendText(string) error { return nil }
