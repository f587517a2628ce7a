package common

const (
	// KeyLogHookSendAlert marks a log entry for Telegram mirroring.
	KeyLogHookSendAlert = "log_hook_send_alert"

	// KeyLastSample caches the last successful quote per instrument code.
	KeyLastSample = "quote:last_sample:%s"
)
