package version

const (
	AppName        = "TunePilot"
	AppDescription = "Telegram voice-chat music bot with per-chat queues"
	AppVersion     = "0.4.1"
)
