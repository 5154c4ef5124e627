package version

// App identity used in startup logs and the about command.
const (
	AppName        = "RoastBot"
	AppDescription = "Discord bot with a roasting personality and multi-server contextual memory"
	AppVersion     = "0.3.0"
)
