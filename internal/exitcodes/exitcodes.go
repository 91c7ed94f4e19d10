package exitcodes

// Exit codes for the audio-dedupe CLI
// These codes form the operational contract with cron, systemd and operators
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file invalid or missing, or bad usage
	SafetyViolation = 3 // Safety validator blocked a deletion
	RuntimeError    = 4 // Runtime error during execution (enumeration, database)
	PartialFailure  = 5 // Sweep finished but some deletions failed
	Locked          = 6 // Another instance holds the lock
)
