package main

// GlobalFlags holds persistent flags shared by every subcommand
type GlobalFlags struct {
	ConfigPath string
	User       string
}

// SyncFlags holds flags for the sync command (and the bare root command)
type SyncFlags struct {
	DryRun bool
}

// StatusFlags holds flags for the status command
type StatusFlags struct {
	Next int
	JSON bool
}

// HistoryFlags holds flags for the history command
type HistoryFlags struct {
	Limit int
}
