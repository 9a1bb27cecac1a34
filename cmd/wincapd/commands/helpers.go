package commands

// exitCodeFor maps a command error to the process exit code. Exit 0 is
// reserved for success; any CaptureError (or other failure) exits 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
