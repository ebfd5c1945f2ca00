package diag

// Report is the outcome of one conversion run.
type Report struct {
	// Root is the output root directory.
	Root string

	// Planned is the number of non-root nodes in the write plan.
	Planned int

	// Materialized is the number of non-root nodes written successfully.
	Materialized int

	// ManifestWritten is true when the manifest reached disk.
	ManifestWritten bool

	// Failures are the fatal errors, in document order.
	Failures []*Error

	// Warnings are dropped properties and other non-fatal conditions, in
	// document order.
	Warnings []*Error

	// Notices are informational conditions such as class fallbacks.
	Notices []*Error
}

// Add files err under its severity.
func (r *Report) Add(err *Error) {
	switch err.Severity() {
	case SeverityFatal:
		r.Failures = append(r.Failures, err)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, err)
	default:
		r.Notices = append(r.Notices, err)
	}
}

// Failed reports whether any fatal error occurred.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// Err returns nil on success and a *RunError listing every failure
// otherwise.
func (r *Report) Err() error {
	if !r.Failed() {
		return nil
	}
	return &RunError{Failures: r.Failures}
}

// Cancelled reports whether the run was aborted.
func (r *Report) Cancelled() bool {
	for _, f := range r.Failures {
		if f.Code == CodeCancelled {
			return true
		}
	}
	return false
}
