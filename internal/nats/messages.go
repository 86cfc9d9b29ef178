package nats

const (
	// eventSubjectPrefix is the subject space job events are published
	// on, one subject per job.
	eventSubjectPrefix = "jobs.events."

	// EventWildcard matches every job's event subject.
	EventWildcard = eventSubjectPrefix + ">"
)

// EventSubject returns the subject carrying one job's events.
func EventSubject(jobID string) string {
	return eventSubjectPrefix + jobID
}
