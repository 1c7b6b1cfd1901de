package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge removes expired rows from the session audit table.
	TaskSessionPurge = "auth:sessions:purge"
	// TaskEventsPublish announces a change event from a process that has no
	// connected clients of its own.
	TaskEventsPublish = "events:publish"
)
