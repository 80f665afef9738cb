package pubsub

const (
	// TopicImportCompleted receives one event per finished import run.
	TopicImportCompleted = "topic-import-completed"

	EventTypeImportCompleted = "com.fitglue.import.completed"
	EventSourceUploader      = "/integrations/strava-uploader"
)
