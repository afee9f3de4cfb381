package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried on the context logger through a request.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldBatchID identifies one upload batch
	FieldBatchID = "batch_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldOwner is the owner identity (email) a request acts for
	FieldOwner = "owner"

	// FieldDomain is the embedding domain (meme, tiktok)
	FieldDomain = "domain"

	// FieldItemURL is the public URL of the item being processed
	FieldItemURL = "item_url"

	// FieldStage is the pipeline stage of an upload item
	FieldStage = "stage"
)

// Metric fields attached per log line through Entry.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldScore is a similarity score
	FieldScore = "score"
)
