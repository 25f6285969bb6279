package domain

// ConnectionState represents the realtime channel's connection lifecycle.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnError        ConnectionState = "error"
)

// MessageType identifies the kind of envelope arriving on the push channel.
type MessageType string

const (
	MessageClaimUpdate  MessageType = "claim_update"
	MessageMetrics      MessageType = "metrics"
	MessageNotification MessageType = "notification"
	MessageHeartbeat    MessageType = "heartbeat"
)

// DocumentStatus represents the processing lifecycle of an uploaded document.
type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "pending"
	DocStatusUploading  DocumentStatus = "uploading"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether a document has finished processing, successfully or not.
func (s DocumentStatus) Terminal() bool {
	return s == DocStatusCompleted || s == DocStatusFailed
}

// ProcessingStage names the pipeline stage a document is currently in.
type ProcessingStage string

const (
	StageQueued     ProcessingStage = "queued"
	StageOCR        ProcessingStage = "ocr"
	StageParsing    ProcessingStage = "parsing"
	StageValidation ProcessingStage = "validation"
	StageDone       ProcessingStage = "done"
)

// ResolvedFromAuto marks a conflict resolution chosen automatically by
// confidence ranking rather than by a reviewer.
const ResolvedFromAuto = "auto"
