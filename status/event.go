package status

// Channel identifies which flow produced an event.
type Channel string

const (
	ChannelUpload Channel = "upload"
	ChannelWebcam Channel = "webcam"
)

// Stage is the progress point an event reports.
type Stage string

const (
	StageQueued   Stage = "queued"
	StageStart    Stage = "start"
	StageCaptured Stage = "captured"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// Event is a progress notification pushed to subscribers. It is advisory
// and never persisted.
type Event struct {
	Channel Channel `json:"channel"`
	Stage   Stage   `json:"stage"`
	Message string  `json:"message"`
	Method  string  `json:"method,omitempty"`
	File    string  `json:"file,omitempty"`
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
