package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldAudioKey is the standardized structured logging key for audio key identifiers.
	FieldAudioKey = "audio_key"
	// FieldURL is the standardized structured logging key for remote locators.
	FieldURL = "url"
	// FieldPath is the standardized structured logging key for local paths.
	FieldPath = "path"
	// FieldPlaylist is the standardized structured logging key for playlist names.
	FieldPlaylist = "playlist"
	// FieldCycleID is the standardized structured logging key for sync cycle correlation ids.
	FieldCycleID = "cycle_id"
	// FieldState is the standardized structured logging key for sync state names.
	FieldState = "state"
)
