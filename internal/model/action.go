package model

// ActionKind distinguishes outbound requests to the transport.
type ActionKind string

const (
	ActionPublish ActionKind = "publish"
	ActionEdit    ActionKind = "edit"
)

// Action is an outbound request: publish a new message or edit a published one.
// TargetGame is set on prediction publications so the transport can bind the
// returned message reference back to the prediction.
type Action struct {
	Kind       ActionKind `json:"kind"`
	Text       string     `json:"text"`
	MessageRef MessageRef `json:"message_ref,omitempty"`
	TargetGame int        `json:"target_game,omitempty"`
}

// Publish builds a publish action.
func Publish(text string) Action {
	return Action{Kind: ActionPublish, Text: text}
}

// Edit builds an edit action for ref.
func Edit(ref MessageRef, text string) Action {
	return Action{Kind: ActionEdit, MessageRef: ref, Text: text}
}
