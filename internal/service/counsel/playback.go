package counsel

import "github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"

// Playback is the per-view presentation state: which message is being read
// aloud and whether dictation is recording.
type Playback struct {
	SpeakingID string `json:"speakingId,omitempty"`
	Recording  bool   `json:"recording"`
}

// Playback returns the current presentation state.
func (c *Conversation) Playback() Playback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

// ToggleSpeak starts reading the message with id aloud, or stops it when it
// is already being read. It returns the speakable text and whether playback
// is now active.
func (c *Conversation) ToggleSpeak(id string) (string, bool) {
	var text string
	for _, msg := range c.log.Messages() {
		if msg.ID == id {
			text = chat.PlainText(msg.Text)
			break
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playback.SpeakingID == id || text == "" {
		c.playback.SpeakingID = ""
		return "", false
	}
	c.playback.SpeakingID = id
	return text, true
}

// FinishSpeaking clears the speaking marker once playback of id ended.
func (c *Conversation) FinishSpeaking(id string) {
	c.mu.Lock()
	if c.playback.SpeakingID == id {
		c.playback.SpeakingID = ""
	}
	c.mu.Unlock()
}

// SetRecording flips the dictation flag.
func (c *Conversation) SetRecording(on bool) {
	c.mu.Lock()
	c.playback.Recording = on
	c.mu.Unlock()
}
