package schemas

// MessageType is the mandatory "type" discriminator of every channel message.
type MessageType string

func (m MessageType) String() string { return string(m) }

// Outbound message types.
const (
	MsgHello      MessageType = "hello"
	MsgPong       MessageType = "pong"
	MsgUIMap      MessageType = "uiMap"
	MsgScreenshot MessageType = "screenshot"
	MsgApplyAck   MessageType = "applyAck"
)

// Inbound message types.
const (
	MsgPing          MessageType = "ping"
	MsgGetUIMap      MessageType = "getUIMap"
	MsgGetScreenshot MessageType = "getScreenshot"
	MsgApplyTheme    MessageType = "applyTheme"
)

// DefaultScreen is the screen label used when getScreenshot names none.
const DefaultScreen = "current"

// ScreenshotPlaceholder is sent as screenshot data when no renderer is available.
const ScreenshotPlaceholder = "placeholder"

// Hello greets the controller once the channel opens. WalletType carries the
// same value as Source and exists only for controllers that predate Source.
type Hello struct {
	Type       MessageType `json:"type"`
	Source     string      `json:"source"`
	WalletType string      `json:"walletType,omitempty"`
	SessionID  string      `json:"sessionId,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// Ping is sent by either side to check liveness.
type Ping struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// Pong answers a Ping.
type Pong struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

// GetUIMap requests a fresh scan.
type GetUIMap struct {
	Type MessageType `json:"type"`
}

// UIMapReply carries a scan result.
type UIMapReply struct {
	Type MessageType `json:"type"`
	Data UIMap       `json:"data"`
}

// GetScreenshot requests a capture of the named screen.
type GetScreenshot struct {
	Type   MessageType `json:"type"`
	Screen string      `json:"screen,omitempty"`
}

// ScreenshotReply carries a data URL or ScreenshotPlaceholder.
type ScreenshotReply struct {
	Type   MessageType `json:"type"`
	Screen string      `json:"screen"`
	Data   string      `json:"data"`
}

// ApplyTheme carries a ThemePatch at the top level. Theme is an alias some
// controllers use that nests the same patch one level down.
type ApplyTheme struct {
	Type MessageType `json:"type"`
	ThemePatch
	Theme *ThemePatch `json:"theme,omitempty"`
}

// Patch returns the effective patch, preferring top-level fields.
func (a ApplyTheme) Patch() ThemePatch {
	if a.ThemePatch.IsEmpty() && a.Theme != nil {
		return *a.Theme
	}
	return a.ThemePatch
}

// ApplyAck answers an ApplyTheme.
type ApplyAck struct {
	Type MessageType `json:"type"`
	ApplyResult
}
