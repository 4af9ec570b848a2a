package ctf

// Signal is a proctoring observation reported by the client environment or
// a user decision taken on the exit prompt.
type Signal string

const (
	SignalExclusiveEntered Signal = "exclusive_entered"
	SignalExclusiveDenied  Signal = "exclusive_denied"
	SignalFocusLost        Signal = "focus_lost"
	SignalVisibilityLost   Signal = "visibility_lost"
	SignalExclusiveExited  Signal = "exclusive_exited"
	SignalContextMenu      Signal = "context_menu"
	SignalSuspiciousInput  Signal = "suspicious_input"
	SignalOverlayDetected  Signal = "overlay_detected"
	SignalStay             Signal = "stay"
	SignalExit             Signal = "exit"
)

func (s Signal) Valid() bool {
	switch s {
	case SignalExclusiveEntered, SignalExclusiveDenied, SignalFocusLost,
		SignalVisibilityLost, SignalExclusiveExited, SignalContextMenu,
		SignalSuspiciousInput, SignalOverlayDetected, SignalStay, SignalExit:
		return true
	}
	return false
}

// Penalized reports whether the signal adds one to the tamper count.
func (s Signal) Penalized() bool {
	switch s {
	case SignalFocusLost, SignalVisibilityLost, SignalExclusiveExited,
		SignalContextMenu, SignalSuspiciousInput, SignalOverlayDetected:
		return true
	}
	return false
}

// Event is one signal with optional detail: the key chord for
// SignalSuspiciousInput or the element descriptor for SignalOverlayDetected.
type Event struct {
	Signal Signal `json:"signal"`
	Detail string `json:"detail,omitempty"`
}

type EffectKind string

const (
	EffectStartAttempt     EffectKind = "start_attempt"
	EffectAbortStart       EffectKind = "abort_start"
	EffectShowRetry        EffectKind = "show_retry"
	EffectPersistTamper    EffectKind = "persist_tamper"
	EffectRequestExclusive EffectKind = "request_exclusive"
	EffectShowExitPrompt   EffectKind = "show_exit_prompt"
	EffectHideExitPrompt   EffectKind = "hide_exit_prompt"
	EffectShowWarning      EffectKind = "show_warning"
	EffectFinalize         EffectKind = "finalize_exhausted"
	EffectReleaseExclusive EffectKind = "release_exclusive"
	EffectEventEnded       EffectKind = "event_ended"
)

// Effect is an instruction produced by the monitor for the session driver.
type Effect struct {
	Kind        EffectKind `json:"kind"`
	TamperCount int        `json:"tamperCount,omitempty"`
	Message     string     `json:"message,omitempty"`
}

type MonitorState string

const (
	MonitorPending   MonitorState = "pending"
	MonitorActive    MonitorState = "active"
	MonitorPrompting MonitorState = "prompting"
	MonitorClosed    MonitorState = "closed"
)

const (
	msgExclusiveDenied = "Fullscreen was blocked by the browser. Allow fullscreen and try again."
	msgContextMenu     = "Right-click is disabled during a challenge. This has been recorded."
	msgSuspiciousInput = "Assistant shortcuts are not allowed during a challenge. This has been recorded."
	msgOverlay         = "An assistant overlay was detected on this page. This has been recorded."
	msgExitPrompt      = "You left fullscreen. Stay to continue, or exit to give up this challenge for good."
)

// Monitor is the proctoring reducer for one attempt. It starts pending until
// exclusive viewing mode is entered, counts qualifying signals while the
// attempt is live and ignores everything once closed. The tamper count never
// decreases.
type Monitor struct {
	state  MonitorState
	tamper int
}

// NewMonitor returns a pending monitor seeded with an already persisted
// tamper count.
func NewMonitor(tamperCount int) *Monitor {
	return &Monitor{state: MonitorPending, tamper: tamperCount}
}

func (m *Monitor) State() MonitorState { return m.state }

func (m *Monitor) TamperCount() int { return m.tamper }

// Resume moves a pending monitor straight to active, used when the attempt
// already started in an earlier connection.
func (m *Monitor) Resume() {
	if m.state == MonitorPending {
		m.state = MonitorActive
	}
}

// Close tears the monitor down; later signals are ignored.
func (m *Monitor) Close() { m.state = MonitorClosed }

// Apply feeds one event through the monitor and returns the effects the
// session driver must carry out, in order.
func (m *Monitor) Apply(ev Event) []Effect {
	switch m.state {
	case MonitorClosed:
		return nil
	case MonitorPending:
		return m.applyPending(ev)
	}

	if ev.Signal.Penalized() && !Qualifies(ev) {
		return nil
	}

	switch ev.Signal {
	case SignalExclusiveExited:
		m.state = MonitorPrompting
		return []Effect{
			m.penalize(),
			{Kind: EffectRequestExclusive},
			{Kind: EffectShowExitPrompt, Message: msgExitPrompt},
		}
	case SignalFocusLost, SignalVisibilityLost:
		return []Effect{m.penalize()}
	case SignalContextMenu:
		return []Effect{m.penalize(), {Kind: EffectShowWarning, Message: msgContextMenu}}
	case SignalSuspiciousInput:
		return []Effect{m.penalize(), {Kind: EffectShowWarning, Message: msgSuspiciousInput}}
	case SignalOverlayDetected:
		return []Effect{m.penalize(), {Kind: EffectShowWarning, Message: msgOverlay}}
	case SignalExclusiveDenied:
		return []Effect{{Kind: EffectShowRetry, Message: msgExclusiveDenied}}
	case SignalStay:
		if m.state == MonitorPrompting {
			m.state = MonitorActive
			return []Effect{{Kind: EffectHideExitPrompt}}
		}
	case SignalExit:
		m.state = MonitorClosed
		return []Effect{{Kind: EffectFinalize}, {Kind: EffectReleaseExclusive}}
	}
	return nil
}

func (m *Monitor) applyPending(ev Event) []Effect {
	switch ev.Signal {
	case SignalExclusiveEntered:
		m.state = MonitorActive
		return []Effect{{Kind: EffectStartAttempt}}
	case SignalExclusiveDenied:
		return []Effect{{Kind: EffectShowRetry, Message: msgExclusiveDenied}}
	case SignalExit:
		m.state = MonitorClosed
		return []Effect{{Kind: EffectAbortStart}}
	}
	return nil
}

func (m *Monitor) penalize() Effect {
	m.tamper++
	return Effect{Kind: EffectPersistTamper, TamperCount: m.tamper}
}

// Qualifies filters heuristic signals through the server-side denylists.
// An empty detail means the client already classified the event.
func Qualifies(ev Event) bool {
	if ev.Detail == "" {
		return true
	}
	switch ev.Signal {
	case SignalSuspiciousInput:
		return IsSuspiciousChord(ev.Detail)
	case SignalOverlayDetected:
		return IsOverlayDescriptor(ev.Detail)
	}
	return true
}
