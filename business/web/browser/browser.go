// Package browser implements the session user interface for the web page.
// Session changes, alerts, confirmations and reloads are pushed to every
// connected page as JSON frames; confirmations are answered by the page
// through Answer.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/foundation/events"
	"github.com/ardanlabs/ethview/foundation/nameservice"
	"github.com/google/uuid"
)

// ErrUnknownPrompt is returned when answering a prompt that is not pending.
var ErrUnknownPrompt = errors.New("prompt is not pending")

// Set of frame types pushed to the page.
const (
	FrameState   = "state"
	FrameAlert   = "alert"
	FrameConfirm = "confirm"
	FrameReload  = "reload"
)

// EventHandler defines a function that is called when events
// occur while talking to the page.
type EventHandler func(v string, args ...any)

// View is the session as rendered by the page.
type View struct {
	MetaMask   bool              `json:"metaMask"`
	Connected  bool              `json:"connected"`
	LibVersion string            `json:"libVersion"`
	Accounts   []string          `json:"accounts"`
	Names      map[string]string `json:"names,omitempty"`
	ChainID    string            `json:"chainId"`
	GasPrice   string            `json:"gasPrice"`
	Balance    string            `json:"balance"`
	Ether      string            `json:"ether"`
}

// Frame is a message pushed to the page.
type Frame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Session *View  `json:"session,omitempty"`
}

// Config represents the configuration required to construct a Browser.
type Config struct {
	Evts          *events.Events
	PromptTimeout time.Duration
	MetaMask      bool
	LibVersion    string
	Names         *nameservice.NameService
	EvHandler     EventHandler
}

// Browser pushes session activity to connected pages.
type Browser struct {
	evts       *events.Events
	timeout    time.Duration
	metaMask   bool
	libVersion string
	names      *nameservice.NameService
	evHandler  EventHandler

	mu      sync.Mutex
	pending map[string]prompt
}

// prompt is a question waiting for the page's answer.
type prompt struct {
	msg    string
	answer chan bool
}

// New constructs a Browser that sends frames through the events value.
func New(cfg Config) *Browser {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	timeout := cfg.PromptTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Browser{
		evts:       cfg.Evts,
		timeout:    timeout,
		metaMask:   cfg.MetaMask,
		libVersion: cfg.LibVersion,
		names:      cfg.Names,
		evHandler:  ev,
		pending:    make(map[string]prompt),
	}
}

// View converts the session into what the page renders.
func (b *Browser) View(s session.Session) View {
	return View{
		MetaMask:   b.metaMask,
		Connected:  s.Connected,
		LibVersion: b.libVersion,
		Accounts:   s.Accounts,
		Names:      b.names.Names(s.Accounts),
		ChainID:    s.ChainID,
		GasPrice:   s.GasPrice,
		Balance:    s.Balance,
		Ether:      s.Ether(),
	}
}

// StateFrame encodes the session as a state frame.
func (b *Browser) StateFrame(s session.Session) ([]byte, error) {
	v := b.View(s)
	return json.Marshal(Frame{Type: FrameState, Session: &v})
}

// State pushes the session to every page. It has the signature of a
// session.StateHandler.
func (b *Browser) State(s session.Session) {
	data, err := b.StateFrame(s)
	if err != nil {
		b.evHandler("browser: state: ERROR: %s", err)
		return
	}

	b.evts.Send(data)
}

// Alert implements the session.UI interface.
func (b *Browser) Alert(msg string) {
	b.send(Frame{Type: FrameAlert, Message: msg})
}

// Reload implements the session.UI interface.
func (b *Browser) Reload() {
	b.send(Frame{Type: FrameReload})
}

// Confirm implements the session.UI interface. The question is pushed to
// every page and the first answer wins. A page that attaches while the
// question is open is asked too, see PromptFrames. With no answer before
// the prompt timeout the question is declined.
func (b *Browser) Confirm(ctx context.Context, msg string) bool {
	id := uuid.NewString()
	p := prompt{
		msg:    msg,
		answer: make(chan bool, 1),
	}

	b.mu.Lock()
	b.pending[id] = p
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if n := b.send(Frame{Type: FrameConfirm, ID: id, Message: msg}); n == 0 {
		b.evHandler("browser: confirm: id[%s]: waiting for a page to ask", id)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case ok := <-p.answer:
		b.evHandler("browser: confirm: id[%s]: answered[%v]", id, ok)
		return ok
	case <-ctx.Done():
		b.evHandler("browser: confirm: id[%s]: %s", id, ctx.Err())
		return false
	}
}

// PromptFrames encodes the questions still waiting for an answer so a page
// that just attached can be asked.
func (b *Browser) PromptFrames() ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := make([][]byte, 0, len(b.pending))
	for id, p := range b.pending {
		data, err := json.Marshal(Frame{Type: FrameConfirm, ID: id, Message: p.msg})
		if err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}

	return frames, nil
}

// Answer delivers the page's answer to a pending prompt.
func (b *Browser) Answer(id string, confirmed bool) error {
	b.mu.Lock()
	p, exists := b.pending[id]
	b.mu.Unlock()

	if !exists {
		return ErrUnknownPrompt
	}

	select {
	case p.answer <- confirmed:
	default:
	}

	return nil
}

func (b *Browser) send(f Frame) int {
	data, err := json.Marshal(f)
	if err != nil {
		b.evHandler("browser: send: %s: ERROR: %s", f.Type, err)
		return 0
	}

	return b.evts.Send(data)
}
