package frame

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/soniclink/soniclink/pkg/modem"
)

// State is the synchronizer's position in the frame search.
type State int

const (
	StateSearching State = iota
	StateSynchronized
)

func (s State) String() string {
	if s == StateSynchronized {
		return "synchronized"
	}
	return "searching"
}

// AssemblerConfig bounds the bit buffer and tunes the debounce filter. The
// defaults are starting points; thresholds want re-tuning against the actual
// speaker and room.
type AssemblerConfig struct {
	// MaxBufferBits caps the bit buffer; RetainTailBits is how much of the
	// newest data survives a trim.
	MaxBufferBits  int
	RetainTailBits int

	// RedetectWindow is how long a detection remains corroboration for the
	// next one. A gap longer than this means the signal genuinely stopped.
	RedetectWindow time.Duration

	// HighConfidence is the quality score at which a detection is accepted
	// without a preceding corroborating detection.
	HighConfidence int
}

func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		MaxBufferBits:  192,
		RetainTailBits: 48,
		RedetectWindow: 200 * time.Millisecond,
		HighConfidence: 85,
	}
}

// Events is the assembler's observability hook. Any field may be nil.
// Callbacks run synchronously inside OnSymbol.
type Events struct {
	SymbolAccepted func(bit byte, d modem.Decision)
	SymbolRejected func(d modem.Decision)
	SyncFound      func()
	FrameDecoded   func(text string)
}

// Assembler accumulates confirmed symbols into a bit buffer and extracts
// framed messages from it. It is owned by a single goroutine; OnSymbol must
// not be called concurrently.
type Assembler struct {
	cfg    AssemblerConfig
	logger zerolog.Logger

	// Events may be set before the first OnSymbol call.
	Events Events

	bits        []byte
	state       State
	lastAccept  time.Time
	consecutive int
}

func NewAssembler(cfg AssemblerConfig, logger zerolog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		logger: logger,
	}
}

// OnSymbol feeds one detection into the assembler and reports a decoded
// message when one completed. Called once per spectrum snapshot.
func (a *Assembler) OnSymbol(d modem.Decision, now time.Time) (string, bool) {
	if d.Symbol == modem.SymbolNone {
		// A brief dropout keeps the confirmation chain alive; a long one
		// means we are genuinely not receiving.
		if a.consecutive > 0 && now.Sub(a.lastAccept) > a.cfg.RedetectWindow {
			a.consecutive = 0
		}
		return "", false
	}

	confirmed := a.consecutive > 0 && now.Sub(a.lastAccept) <= a.cfg.RedetectWindow
	if !confirmed && d.Quality < a.cfg.HighConfidence {
		a.logger.Debug().
			Stringer("symbol", d.Symbol).
			Int("quality", d.Quality).
			Float64("snr", d.SNR).
			Msg("symbol rejected")
		if a.Events.SymbolRejected != nil {
			a.Events.SymbolRejected(d)
		}
		return "", false
	}

	if confirmed {
		a.consecutive++
	} else {
		a.consecutive = 1
	}
	a.lastAccept = now
	a.appendBit(d.Symbol.Bit())

	if a.Events.SymbolAccepted != nil {
		a.Events.SymbolAccepted(d.Symbol.Bit(), d)
	}

	return a.extract()
}

func (a *Assembler) appendBit(bit byte) {
	a.bits = append(a.bits, bit)
	if len(a.bits) <= a.cfg.MaxBufferBits {
		return
	}
	// Drop the oldest bits past the retained tail. If the preamble we were
	// anchored to is among them, the message is lost and the search starts
	// over; that is the accepted cost of bounding the buffer.
	a.bits = append(a.bits[:0:0], a.bits[len(a.bits)-a.cfg.RetainTailBits:]...)
	if a.state == StateSynchronized {
		a.logger.Debug().Msg("bit buffer overflow, dropping sync")
		a.state = StateSearching
	}
}

// extract runs the frame search over the current buffer. In SEARCHING it
// looks for a preamble and anchors the buffer there; in SYNCHRONIZED it
// walks terminator candidates until one yields a printable payload.
func (a *Assembler) extract() (string, bool) {
	if a.state == StateSearching {
		idx := indexOf(a.bits, Preamble)
		if idx < 0 {
			return "", false
		}
		a.bits = a.bits[idx:]
		a.state = StateSynchronized
		a.logger.Debug().Int("buffered", len(a.bits)).Msg("preamble found")
		if a.Events.SyncFound != nil {
			a.Events.SyncFound()
		}
	}

	body := a.bits[len(Preamble):]
	for from := 0; ; {
		t := indexOf(body[from:], Terminator)
		if t < 0 {
			return "", false
		}
		t += from

		// Trailing bits short of a full byte are a dropped or extra symbol;
		// they are discarded, never guessed.
		text, ok := decodePayload(body[:t])
		if !ok || text == "" {
			// A terminator pattern that does not close a printable payload
			// is noise inside the frame. Keep waiting for the real one.
			from = t + 1
			continue
		}

		consumed := len(Preamble) + t + len(Terminator)
		a.bits = append(a.bits[:0:0], a.bits[consumed:]...)
		a.state = StateSearching
		a.logger.Info().Str("text", text).Msg("frame decoded")
		if a.Events.FrameDecoded != nil {
			a.Events.FrameDecoded(text)
		}
		return text, true
	}
}

// Reset discards all accumulated state, equivalent to stopping and
// restarting the listen session.
func (a *Assembler) Reset() {
	a.bits = nil
	a.state = StateSearching
	a.lastAccept = time.Time{}
	a.consecutive = 0
}

// State reports the current synchronizer state.
func (a *Assembler) State() State {
	return a.state
}

// BufferedBits reports how many bits are waiting in the buffer.
func (a *Assembler) BufferedBits() int {
	return len(a.bits)
}
