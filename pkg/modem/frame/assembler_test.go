package frame

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniclink/soniclink/pkg/modem"
)

type feeder struct {
	a   *Assembler
	now time.Time
}

func newFeeder(cfg AssemblerConfig) *feeder {
	return &feeder{
		a:   NewAssembler(cfg, zerolog.Nop()),
		now: time.Unix(1700000000, 0),
	}
}

// feed pushes bits as clean, full-quality detections one symbol period
// apart, returning every decoded message.
func (f *feeder) feed(bits []byte) []string {
	var out []string
	for _, bit := range bits {
		d := modem.Decision{Symbol: modem.SymbolZero, Quality: 100, SNR: 50}
		if bit == 1 {
			d.Symbol = modem.SymbolOne
		}
		if text, ok := f.a.OnSymbol(d, f.now); ok {
			out = append(out, text)
		}
		f.now = f.now.Add(100 * time.Millisecond)
	}
	return out
}

func (f *feeder) feedNone(count int) {
	for i := 0; i < count; i++ {
		f.a.OnSymbol(modem.Decision{Symbol: modem.SymbolNone}, f.now)
		f.now = f.now.Add(100 * time.Millisecond)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, text := range []string{"hi", "a", "hello world", "Tuning: 50%?"} {
		t.Run(text, func(t *testing.T) {
			bits, err := Build(text)
			require.NoError(t, err)

			f := newFeeder(DefaultAssemblerConfig())
			got := f.feed(bits)

			require.Equal(t, []string{text}, got)
			assert.Zero(t, f.a.BufferedBits(), "consumed frame must leave no bits behind")
			assert.Equal(t, StateSearching, f.a.State())
		})
	}
}

func TestRoundTripConcrete(t *testing.T) {
	// "hi" -> PREAMBLE 10101010, payload 01101000 01101001, TERMINATOR.
	bits := []byte{
		1, 0, 1, 0, 1, 0, 1, 0,
		0, 1, 1, 0, 1, 0, 0, 0,
		0, 1, 1, 0, 1, 0, 0, 1,
		1, 1, 1, 1, 1, 1, 1, 1,
	}
	f := newFeeder(DefaultAssemblerConfig())
	assert.Equal(t, []string{"hi"}, f.feed(bits))
}

func TestBackToBackFrames(t *testing.T) {
	first, err := Build("one")
	require.NoError(t, err)
	second, err := Build("two")
	require.NoError(t, err)

	f := newFeeder(DefaultAssemblerConfig())
	got := f.feed(append(first, second...))
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestSyncEvents(t *testing.T) {
	var syncs, frames int
	f := newFeeder(DefaultAssemblerConfig())
	f.a.Events = Events{
		SyncFound:    func() { syncs++ },
		FrameDecoded: func(string) { frames++ },
	}

	bits, err := Build("hi")
	require.NoError(t, err)
	f.feed(bits)

	assert.Equal(t, 1, syncs)
	assert.Equal(t, 1, frames)
}

func TestNoiseNeverDecodes(t *testing.T) {
	f := newFeeder(DefaultAssemblerConfig())

	// Pure dropouts accumulate nothing.
	f.feedNone(50)
	assert.Zero(t, f.a.BufferedBits())

	// Low-quality detections without a confirmation chain are rejected.
	for i := 0; i < 50; i++ {
		_, ok := f.a.OnSymbol(modem.Decision{Symbol: modem.SymbolOne, Quality: 40}, f.now)
		assert.False(t, ok)
		f.now = f.now.Add(time.Second) // too far apart to corroborate
	}
	assert.Zero(t, f.a.BufferedBits())
	assert.Equal(t, StateSearching, f.a.State())
}

func TestConfirmationChainAcceptsLowQuality(t *testing.T) {
	f := newFeeder(DefaultAssemblerConfig())

	// A high-confidence detection bootstraps the chain.
	f.a.OnSymbol(modem.Decision{Symbol: modem.SymbolOne, Quality: 95}, f.now)
	f.now = f.now.Add(100 * time.Millisecond)
	require.Equal(t, 1, f.a.BufferedBits())

	// A weak detection right behind it is corroborated.
	f.a.OnSymbol(modem.Decision{Symbol: modem.SymbolZero, Quality: 20}, f.now)
	assert.Equal(t, 2, f.a.BufferedBits())

	// After a long gap the same weak detection is rejected again.
	f.now = f.now.Add(5 * time.Second)
	f.a.OnSymbol(modem.Decision{Symbol: modem.SymbolZero, Quality: 20}, f.now)
	assert.Equal(t, 2, f.a.BufferedBits())
}

func TestPartialFrameStaysSynchronized(t *testing.T) {
	bits := append([]byte{}, Preamble...)
	payload, err := EncodeText("abc")
	require.NoError(t, err)
	bits = append(bits, payload...)

	f := newFeeder(DefaultAssemblerConfig())
	got := f.feed(bits)

	assert.Empty(t, got)
	assert.Equal(t, StateSynchronized, f.a.State())
	assert.Equal(t, len(Preamble)+len(payload), f.a.BufferedBits())
}

func TestFalseTerminatorIsSkipped(t *testing.T) {
	bits := append([]byte{}, Preamble...)
	bits = append(bits, byteToBits(0x06)...) // not printable
	bits = append(bits, Terminator...)       // false end marker
	bits = append(bits, byteToBits(0x07)...)
	bits = append(bits, Terminator...)

	f := newFeeder(DefaultAssemblerConfig())
	got := f.feed(bits)

	// Neither terminator closes a printable payload, so nothing is
	// emitted and the synchronizer keeps waiting for more data.
	assert.Empty(t, got)
	assert.Equal(t, StateSynchronized, f.a.State())
}

func TestMisalignedTerminatorDoesNotEmitPartial(t *testing.T) {
	// A noise burst of ones right after a payload byte forms a terminator
	// pattern at a non-byte boundary. The partial prefix must not decode.
	bits := append([]byte{}, Preamble...)
	bits = append(bits, 0, 1, 1, 0) // half a byte
	bits = append(bits, Terminator...)

	f := newFeeder(DefaultAssemblerConfig())
	got := f.feed(bits)

	assert.Empty(t, got)
	assert.Equal(t, StateSynchronized, f.a.State())
}

func TestBufferBound(t *testing.T) {
	cfg := DefaultAssemblerConfig()
	f := newFeeder(cfg)

	// All zeros can never contain the preamble, so nothing is consumed.
	for i := 0; i < cfg.MaxBufferBits*3; i++ {
		f.feed([]byte{0})
		assert.LessOrEqual(t, f.a.BufferedBits(), cfg.MaxBufferBits)
	}
}

func TestResyncAfterOverflow(t *testing.T) {
	cfg := DefaultAssemblerConfig()
	f := newFeeder(cfg)

	// Bury the buffer in zeros, then send a clean frame. The trim keeps
	// only the newest tail, so the fresh preamble still synchronizes.
	f.feed(make([]byte, cfg.MaxBufferBits+10))

	bits, err := Build("hi")
	require.NoError(t, err)
	got := f.feed(bits)
	assert.Equal(t, []string{"hi"}, got)
}

func TestResetDiscardsEverything(t *testing.T) {
	f := newFeeder(DefaultAssemblerConfig())
	f.feed(Preamble)
	require.Equal(t, StateSynchronized, f.a.State())

	f.a.Reset()
	assert.Zero(t, f.a.BufferedBits())
	assert.Equal(t, StateSearching, f.a.State())
}
