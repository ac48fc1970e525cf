package printer

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpad/device/pokkenpad"
	"inkpad/internal/abortline"
)

// testImage is an in-memory raster for driving the sequencer in tests.
type testImage struct {
	px [CanvasHeight][CanvasWidth]bool
}

func (t *testImage) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= CanvasWidth || y >= CanvasHeight {
		return false
	}
	return t.px[y][x]
}

func speckled(seed int64, density float64) *testImage {
	img := &testImage{}
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < CanvasHeight; y++ {
		for x := 0; x < CanvasWidth; x++ {
			img.px[y][x] = rng.Float64() < density
		}
	}
	// The home cell is the one spot the sweep never lands on.
	img.px[0][0] = false
	return img
}

// fastSync shortens the sync phases so draw tests don't grind through six
// seconds of modeled pairing.
func fastSync(cfg Config) Config {
	cfg.ControllerSync = 32 * time.Millisecond
	cfg.PositionSync = 32 * time.Millisecond
	return cfg
}

// logicalStep computes one command and drains its echo replays.
func logicalStep(p *Printer, abort bool) pokkenpad.Report {
	r := p.Tick(abort)
	for i := 0; i < p.Config().Echoes; i++ {
		p.Tick(false)
	}
	return r
}

func advanceTo(t *testing.T, p *Printer, phase Phase, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if p.Phase() == phase {
			return
		}
		logicalStep(p, false)
	}
	require.Equal(t, phase, p.Phase(), "phase not reached within %d logical ticks", limit)
}

func TestEchoReplaysByteIdentical(t *testing.T) {
	p := New(nil, Config{Echoes: 3})

	for i := 0; i < 50; i++ {
		first := p.Tick(false)
		tickBefore := p.Snapshot().PhaseTick
		for e := 0; e < 3; e++ {
			echo := p.Tick(false)
			assert.Equal(t, first.Bytes(), echo.Bytes())
		}
		assert.Equal(t, tickBefore, p.Snapshot().PhaseTick, "state advanced during echo")
	}
}

func TestTicksConversion(t *testing.T) {
	cfg := Config{Echoes: 3, PollInterval: 8 * time.Millisecond}.withDefaults()
	assert.Equal(t, 62, cfg.Ticks(2*time.Second))
	assert.Equal(t, 125, cfg.Ticks(4*time.Second))

	// Polling faster than the host samples doesn't shrink logical time.
	fast := Config{Echoes: 3, PollInterval: time.Millisecond}.withDefaults()
	assert.Equal(t, 62, fast.Ticks(2*time.Second))

	four := Config{Echoes: 4}.withDefaults()
	assert.Equal(t, 50, four.Ticks(2*time.Second))
}

func TestEchoDefaults(t *testing.T) {
	assert.Equal(t, DefaultEchoes, New(nil, Config{}).Config().Echoes)
	assert.Equal(t, DefaultEchoesFrameAlign, New(nil, Config{FrameAlign: true}).Config().Echoes)
	assert.Equal(t, 2, New(nil, Config{Echoes: 2}).Config().Echoes)
}

func TestSyncControllerTimeline(t *testing.T) {
	p := New(nil, Config{Echoes: 3})

	var pressed []int
	for i := 1; i <= 62; i++ {
		r := logicalStep(p, false)
		if r.Buttons != 0 {
			pressed = append(pressed, i)
			if i <= 32 {
				assert.Equal(t, pokkenpad.ButtonL|pokkenpad.ButtonR, r.Buttons)
			} else {
				assert.Equal(t, pokkenpad.ButtonA, r.Buttons)
			}
		}
		assert.Equal(t, PhaseSyncController, p.Phase())
	}
	assert.Equal(t, []int{16, 32, 47}, pressed)

	// The closing confirm rides the transition tick.
	r := logicalStep(p, false)
	assert.Equal(t, pokkenpad.ButtonA, r.Buttons)
	assert.Equal(t, PhaseSyncPosition, p.Phase())
	assert.Equal(t, Cursor{}, p.Snapshot().Cursor)
}

func TestSyncPositionHomesAndClears(t *testing.T) {
	p := New(nil, Config{Echoes: 3})
	advanceTo(t, p, PhaseSyncPosition, 100)

	var clicks []int
	for i := 1; i <= 126; i++ {
		require.Equal(t, PhaseSyncPosition, p.Phase())
		r := logicalStep(p, false)
		assert.Equal(t, pokkenpad.StickMin, r.LX)
		assert.Equal(t, pokkenpad.StickMin, r.LY)
		if r.Buttons&pokkenpad.ButtonLClick != 0 {
			clicks = append(clicks, i)
		}
	}
	assert.Equal(t, []int{47, 94}, clicks)
	assert.Equal(t, PhaseDraw, p.Phase())
	assert.Equal(t, Cursor{}, p.Snapshot().Cursor)
}

func TestDrawFirstSteps(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)

	wantHats := []uint8{
		pokkenpad.HatDown, pokkenpad.HatRight, pokkenpad.HatUp,
		pokkenpad.HatRight, pokkenpad.HatDown, pokkenpad.HatRight,
	}
	wantCursors := []Cursor{{0, 1}, {1, 1}, {1, 0}, {2, 0}, {2, 1}, {3, 1}}
	for i, want := range wantHats {
		r := logicalStep(p, false)
		assert.Equal(t, want, r.Hat, "step %d", i)
		assert.Equal(t, wantCursors[i], p.Snapshot().Cursor, "step %d", i)
	}
}

func TestSweepTurnaround(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)

	var hats []uint8
	for i := 0; i < sweepLen; i++ {
		hats = append(hats, logicalStep(p, false).Hat)
	}

	// Two down steps, each followed by a pause.
	assert.Equal(t, pokkenpad.HatDown, hats[sweepTurnFirst])
	assert.Equal(t, pokkenpad.HatCenter, hats[sweepTurnFirst+1])
	assert.Equal(t, pokkenpad.HatDown, hats[sweepTurnSecond])
	assert.Equal(t, pokkenpad.HatCenter, hats[sweepTurnSecond+1])

	snap := p.Snapshot()
	assert.Equal(t, 0, snap.Sweep)
	assert.Equal(t, sweepLen, snap.Command)
	assert.Equal(t, Cursor{X: CanvasWidth - 1, Y: 2}, snap.Cursor)

	// Wrapping into the second pair: step down, then head left.
	assert.Equal(t, pokkenpad.HatDown, logicalStep(p, false).Hat)
	assert.Equal(t, 1, p.Snapshot().Sweep)
	assert.Equal(t, pokkenpad.HatLeft, logicalStep(p, false).Hat)
}

func TestSweepPeriodicity(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)

	sweeps := make([][]uint8, 3)
	for s := range sweeps {
		for i := 0; i < sweepLen; i++ {
			sweeps[s] = append(sweeps[s], logicalStep(p, false).Hat)
		}
	}
	assert.Equal(t, sweeps[0], sweeps[2], "hat sequence must repeat every two sweeps")
	assert.NotEqual(t, sweeps[0], sweeps[1])
}

func TestCursorStaysOnCanvas(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)

	for i := 0; i < 3*sweepLen; i++ {
		logicalStep(p, false)
		c := p.Snapshot().Cursor
		require.GreaterOrEqual(t, c.X, 0)
		require.Less(t, c.X, CanvasWidth)
		require.GreaterOrEqual(t, c.Y, 0)
		require.Less(t, c.Y, CanvasHeight)
	}
}

func TestBlankCanvasRunsToCompletion(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)

	for i := 0; i < sweepLen*sweepCount; i++ {
		logicalStep(p, false)
		require.Equal(t, PhaseDraw, p.Phase(), "finished early at logical tick %d", i)
	}
	r := logicalStep(p, false)
	assert.Equal(t, PhaseDone, p.Phase())
	assert.Equal(t, pokkenpad.Neutral(), r)
	assert.Zero(t, p.Snapshot().Inked)
}

func TestDoneBypassesEcho(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)
	for p.Phase() != PhaseDone {
		logicalStep(p, false)
	}

	snap := p.Snapshot()
	assert.Zero(t, snap.Echoes)
	for i := 0; i < 10; i++ {
		assert.Equal(t, pokkenpad.Neutral(), p.Tick(false))
	}
	assert.Equal(t, snap.Polls+10, p.Snapshot().Polls)
	assert.Equal(t, float64(1), p.Snapshot().Progress())
}

func TestAbortReturnsToHoming(t *testing.T) {
	p := New(speckled(7, 0.3), fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)
	for i := 0; i < 2*sweepLen; i++ {
		logicalStep(p, false)
	}
	require.Equal(t, PhaseDraw, p.Phase())

	r := logicalStep(p, true)
	assert.Equal(t, pokkenpad.Neutral(), r)
	assert.Equal(t, PhaseSyncPosition, p.Phase())

	snap := p.Snapshot()
	assert.Zero(t, snap.Sweep)
	assert.Zero(t, snap.Command)
	assert.Equal(t, Cursor{}, snap.Cursor)

	// The run restarts cleanly from homing.
	advanceTo(t, p, PhaseDraw, 200)
	assert.Equal(t, pokkenpad.HatDown, logicalStep(p, false).Hat)
}

// TestAbortIgnoredOutsideDraw: the abort line only matters while drawing.
func TestAbortIgnoredOutsideDraw(t *testing.T) {
	p := New(nil, Config{Echoes: 3})
	for i := 0; i < 20; i++ {
		logicalStep(p, true)
	}
	assert.Equal(t, PhaseSyncController, p.Phase())
}

func TestFrameAlignInjection(t *testing.T) {
	p := New(nil, Config{FrameAlign: true})
	require.Equal(t, 3, p.Config().Echoes)

	var reports []pokkenpad.Report
	for i := 0; i < 50; i++ {
		reports = append(reports, p.Tick(false))
	}

	// Poll 13 of each 25-poll window replays the previous report without
	// advancing anything: 24 polls of commands per window, so 50 polls
	// carry 12 logical ticks worth of progress.
	assert.Equal(t, reports[11].Bytes(), reports[12].Bytes())
	assert.Equal(t, reports[36].Bytes(), reports[37].Bytes())
	assert.Equal(t, 12, p.Snapshot().PhaseTick)
}

func TestFrameAlignPreservesPhaseTiming(t *testing.T) {
	// ticks(2s) is the same 62 with E=3, so the pairing phase still ends
	// after 63 logical ticks; the injections only stretch wall time.
	p := New(nil, Config{FrameAlign: true})
	polls := 0
	for p.Phase() == PhaseSyncController {
		p.Tick(false)
		polls++
		require.Less(t, polls, 400)
	}
	// 62 full logical groups of 4 polls, the 63rd compute, and the ten
	// injections interleaved along the way.
	assert.Equal(t, 62*4+1+10, polls)
}

func TestSkipBlanksJumpGeometry(t *testing.T) {
	img := &testImage{} // fully blank
	p := New(img, fastSync(Config{Echoes: 3, SkipBlanks: true}))
	advanceTo(t, p, PhaseDraw, 100)

	// First tick jumps: full primary deflection, one-count secondary.
	r := logicalStep(p, false)
	assert.Equal(t, pokkenpad.HatCenter, r.Hat)
	assert.Equal(t, pokkenpad.StickMax, r.LX)
	assert.Equal(t, pokkenpad.StickCenter+1, r.LY)
	assert.Equal(t, Cursor{X: 4, Y: 0}, p.Snapshot().Cursor)
	assert.Equal(t, 8, p.Snapshot().Command)

	// Second tick is the forced stop: centered, no counter progress.
	r = logicalStep(p, false)
	assert.Equal(t, pokkenpad.HatCenter, r.Hat)
	assert.Equal(t, pokkenpad.StickCenter, r.LX)
	assert.Equal(t, Cursor{X: 4, Y: 0}, p.Snapshot().Cursor)
	assert.Equal(t, 8, p.Snapshot().Command)

	// Third tick jumps again with the secondary sign flipped.
	r = logicalStep(p, false)
	assert.Equal(t, pokkenpad.StickMax, r.LX)
	assert.Equal(t, pokkenpad.StickCenter-1, r.LY)
	assert.Equal(t, Cursor{X: 8, Y: 0}, p.Snapshot().Cursor)
}

func TestSkipBlanksHoldsNearInk(t *testing.T) {
	img := &testImage{}
	img.px[1][2] = true // inside the first lookahead window
	p := New(img, fastSync(Config{Echoes: 3, SkipBlanks: true}))
	advanceTo(t, p, PhaseDraw, 100)

	r := logicalStep(p, false)
	assert.Equal(t, pokkenpad.HatDown, r.Hat)
	assert.Equal(t, pokkenpad.StickCenter, r.LX)
	assert.Equal(t, Cursor{X: 0, Y: 1}, p.Snapshot().Cursor)
}

func TestSkipBlanksGuardNearTurnaround(t *testing.T) {
	img := &testImage{}
	p := New(img, fastSync(Config{Echoes: 3, SkipBlanks: true}))
	advanceTo(t, p, PhaseDraw, 100)

	// Run one full sweep; no jump may start past the guard, so the
	// turnaround sequence must come out untouched.
	sawGuardHold := false
	for {
		before := p.Snapshot().Command
		if before == sweepLen {
			break
		}
		r := logicalStep(p, false)
		if before > skipGuard && before < sweepTurnFirst {
			sawGuardHold = true
			assert.Equal(t, pokkenpad.StickCenter, r.LX, "jump started past guard at %d", before)
		}
	}
	assert.True(t, sawGuardHold)
	assert.Equal(t, Cursor{X: CanvasWidth - 1, Y: 2}, p.Snapshot().Cursor)
}

// canvas emulates the host side: one registered command per logical report,
// same clamped single-cell moves, ink on confirm, analog jumps as the
// 4-cell hop the host performs when both axes leave center.
type canvas struct {
	px     [CanvasHeight][CanvasWidth]bool
	cursor Cursor
}

func (c *canvas) apply(r pokkenpad.Report) {
	switch {
	case r.LX == pokkenpad.StickMax && r.LY != pokkenpad.StickCenter:
		c.cursor.X += 4
	case r.LX == pokkenpad.StickMin && r.LY != pokkenpad.StickCenter:
		c.cursor.X -= 4
	default:
		c.cursor.move(r.Hat)
	}
	if r.Buttons&pokkenpad.ButtonA != 0 {
		c.px[c.cursor.Y][c.cursor.X] = true
	}
}

func printToCanvas(t *testing.T, img *testImage, cfg Config) *canvas {
	t.Helper()
	p := New(img, fastSync(cfg))
	advanceTo(t, p, PhaseDraw, 100)

	cv := &canvas{}
	limit := 2 * sweepLen * sweepCount
	for i := 0; i < limit; i++ {
		r := logicalStep(p, false)
		if p.Phase() == PhaseDone {
			return cv
		}
		cv.apply(r)
	}
	t.Fatal("print did not finish")
	return nil
}

func assertReproduced(t *testing.T, img *testImage, cv *canvas) {
	t.Helper()
	for y := 0; y < CanvasHeight; y++ {
		for x := 0; x < CanvasWidth; x++ {
			require.Equal(t, img.px[y][x], cv.px[y][x], "pixel (%d,%d)", x, y)
		}
	}
}

func TestPrintReproducesImage(t *testing.T) {
	img := speckled(42, 0.25)
	assertReproduced(t, img, printToCanvas(t, img, Config{Echoes: 3}))
}

func TestPrintReproducesImageWithSkipBlanks(t *testing.T) {
	img := speckled(43, 0.05)
	assertReproduced(t, img, printToCanvas(t, img, Config{Echoes: 3, SkipBlanks: true}))
}

func TestPrintReproducesDenseImageWithSkipBlanks(t *testing.T) {
	img := speckled(44, 0.6)
	assertReproduced(t, img, printToCanvas(t, img, Config{Echoes: 3, SkipBlanks: true}))
}

func TestReset(t *testing.T) {
	p := New(speckled(9, 0.2), fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)
	for i := 0; i < 100; i++ {
		logicalStep(p, false)
	}
	polls := p.Snapshot().Polls

	p.Reset()
	snap := p.Snapshot()
	assert.Equal(t, PhaseSyncController, snap.Phase)
	assert.Zero(t, snap.PhaseTick)
	assert.Zero(t, snap.Command)
	assert.Zero(t, snap.Sweep)
	assert.Zero(t, snap.Inked)
	assert.Equal(t, Cursor{}, snap.Cursor)
	assert.Equal(t, polls, snap.Polls, "cumulative poll count survives a reset")
}

func TestProgress(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	assert.Zero(t, p.Snapshot().Progress())

	advanceTo(t, p, PhaseDraw, 100)
	assert.Zero(t, p.Snapshot().Progress())

	for i := 0; i < sweepLen*sweepCount/2; i++ {
		logicalStep(p, false)
	}
	prog := p.Snapshot().Progress()
	assert.InDelta(t, 0.5, prog, 0.01)
}

func TestDriverSamplesAbortOncePerTick(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(nil, fastSync(Config{Echoes: 3}))

	calls := 0
	d := NewDriver(p, func() bool { calls++; return false }, logger)

	var _ pokkenpad.ReportSource = d

	for i := 0; i < 10; i++ {
		d.NextReport()
	}
	assert.Equal(t, 10, calls)
	assert.EqualValues(t, 10, d.Snapshot().Polls)
}

func TestDriverAbortAndReset(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(nil, fastSync(Config{Echoes: 3}))

	abort := false
	d := NewDriver(p, func() bool { return abort }, logger)

	for d.Snapshot().Phase != PhaseDraw {
		d.NextReport()
	}
	for i := 0; i < 4*10; i++ {
		d.NextReport()
	}

	// Hold the line across a full echo group so a compute tick samples it.
	abort = true
	for i := 0; i < 4; i++ {
		d.NextReport()
	}
	abort = false
	assert.Equal(t, PhaseSyncPosition, d.Snapshot().Phase)

	d.Reset()
	assert.Equal(t, PhaseSyncController, d.Snapshot().Phase)
}

// TestAbortLatchedAcrossEchoes: an abort raised on an echo poll must stick
// until the next computed command acts on it.
func TestAbortLatchedAcrossEchoes(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)
	p.Tick(false)

	// Three echo polls follow the compute; raise the line on the first one
	// only.
	p.Tick(true)
	p.Tick(false)
	p.Tick(false)
	require.Equal(t, PhaseDraw, p.Phase())

	p.Tick(false)
	assert.Equal(t, PhaseSyncPosition, p.Phase())
	assert.EqualValues(t, 0, p.Snapshot().Command)
}

// TestOneShotAbortDuringDraw: a single Trigger on the shared line aborts the
// pass no matter which poll of the echo group samples it.
func TestOneShotAbortDuringDraw(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(nil, fastSync(Config{Echoes: 3}))

	line := &abortline.Line{}
	d := NewDriver(p, line.Sample, logger)

	for d.Snapshot().Phase != PhaseDraw {
		d.NextReport()
	}
	for i := 0; i < 4*10; i++ {
		d.NextReport()
	}

	line.Trigger()
	for i := 0; i < 4; i++ {
		d.NextReport()
	}
	assert.Equal(t, PhaseSyncPosition, d.Snapshot().Phase)
	assert.False(t, line.Sample())
}

// TestOneShotAbortWithFrameAlign: injection polls must not consume the
// latched abort either.
func TestOneShotAbortWithFrameAlign(t *testing.T) {
	p := New(nil, fastSync(Config{FrameAlign: true}))
	require.Equal(t, 3, p.Config().Echoes)
	advanceTo(t, p, PhaseDraw, 600)

	p.Tick(true)
	for i := 0; i < 40 && p.Phase() == PhaseDraw; i++ {
		p.Tick(false)
	}
	assert.Equal(t, PhaseSyncPosition, p.Phase())
}

func TestNilImagePrintsNothing(t *testing.T) {
	p := New(nil, fastSync(Config{Echoes: 3}))
	advanceTo(t, p, PhaseDraw, 100)
	for i := 0; i < 2*sweepLen; i++ {
		r := logicalStep(p, false)
		assert.Zero(t, r.Buttons&pokkenpad.ButtonA)
	}
}
