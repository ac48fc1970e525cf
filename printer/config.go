package printer

import "time"

// Defaults matching the reference timing.
const (
	DefaultPollInterval   = 8 * time.Millisecond
	DefaultControllerSync = 2 * time.Second
	DefaultPositionSync   = 4 * time.Second

	// A command must outlive the slowest canvas sample to register exactly
	// once. Inside the 30 fps alignment window three replays are enough;
	// free-running hosts need four.
	DefaultEchoes           = 4
	DefaultEchoesFrameAlign = 3
)

// Config tunes the sequencer. The zero value selects the reference timing.
type Config struct {
	Echoes         int           `help:"Echo replays per logical command (0 = auto: 3 with frame alignment, 4 without)." default:"0"`
	PollInterval   time.Duration `help:"Host poll interval." default:"8ms"`
	ControllerSync time.Duration `help:"Length of the controller pairing phase." default:"2s"`
	PositionSync   time.Duration `help:"Length of the cursor homing phase." default:"4s"`
	FrameAlign     bool          `help:"Inject an extra replay every 25 reports to track a 30 fps canvas refresh."`
	SkipBlanks     bool          `help:"Cross blank regions with 4-pixel analog jumps. Requires perfect tick alignment with the host sample clock."`
}

func (c Config) withDefaults() Config {
	if c.Echoes <= 0 {
		if c.FrameAlign {
			c.Echoes = DefaultEchoesFrameAlign
		} else {
			c.Echoes = DefaultEchoes
		}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ControllerSync <= 0 {
		c.ControllerSync = DefaultControllerSync
	}
	if c.PositionSync <= 0 {
		c.PositionSync = DefaultPositionSync
	}
	return c
}

// Ticks converts a phase duration to logical ticks: one logical command
// occupies E+1 polls, and the host never samples faster than 8 ms however
// fast it is polled. Truncates toward zero.
func (c Config) Ticks(d time.Duration) int {
	poll := c.PollInterval
	if poll < 8*time.Millisecond {
		poll = 8 * time.Millisecond
	}
	return int(d / (time.Duration(c.Echoes+1) * poll))
}
