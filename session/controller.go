package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/bagctl/bag"
	"go.viam.com/bagctl/timeline"
)

var (
	// ErrNoBagLoaded is returned when playback or save is requested before
	// any bag has been opened.
	ErrNoBagLoaded = errors.New("no bag is loaded")

	// ErrEmptySelection is returned when play, record, or save is requested
	// with zero topics selected.
	ErrEmptySelection = errors.New("no topics selected")
)

// A Controller owns the state of one playback/record session and turns user
// intents into Launcher actions. Play and record are independent: each is
// its own two-state machine.
//
// All launched actions are optimistic. The controller never observes exit
// codes or confirms termination; flags flip at request time.
type Controller struct {
	mu       sync.Mutex
	id       uuid.UUID
	logger   golog.Logger
	reader   bag.Reader
	launcher Launcher

	info      *bag.Info
	playSel   *Selection
	recordSel *Selection
	cfg       Config
	position  time.Duration

	playing     bool
	recording   bool
	playToken   string
	recordToken string

	// lastTopicCount implements the coarse "topic set changed" signal: a
	// snapshot only rebuilds the record selection when its size differs
	// from the previous one.
	lastTopicCount int

	now func() time.Time
}

// NewController makes a controller with no bag loaded and both state
// machines idle.
func NewController(reader bag.Reader, launcher Launcher, logger golog.Logger) *Controller {
	return &Controller{
		id:        uuid.New(),
		logger:    logger,
		reader:    reader,
		launcher:  launcher,
		playSel:   NewSelection(nil),
		recordSel: NewSelection(nil),
		cfg:       DefaultConfig(),
		now:       time.Now,
	}
}

// ID returns the id of this session.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// Open loads the bag at path, replacing any previously loaded bag. Playback
// is stopped first if running. The play selection resets to every topic in
// the bag, included, and the position resets to zero. On failure the prior
// bag and selection are left untouched.
func (c *Controller) Open(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		c.stopPlayLocked(ctx)
	}

	info, err := c.reader.ReadInfo(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "unable to open bag %q", path)
	}
	if err := info.Validate(); err != nil {
		return err
	}

	c.info = &info
	c.playSel = NewSelection(info.Topics)
	c.position = 0
	c.logger.Infow("bag opened",
		"session", c.id,
		"path", path,
		"topics", len(info.Topics),
		"duration", info.Duration())
	return nil
}

// Save asks the external filter process to rewrite the loaded bag into dst,
// keeping only the selected play topics. Playback is stopped first if
// running. With zero topics selected, no action is issued.
func (c *Controller) Save(ctx context.Context, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info == nil {
		return ErrNoBagLoaded
	}
	if c.playing {
		c.stopPlayLocked(ctx)
	}
	topics := c.playSel.Selected()
	if len(topics) == 0 {
		return ErrEmptySelection
	}
	return c.launcher.Filter(ctx, FilterRequest{Src: c.info.Path, Dst: dst, Topics: topics})
}

// StartRecord spawns a record run over the selected record topics. With
// zero topics selected, recording stays off and no action is issued.
func (c *Controller) StartRecord(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording {
		return nil
	}
	topics := c.recordSel.Selected()
	if len(topics) == 0 {
		c.recording = false
		return ErrEmptySelection
	}

	token := c.newToken("record")
	if err := c.launcher.Record(ctx, RecordRequest{Topics: topics, Token: token}); err != nil {
		return errors.Wrap(err, "unable to start record process")
	}
	c.recordToken = token
	c.recording = true
	c.logger.Debugw("record started", "session", c.id, "token", token, "topics", len(topics))
	return nil
}

// StopRecord requests the record process be killed and marks recording off.
// The kill is not confirmed; recording is off regardless of its outcome.
func (c *Controller) StopRecord(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRecordLocked(ctx)
}

func (c *Controller) stopRecordLocked(ctx context.Context) {
	if c.recording {
		if err := c.launcher.Kill(ctx, c.recordToken); err != nil {
			c.logger.Errorw("unable to kill record process", "session", c.id, "token", c.recordToken, "error", err)
		}
	}
	c.recording = false
	c.recordToken = ""
}

// StartPlay spawns a playback run of the loaded bag over the selected play
// topics, starting at the current position, or at zero when fromBeginning
// is set. An already running playback is stopped first. Without a loaded
// bag, playing stays off and no action is issued.
func (c *Controller) StartPlay(ctx context.Context, fromBeginning bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.info == nil {
		c.playing = false
		return ErrNoBagLoaded
	}
	if c.playing {
		c.stopPlayLocked(ctx)
	}
	if fromBeginning {
		c.position = 0
	}
	topics := c.playSel.Selected()
	if len(topics) == 0 {
		c.playing = false
		return ErrEmptySelection
	}

	token := c.newToken("play")
	req := PlayRequest{
		Path:         c.info.Path,
		PublishClock: c.cfg.PublishClock,
		Rate:         c.cfg.Rate,
		Start:        c.position,
		Loop:         c.cfg.Loop,
		Topics:       topics,
		Token:        token,
	}
	if err := c.launcher.Play(ctx, req); err != nil {
		return errors.Wrap(err, "unable to start play process")
	}
	c.playToken = token
	c.playing = true
	c.logger.Debugw("play started", "session", c.id, "token", token, "start", c.position)
	return nil
}

// StopPlay requests the play process be killed and marks playing off.
func (c *Controller) StopPlay(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPlayLocked(ctx)
}

func (c *Controller) stopPlayLocked(ctx context.Context) {
	if c.playing {
		if err := c.launcher.Kill(ctx, c.playToken); err != nil {
			c.logger.Errorw("unable to kill play process", "session", c.id, "token", c.playToken, "error", err)
		}
	}
	c.playing = false
	c.playToken = ""
}

// ToggleResume pauses playback if running, otherwise resumes from the
// current position.
func (c *Controller) ToggleResume(ctx context.Context) error {
	if c.IsPlaying() {
		c.StopPlay(ctx)
		return nil
	}
	return c.StartPlay(ctx, false)
}

// OnClockTick ingests an externally published clock stamp and moves the
// position to the elapsed time it represents, clamped into the bag's
// bounds. Position tracks the observed clock regardless of who is driving
// it, so a tick arriving after StopPlay is harmless.
func (c *Controller) OnClockTick(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info == nil {
		return
	}
	c.position = clampDuration(t.Sub(c.info.Begin), c.info.Duration())
}

// OnTopicSnapshot ingests the current set of live topics. The record
// selection rebuilds wholesale only when the topic count differs from the
// previous snapshot; an equal count is a no-op.
func (c *Controller) OnTopicSnapshot(topics []bag.TopicInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(topics) == c.lastTopicCount {
		return
	}
	c.lastTopicCount = len(topics)
	c.recordSel.Replace(topics)
	c.logger.Debugw("record topics replaced", "session", c.id, "topics", len(topics))
}

// SetConfig replaces the playback config wholesale. It takes effect on the
// next StartPlay, never retroactively.
func (c *Controller) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	return nil
}

// Config returns the playback config the next play run will use.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Info returns the loaded bag's metadata, if any.
func (c *Controller) Info() (bag.Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info == nil {
		return bag.Info{}, false
	}
	return *c.info, true
}

// Duration returns the loaded bag's recording span, or zero without a bag.
func (c *Controller) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durationLocked()
}

func (c *Controller) durationLocked() time.Duration {
	if c.info == nil {
		return 0
	}
	return c.info.Duration()
}

// Position returns the current playback position.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// SetPosition moves the playback position, clamped into the bag's bounds.
func (c *Controller) SetPosition(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = clampDuration(d, c.durationLocked())
}

// ScrubTo moves the playback position to the elapsed time the scrub value
// represents within r.
func (c *Controller) ScrubTo(value int, r timeline.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = timeline.ToElapsed(value, c.durationLocked(), r)
}

// ScrubPosition returns the current position expressed in r's scrub units.
func (c *Controller) ScrubPosition(r timeline.Range) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timeline.ToScrubUnits(c.position, c.durationLocked(), r)
}

// IsPlaying reports whether a play process is believed to be running.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// IsRecording reports whether a record process is believed to be running.
func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// PlayEntries returns the play topic rows in display order.
func (c *Controller) PlayEntries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playSel.Entries()
}

// RecordEntries returns the record topic rows in display order.
func (c *Controller) RecordEntries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordSel.Entries()
}

// SetPlayTopic flips one play topic's include flag.
func (c *Controller) SetPlayTopic(name string, included bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playSel.Set(name, included)
}

// SetRecordTopic flips one record topic's include flag.
func (c *Controller) SetRecordTopic(name string, included bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordSel.Set(name, included)
}

// SetAllPlay marks every play topic included or excluded.
func (c *Controller) SetAllPlay(included bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playSel.SetAll(included)
}

// SetAllRecord marks every record topic included or excluded.
func (c *Controller) SetAllRecord(included bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordSel.SetAll(included)
}

// newToken derives a process name unique enough that a kill targeting it
// cannot hit a process from an earlier run.
func (c *Controller) newToken(kind string) string {
	return fmt.Sprintf("%s_%d", kind, c.now().UnixNano())
}

func clampDuration(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}
