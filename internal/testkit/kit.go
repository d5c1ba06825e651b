// Package testkit provides deterministic fakes for the session's collaborators:
// a manual clock, a scripted EMG device and recording renderer, prompter,
// sink and viewer adapters.
package testkit

import (
	"context"
	"sync"
	"time"

	"emgreach/domain/emg"
	"emgreach/domain/session"
	"emgreach/domain/task"
)

// FakeClock is a manual clock. Sleep advances it instead of blocking.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep advances the clock by d unless ctx is already done
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// BatchOf builds a 16-channel batch whose control channels reduce to the
// given magnitudes in microvolts. The left value is written to channel 4,
// which the reducer reads in place of channel 2.
func BatchOf(mag emg.ChannelMagnitude, samples int) emg.ChannelBatch {
	batch := emg.NewChannelBatch(16, samples)
	fill := func(ch int, v float64) {
		for i := range batch.Samples[ch] {
			batch.Samples[ch][i] = v / emg.MicrovoltsPerVolt
		}
	}
	fill(0, mag[emg.ChannelUp])
	fill(1, mag[emg.ChannelDown])
	fill(3, mag[emg.ChannelRight])
	fill(emg.ReplacementChannel, mag[emg.ChannelLeft])
	return batch
}

// ScriptFunc chooses the batch for the nth read.
type ScriptFunc func(n int, now time.Time) emg.ChannelBatch

// ScriptedDevice implements ports.AcquisitionPort. Every Read advances the
// clock by Step so time-boxed loops terminate.
type ScriptedDevice struct {
	mu      sync.Mutex
	clock   *FakeClock
	step    time.Duration
	script  ScriptFunc
	reads   int
	started bool
	stopped bool

	// ReadErr, when set, is returned by every Read.
	ReadErr error
}

// NewScriptedDevice creates a device driven by script
func NewScriptedDevice(clock *FakeClock, step time.Duration, script ScriptFunc) *ScriptedDevice {
	return &ScriptedDevice{clock: clock, step: step, script: script}
}

// Constant returns a script that always yields the same magnitudes.
func Constant(mag emg.ChannelMagnitude) ScriptFunc {
	return func(int, time.Time) emg.ChannelBatch { return BatchOf(mag, 4) }
}

// Empty returns a script that never delivers samples.
func Empty() ScriptFunc {
	return func(int, time.Time) emg.ChannelBatch { return emg.ChannelBatch{} }
}

func (d *ScriptedDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *ScriptedDevice) Read(ctx context.Context) (emg.ChannelBatch, error) {
	d.mu.Lock()
	n := d.reads
	d.reads++
	err := d.ReadErr
	d.mu.Unlock()

	d.clock.Advance(d.step)
	if err != nil {
		return emg.ChannelBatch{}, err
	}
	return d.script(n, d.clock.Now()), nil
}

func (d *ScriptedDevice) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

// Reads returns how many reads were issued.
func (d *ScriptedDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Started reports whether Start was called.
func (d *ScriptedDevice) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Stopped reports whether Stop was called.
func (d *ScriptedDevice) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// RecordingPrompter keeps every prompt.
type RecordingPrompter struct {
	mu       sync.Mutex
	messages []string
}

func (p *RecordingPrompter) Prompt(message string) {
	p.mu.Lock()
	p.messages = append(p.messages, message)
	p.mu.Unlock()
}

// Messages returns a copy of the prompts seen so far.
func (p *RecordingPrompter) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

// RecordingRenderer implements ports.RendererPort and keeps every update.
type RecordingRenderer struct {
	mu       sync.Mutex
	canvas   task.Canvas
	Cursors  []task.Cursor
	Targets  []task.TargetZone
	HitTexts []string
	States   []session.State
}

// NewRecordingRenderer creates a renderer reporting canvas as its size
func NewRecordingRenderer(canvas task.Canvas) *RecordingRenderer {
	return &RecordingRenderer{canvas: canvas}
}

func (r *RecordingRenderer) Canvas() task.Canvas { return r.canvas }

func (r *RecordingRenderer) CursorMoved(cursor task.Cursor) {
	r.mu.Lock()
	r.Cursors = append(r.Cursors, cursor)
	r.mu.Unlock()
}

func (r *RecordingRenderer) TargetVisibility(zone task.TargetZone) {
	r.mu.Lock()
	r.Targets = append(r.Targets, zone)
	r.mu.Unlock()
}

func (r *RecordingRenderer) HitsChanged(text string) {
	r.mu.Lock()
	r.HitTexts = append(r.HitTexts, text)
	r.mu.Unlock()
}

func (r *RecordingRenderer) StateChanged(state session.State) {
	r.mu.Lock()
	r.States = append(r.States, state)
	r.mu.Unlock()
}

// LastCursor returns the most recent cursor update.
func (r *RecordingRenderer) LastCursor() (task.Cursor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Cursors) == 0 {
		return task.Cursor{}, false
	}
	return r.Cursors[len(r.Cursors)-1], true
}

// ShownTarget returns the target most recently made visible, if it is still
// the latest visibility change.
func (r *RecordingRenderer) ShownTarget() (task.TargetZone, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Targets) == 0 {
		return task.TargetZone{}, false
	}
	z := r.Targets[len(r.Targets)-1]
	return z, z.Visibility == task.Shown
}

// LastHitText returns the latest hit counter text.
func (r *RecordingRenderer) LastHitText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.HitTexts) == 0 {
		return ""
	}
	return r.HitTexts[len(r.HitTexts)-1]
}

// MemorySink implements ports.SessionSinkPort in memory.
type MemorySink struct {
	mu      sync.Mutex
	name    string
	Exports []*session.Export

	// Err, when set, fails every Save.
	Err error
}

// NewMemorySink creates a sink reporting name
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{name: name}
}

func (s *MemorySink) Name() string { return s.name }

func (s *MemorySink) Save(ctx context.Context, export *session.Export) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Exports = append(s.Exports, export)
	return "mem://" + s.name + "/" + export.Name.String(), nil
}

// Saved returns how many exports were stored.
func (s *MemorySink) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Exports)
}

// RecordingViewer implements ports.ViewerPort.
type RecordingViewer struct {
	mu     sync.Mutex
	Opened []string
}

func (v *RecordingViewer) Open(ctx context.Context, location string) error {
	v.mu.Lock()
	v.Opened = append(v.Opened, location)
	v.mu.Unlock()
	return nil
}
