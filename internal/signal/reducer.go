// Package signal reduces raw per-tick sample batches to one magnitude per
// control channel.
package signal

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"emgreach/domain/core"
	"emgreach/domain/emg"
)

// Reducer turns a raw batch into rectified mean magnitudes in microvolts.
// It keeps a scratch buffer between calls and is not safe for concurrent use.
type Reducer struct {
	scratch []float64
}

// NewReducer creates a reducer
func NewReducer() *Reducer {
	return &Reducer{}
}

// Reduce computes mean(|x|)*1e6 for each control channel. Channel 2 always
// reads channel 4's samples. An empty batch returns core.ErrNoData.
func (r *Reducer) Reduce(batch emg.ChannelBatch) (emg.ChannelMagnitude, error) {
	var mag emg.ChannelMagnitude

	if batch.IsEmpty() {
		return mag, core.ErrNoData
	}
	if batch.Channels() < emg.MinBatchChannels {
		return mag, core.NewChannelLayoutError(batch.Channels(), emg.MinBatchChannels)
	}

	for _, ch := range emg.Channels() {
		src := int(ch)
		if src == emg.ReplacedChannel {
			src = emg.ReplacementChannel
		}
		samples := batch.Samples[src]
		if len(samples) == 0 {
			return mag, core.ErrNoData
		}
		mag[ch] = r.rectifiedMean(samples) * emg.MicrovoltsPerVolt
	}
	return mag, nil
}

func (r *Reducer) rectifiedMean(samples []float64) float64 {
	if cap(r.scratch) < len(samples) {
		r.scratch = make([]float64, len(samples))
	}
	abs := r.scratch[:len(samples)]
	for i, v := range samples {
		abs[i] = math.Abs(v)
	}
	return stat.Mean(abs, nil)
}
