package serialdev

import (
	"encoding/binary"
	"math"

	"emgreach/domain/emg"
)

// Frame layout:
//
//	0xA5 0x5A | channels u8 | samples u16 LE | float32 LE samples, channel-major | CRC16 BE
//
// The CRC covers everything between the sync bytes and the CRC itself.
const (
	sync0 = 0xA5
	sync1 = 0x5A

	headerSize  = 5
	trailerSize = 2

	// MaxFrameSize bounds a frame so a corrupt length cannot stall the decoder.
	MaxFrameSize = headerSize + 32*4096*4 + trailerSize
)

// CRC16 is the Klipper CCITT variant used on the serial link.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// Decoder reassembles frames from an arbitrary byte stream. Bytes that do not
// form a valid frame are dropped until the next sync pair.
type Decoder struct {
	buf     []byte
	dropped int
}

// Feed appends raw bytes from the link.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Dropped returns the number of bytes discarded while resynchronizing.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Next returns the next complete frame, or false when more bytes are needed.
func (d *Decoder) Next() (emg.ChannelBatch, bool) {
	for {
		start := d.findSync()
		if start < 0 {
			return emg.ChannelBatch{}, false
		}
		if len(d.buf) < headerSize {
			return emg.ChannelBatch{}, false
		}

		channels := int(d.buf[2])
		samples := int(binary.LittleEndian.Uint16(d.buf[3:5]))
		size := headerSize + channels*samples*4 + trailerSize
		if size > MaxFrameSize {
			d.skip(1)
			continue
		}
		if len(d.buf) < size {
			return emg.ChannelBatch{}, false
		}

		body := d.buf[2 : size-trailerSize]
		want := binary.BigEndian.Uint16(d.buf[size-trailerSize : size])
		if CRC16(body) != want {
			d.skip(1)
			continue
		}

		batch := emg.NewChannelBatch(channels, samples)
		off := headerSize
		for c := 0; c < channels; c++ {
			for s := 0; s < samples; s++ {
				batch.Samples[c][s] = float64(math.Float32frombits(binary.LittleEndian.Uint32(d.buf[off:])))
				off += 4
			}
		}
		d.consume(size)
		return batch, true
	}
}

// findSync drops bytes up to the first sync pair and returns its offset (0),
// or -1 if none is buffered. A trailing lone sync0 is kept.
func (d *Decoder) findSync() int {
	for i := 0; i+1 < len(d.buf); i++ {
		if d.buf[i] == sync0 && d.buf[i+1] == sync1 {
			d.skip(i)
			return 0
		}
	}
	if n := len(d.buf); n > 0 {
		keep := 0
		if d.buf[n-1] == sync0 {
			keep = 1
		}
		d.skip(n - keep)
	}
	return -1
}

func (d *Decoder) skip(n int) {
	d.dropped += n
	d.consume(n)
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}
