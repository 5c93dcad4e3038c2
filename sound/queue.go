package sound

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bcm2835go/bcm2835go/internal/mathutil"
)

// Queue is the ring buffer behind Write()/GetChunk(), converting from a
// caller's write format to the device's hardware format in-line, per
// spec.md §4.3's Queue API. Grounded on
// include/circle/sound/soundbasedevice.h's AllocateQueue/
// SetWriteFormat/Write/RegisterNeedDataCallback documented contract
// (soundbasedevice.cpp implementing it is not present in the retrieved
// source, so the ring-buffer mechanics below are original, built to the
// header's documented behavior).
type Queue struct {
	mu sync.Mutex

	hwFormat   Format
	hwChannels int
	hwRangeMax int

	writeFormat   Format
	writeChannels int

	buf      []byte
	in, out  int
	size     int // bytes currently queued
	capacity int

	needDataThreshold int
	needData          func()
}

// NewQueue allocates a ring of capacityFrames hardware-format frames
// (one frame = hwChannels samples), per AllocateQueueFrames.
func NewQueue(hwFormat Format, hwChannels, hwRangeMax, capacityFrames int) *Queue {
	frameSize := SampleSize(hwFormat) * hwChannels
	capacity := frameSize * capacityFrames

	return &Queue{
		hwFormat:          hwFormat,
		hwChannels:        hwChannels,
		hwRangeMax:        hwRangeMax,
		writeFormat:       hwFormat,
		writeChannels:     hwChannels,
		buf:               make([]byte, capacity),
		capacity:          capacity,
		needDataThreshold: capacity / 2,
	}
}

// SetWriteFormat binds the layout Write() expects, per spec.md §4.3's
// legal combination set {U8,S16,S24,S24_32} x {1,2}.
func (q *Queue) SetWriteFormat(format Format, channels int) error {
	if channels != 1 && channels != 2 {
		return fmt.Errorf("sound: invalid channel count %d", channels)
	}

	switch format {
	case FormatUnsigned8, FormatSigned16, FormatSigned24, FormatSigned24_32:
	default:
		return fmt.Errorf("sound: invalid write format %d", format)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.writeFormat = format
	q.writeChannels = channels

	return nil
}

// RegisterNeedDataCallback sets fn to be called after every GetChunk that
// leaves the queued level below the threshold (half the capacity), per
// spec.md §4.3.
func (q *Queue) RegisterNeedDataCallback(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.needData = fn
}

// Write enqueues buffer, converting from the write format to the
// hardware format in-line, and returns the number of input bytes
// consumed -- which may be less than len(buffer) if the queue is full.
func (q *Queue) Write(buffer []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	inSampleSize := SampleSize(q.writeFormat)
	inFrameSize := inSampleSize * q.writeChannels
	outSampleSize := SampleSize(q.hwFormat)
	outFrameSize := outSampleSize * q.hwChannels

	consumed := 0

	for len(buffer) >= inFrameSize {
		free := q.capacity - q.size
		if free < outFrameSize {
			break
		}

		for ch := 0; ch < q.hwChannels; ch++ {
			srcCh := ch
			if srcCh >= q.writeChannels {
				srcCh = q.writeChannels - 1
			}

			raw := buffer[srcCh*inSampleSize:]
			sample := decodeSample(raw, q.writeFormat)

			out, err := ConvertSample(sample, q.writeFormat, q.hwFormat, q.hwRangeMax)
			if err != nil {
				out = 0
			}

			encodeSample(q.buf, q.in, out, q.hwFormat)
			q.in = (q.in + outSampleSize) % q.capacity
		}

		q.size += outFrameSize
		buffer = buffer[inFrameSize:]
		consumed += inFrameSize
	}

	return consumed
}

// GetChunk fills buf (a hardware-format sample buffer) by dequeuing
// previously-written, already-converted samples, filling any shortfall
// with the null frame (spec.md §4.3's underrun behavior). It always
// fills buf completely and reports len(buf).
func (q *Queue) GetChunk(buf []byte) int {
	q.mu.Lock()

	avail := mathutil.Min(q.size, len(buf))

	for i := 0; i < avail; i++ {
		buf[i] = q.buf[q.out]
		q.out = (q.out + 1) % q.capacity
	}
	q.size -= avail

	short := q.size < q.needDataThreshold
	cb := q.needData

	q.mu.Unlock()

	if avail < len(buf) {
		copy(buf[avail:], NullFrame(q.hwFormat, q.hwRangeMax, len(buf)-avail))
	}

	if short && cb != nil {
		cb()
	}

	return len(buf)
}

// FramesAvail returns the number of hardware-format frames currently
// queued, waiting to be sent.
func (q *Queue) FramesAvail() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	frameSize := SampleSize(q.hwFormat) * q.hwChannels
	if frameSize == 0 {
		return 0
	}

	return q.size / frameSize
}

func decodeSample(raw []byte, format Format) int32 {
	switch format {
	case FormatUnsigned8:
		return int32(raw[0])
	case FormatSigned16:
		return int32(int16(binary.LittleEndian.Uint16(raw)))
	case FormatSigned24:
		return int32(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16)
	case FormatSigned24_32:
		return int32(binary.LittleEndian.Uint32(raw))
	default:
		return 0
	}
}

func encodeSample(buf []byte, at int, value int32, format Format) {
	size := SampleSize(format)

	for i := 0; i < size; i++ {
		buf[(at+i)%len(buf)] = byte(uint32(value) >> (8 * uint(i)))
	}
}
