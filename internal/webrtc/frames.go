package webrtc

import "github.com/nikelwish/p2p-service/internal/protocol"

// Every payload travels as one or more frames. The first byte of a frame
// says whether more of the same payload follows; data channels are ordered,
// so frames arrive in sequence.
const (
	frameLast byte = 0
	frameMore byte = 1

	// maxAssembled leaves room for the encoding around a full size file.
	maxAssembled = protocol.MaxFileSize + 64*1024
)

// splitFrames cuts data into frames carrying at most size bytes each. An
// empty payload is a single empty last frame.
func splitFrames(data []byte, size int) [][]byte {
	n := (len(data) + size - 1) / size
	if n == 0 {
		n = 1
	}
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		end := min((i+1)*size, len(data))
		chunk := data[i*size : end]

		frame := make([]byte, len(chunk)+1)
		frame[0] = frameMore
		if i == n-1 {
			frame[0] = frameLast
		}
		copy(frame[1:], chunk)
		frames = append(frames, frame)
	}
	return frames
}

// assembler joins frames back into payloads. It is fed from one goroutine.
type assembler struct {
	buf      []byte
	limit    int
	overflow bool
}

func newAssembler(limit int) *assembler {
	return &assembler{limit: limit}
}

// push adds frame and returns the payload once its last frame arrived.
// A payload over the limit is dropped and reported when it ends.
func (a *assembler) push(frame []byte) ([]byte, bool, error) {
	if len(frame) == 0 {
		return nil, false, ErrEmptyFrame
	}
	flag, chunk := frame[0], frame[1:]
	if flag != frameLast && flag != frameMore {
		a.reset()
		return nil, false, ErrUnknownFrame
	}

	if !a.overflow {
		if len(a.buf)+len(chunk) > a.limit {
			a.overflow = true
			a.buf = nil
		} else {
			a.buf = append(a.buf, chunk...)
		}
	}
	if flag == frameMore {
		return nil, false, nil
	}

	if a.overflow {
		a.reset()
		return nil, false, ErrPayloadTooLarge
	}
	payload := a.buf
	if payload == nil {
		payload = []byte{}
	}
	a.buf = nil
	return payload, true, nil
}

func (a *assembler) reset() {
	a.buf = nil
	a.overflow = false
}
