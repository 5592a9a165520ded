package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

var errNotWAV = errors.New("not a RIFF/WAVE resource")

// wavDuration reads the fmt and data chunks of a RIFF/WAVE header and
// derives the clip length from byte rate and data size.
func wavDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, errNotWAV
	}

	var byteRate uint32
	var dataSize uint32
	haveFmt := false
	haveData := false

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return 0, errNotWAV
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataSize = size
			haveData = true
		}

		if haveFmt && haveData {
			break
		}

		// Chunks are word-aligned.
		off = body + int(size)
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || !haveData || byteRate == 0 {
		return 0, errNotWAV
	}

	secs := float64(dataSize) / float64(byteRate)
	return time.Duration(secs * float64(time.Second)), nil
}
