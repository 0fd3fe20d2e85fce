// Package audio provides local sound-device I/O for the assistant: a
// microphone capture stream feeding the transcriber and a speaker playback
// sink for rendered speech, plus the PCM format conversion between them.
//
// Device access goes through ALSA command-line tools (arecord/aplay) run as
// subprocesses, keeping the binary free of cgo audio dependencies. Both ends
// can be pointed at any command that reads or writes raw little-endian int16
// PCM, which is also how the tests drive them.
package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the microphone,
// converted between formats, and played through the speaker.
type AudioFrame struct {
	// PCM audio data. Sample rate and channel count are determined by the pipeline config.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input, 24000 for synthesised speech).
	SampleRate int

	// Channels: 1 for mono (STT input), 2 for stereo playback devices.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}
