// Package playback implements the JellyTV media playback engine: container
// demux into bounded per-stream packet queues, parallel decode goroutines,
// audio-master A/V synchronization, a PTS-windowed video renderer, and a
// buffered audio output, behind a Player state machine hosts drive from
// their own UI loop.
//
// Decoding uses FFmpeg through dlopen (package internal/ffmpeg); hosts that
// only need the pipeline mechanics can substitute their own sources and
// decoders through PlayerConfig.
package playback
