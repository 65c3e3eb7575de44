// Package ingest pulls a live RTSP session and decodes it on a dedicated
// worker goroutine.
//
// A Worker is configured with a StreamSource, started, and stopped by its
// owner. While a session runs it emits, in order:
//
//   - VideoFrameEvent followed immediately by RedChannelFrameEvent for every
//     decoded picture (same sequence number, same dimensions);
//   - AudioChunkEvent for every decoded audio frame, resampled to
//     44.1 kHz stereo S16LE;
//   - at most one StreamErrorEvent when the session cannot be set up;
//   - SessionEndedEvent when the worker is idle again.
//
// Demuxing and decoding go through the Backend interface. The libav
// subpackage implements it on top of FFmpeg.
package ingest
