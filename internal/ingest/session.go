package ingest

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

type session struct {
	w      *Worker
	src    StreamSource
	logger *slog.Logger
	in     Input

	video     *StreamInfo
	audio     *StreamInfo
	vdec      VideoDecoder
	adec      AudioDecoder
	conv      PictureConverter
	resampler *AudioResampler

	// audioBroken disables the audio track after a resampler setup failure.
	audioBroken bool
}

func newSession(w *Worker, src StreamSource) *session {
	return &session{
		w:      w,
		src:    src,
		logger: w.logger.With("url", src.URL, "transport", src.Transport.String()),
	}
}

func (s *session) run(ctx context.Context) {
	in, err := s.w.backend.Open(ctx, OpenOptions{
		URL:       s.src.URL,
		Transport: s.src.Transport,
		MaxDelay:  s.w.maxDelay,
		UserAgent: s.w.userAgent,
	})
	if err != nil {
		if s.w.stopped() {
			return
		}
		s.fail(OpenFailure, errors.Wrapf(err, "could not open %s", s.src.URL))
		return
	}
	defer in.Close()
	s.in = in

	if err := in.Probe(); err != nil {
		if s.w.stopped() {
			return
		}
		s.fail(ProbeFailure, errors.Wrap(err, "could not find stream information"))
		return
	}

	s.video, s.audio = SelectStreams(in.Streams())
	s.logger.Info("Stream opened", "video", s.video != nil, "audio", s.audio != nil)
	s.describe(s.video)
	s.describe(s.audio)

	if s.video != nil {
		dec, err := in.OpenVideoDecoder(*s.video)
		if err != nil {
			s.logger.Warn("Could not open video codec", "kind", DecoderUnavailable.String(), "stream", s.video.Index, "error", err)
		} else {
			s.vdec = dec
			defer dec.Close()
		}
	}

	if s.audio != nil {
		dec, err := in.OpenAudioDecoder(*s.audio)
		if err != nil {
			s.logger.Warn("Could not open audio codec", "kind", DecoderUnavailable.String(), "stream", s.audio.Index, "error", err)
		} else {
			s.adec = dec
			defer dec.Close()
		}
	}

	if s.vdec != nil {
		conv, err := s.vdec.NewRGBAConverter()
		if err != nil {
			s.fail(SetupFailure, errors.Wrap(err, "could not create picture converter"))
			return
		}
		s.conv = conv
		defer conv.Close()
	}

	defer func() {
		if s.resampler != nil {
			s.resampler.Close()
		}
	}()

	s.loop()
}

func (s *session) loop() {
	for !s.w.stopped() {
		pkt, err := s.readPacket()
		if err != nil {
			if !s.w.stopped() {
				s.logger.Info("Stream ended", "reason", err)
			}
			return
		}

		idx := pkt.StreamIndex()
		switch {
		case s.vdec != nil && idx == s.video.Index:
			s.handleVideo(pkt)
		case s.adec != nil && !s.audioBroken && idx == s.audio.Index:
			s.handleAudio(pkt)
		default:
			s.w.stats.droppedPackets.Add(1)
		}
		pkt.Release()
	}
}

func (s *session) readPacket() (Packet, error) {
	pkt, err := s.in.ReadPacket()
	if err != nil {
		return nil, errors.Wrap(err, ReadFailure.String())
	}
	return pkt, nil
}

func (s *session) handleVideo(pkt Packet) {
	err := s.vdec.Decode(pkt, func(p Picture) {
		frame, err := s.conv.ToRGBA(p)
		if err != nil {
			s.w.stats.decodeErrors.Add(1)
			s.logger.Debug("Picture conversion failed", "error", err)
			return
		}

		seq := s.w.stats.videoFrames.Add(1)
		red := RedChannel(frame)
		s.w.emit(VideoFrameEvent{Seq: seq, Frame: frame})
		s.w.emit(RedChannelFrameEvent{Seq: seq, Frame: red})
	})
	if err != nil {
		s.w.stats.decodeErrors.Add(1)
		s.logger.Debug("Skipping video packet", "kind", DecodeError.String(), "error", err)
	}
}

func (s *session) handleAudio(pkt Packet) {
	err := s.adec.Decode(pkt, func(f AudioFrame) {
		if s.audioBroken {
			return
		}
		if s.resampler == nil {
			r, err := NewAudioResampler(s.adec, f)
			if err != nil {
				s.audioBroken = true
				s.logger.Warn("Disabling audio track", "error", err)
				return
			}
			s.resampler = r
			s.logger.Debug("Audio resampler ready", "input_rate", f.SampleRate())
		}

		chunk, err := s.resampler.Resample(f)
		if err != nil {
			s.w.stats.decodeErrors.Add(1)
			s.logger.Debug("Skipping audio frame", "error", err)
			return
		}
		s.w.stats.audioChunks.Add(1)
		s.w.emit(AudioChunkEvent{Chunk: chunk})
	})
	if err != nil {
		s.w.stats.decodeErrors.Add(1)
		s.logger.Debug("Skipping audio packet", "kind", DecodeError.String(), "error", err)
	}
}

func (s *session) describe(info *StreamInfo) {
	if info == nil {
		return
	}
	cfg, err := ParseCodecConfig(info.Codec, info.Extradata)
	if err != nil {
		s.logger.Debug("Codec configuration unavailable", "stream", info.Index, "codec", info.Codec, "reason", err)
		return
	}
	s.logger.Debug("Codec configuration", "stream", info.Index, "codec", info.Codec,
		"width", cfg.Width, "height", cfg.Height, "fps", cfg.FPS,
		"sample_rate", cfg.SampleRate, "channels", cfg.Channels)
}

// fail reports a session-ending error. Each session calls it at most once.
func (s *session) fail(kind ErrorKind, err error) {
	s.logger.Error("Ingest session failed", "kind", kind.String(), "error", err)
	s.w.emit(StreamErrorEvent{Source: s.src, Kind: kind, Err: err})
}

// SelectStreams picks the first video and first audio stream.
func SelectStreams(streams []StreamInfo) (video, audio *StreamInfo) {
	for i := range streams {
		switch streams[i].Type {
		case MediaTypeVideo:
			if video == nil {
				video = &streams[i]
			}
		case MediaTypeAudio:
			if audio == nil {
				audio = &streams[i]
			}
		}
	}
	return video, audio
}
