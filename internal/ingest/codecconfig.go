package ingest

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/pkg/errors"
)

// CodecConfig is what a stream's out-of-band configuration says about it
// before anything is decoded. Zero fields are unknown.
type CodecConfig struct {
	Width      int
	Height     int
	FPS        float64
	SampleRate int
	Channels   int
}

// ParseCodecConfig reads H.264 parameter sets (Annex-B or avcC) or an AAC
// AudioSpecificConfig.
func ParseCodecConfig(codec string, extradata []byte) (CodecConfig, error) {
	if len(extradata) == 0 {
		return CodecConfig{}, errors.New("no extradata")
	}
	switch codec {
	case "h264":
		return parseH264Config(extradata)
	case "aac":
		var asc mpeg4audio.AudioSpecificConfig
		if err := asc.Unmarshal(extradata); err != nil {
			return CodecConfig{}, errors.Wrap(err, "parsing AudioSpecificConfig")
		}
		return CodecConfig{SampleRate: asc.SampleRate, Channels: asc.ChannelCount}, nil
	}
	return CodecConfig{}, errors.Errorf("no config parser for %s", codec)
}

func parseH264Config(extradata []byte) (CodecConfig, error) {
	var sps []byte
	if extradata[0] == 0x01 {
		sps = avccSPS(extradata)
	} else {
		var annexB h264.AnnexB
		if err := annexB.Unmarshal(extradata); err != nil {
			return CodecConfig{}, errors.Wrap(err, "parsing Annex-B")
		}
		for _, nalu := range annexB {
			if len(nalu) > 0 && h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeSPS {
				sps = nalu
				break
			}
		}
	}
	if sps == nil {
		return CodecConfig{}, errors.New("no SPS found")
	}

	var s h264.SPS
	if err := s.Unmarshal(sps); err != nil {
		return CodecConfig{}, errors.Wrap(err, "parsing SPS")
	}
	return CodecConfig{Width: s.Width(), Height: s.Height(), FPS: s.FPS()}, nil
}

// avccSPS returns the first SPS of an AVCDecoderConfigurationRecord.
func avccSPS(b []byte) []byte {
	if len(b) < 8 || b[5]&0x1F == 0 {
		return nil
	}
	n := int(b[6])<<8 | int(b[7])
	if n == 0 || len(b) < 8+n {
		return nil
	}
	return b[8 : 8+n]
}
