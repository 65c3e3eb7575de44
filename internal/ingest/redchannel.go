package ingest

// RedChannel returns a copy of f with green and blue set to zero. Red and
// alpha are kept.
func RedChannel(f DecodedFrame) DecodedFrame {
	out := f.Clone()
	for i := 0; i+3 < len(out.Pix); i += 4 {
		out.Pix[i+1] = 0
		out.Pix[i+2] = 0
	}
	return out
}
