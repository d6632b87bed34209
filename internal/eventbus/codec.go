package eventbus

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec сжимает полезную нагрузку Envelope
type Codec interface {
	Name() string
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

// PassthroughCodec без сжатия
type PassthroughCodec struct{}

func (PassthroughCodec) Name() string                      { return "raw" }
func (PassthroughCodec) Encode(src []byte) ([]byte, error) { return src, nil }
func (PassthroughCodec) Decode(src []byte) ([]byte, error) { return src, nil }

// ZstdCodec сжатие zstd. Encoder и Decoder безопасны для параллельных
// EncodeAll/DecodeAll.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec создаёт кодек со скоростью сжатия по умолчанию
func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (z *ZstdCodec) Name() string { return "zstd" }

func (z *ZstdCodec) Encode(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *ZstdCodec) Decode(src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// Close освобождает ресурсы кодека
func (z *ZstdCodec) Close() {
	_ = z.enc.Close()
	z.dec.Close()
}

// CodecFor подбирает кодек по полю Encoding конверта
func CodecFor(encoding string, known ...Codec) (Codec, error) {
	if encoding == "" || encoding == (PassthroughCodec{}).Name() {
		return PassthroughCodec{}, nil
	}
	for _, c := range known {
		if c.Name() == encoding {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown payload encoding %q", encoding)
}
