// Package av1decoder decodes AV1 samples using libaom.
package av1decoder

/*
#cgo pkg-config: aom
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_decoder_interface() {
    return aom_codec_av1_dx();
}

// Wrapper for aom_codec_dec_init
static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface) {
    return aom_codec_dec_init(ctx, iface, NULL, 0);
}

// Get image plane data
static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static unsigned int get_width(aom_image_t *img) {
    return img->d_w;
}

static unsigned int get_height(aom_image_t *img) {
    return img->d_h;
}
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/user/framecache/pkg/mediatime"
	"github.com/user/framecache/pkg/ports"
)

// ErrNotInitialized is returned when decoding before Init.
var ErrNotInitialized = errors.New("av1decoder: decoder not initialized")

// Decoder implements ports.SampleDecoder for AV1 temporal units using libaom.
type Decoder struct {
	codec *C.aom_codec_ctx_t

	// last is the most recent packet, used to time frames released by Flush.
	last ports.Packet
}

// New creates a new AV1 decoder.
func New() *Decoder {
	return &Decoder{}
}

// NewSampleDecoder creates and initializes a decoder.
func NewSampleDecoder() (*Decoder, error) {
	d := New()
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// Init initializes the decoder.
func (d *Decoder) Init() error {
	d.codec = (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if d.codec == nil {
		return fmt.Errorf("failed to allocate decoder context")
	}
	C.memset(unsafe.Pointer(d.codec), 0, C.sizeof_aom_codec_ctx_t)

	iface := C.get_av1_decoder_interface()
	if res := C.init_decoder(d.codec, iface); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(d.codec))
		d.codec = nil
		return fmt.Errorf("failed to initialize decoder: %d", res)
	}

	return nil
}

// Decode decodes one temporal unit. AV1 shows at most one frame per
// temporal unit, in presentation order, so frames take the packet's timing.
func (d *Decoder) Decode(ctx context.Context, packet ports.Packet) ([]ports.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.codec == nil {
		return nil, ErrNotInitialized
	}
	if len(packet.Data) == 0 {
		return nil, fmt.Errorf("empty frame data")
	}

	res := C.aom_codec_decode(
		d.codec,
		(*C.uint8_t)(unsafe.Pointer(&packet.Data[0])),
		C.size_t(len(packet.Data)),
		nil,
	)
	if res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("decode failed: %d", res)
	}

	d.last = packet
	return d.drain(packet.Timestamp, packet.Duration), nil
}

// Flush signals end of stream and returns any frames libaom still holds.
func (d *Decoder) Flush(ctx context.Context) ([]ports.Frame, error) {
	if d.codec == nil {
		return nil, ErrNotInitialized
	}
	if res := C.aom_codec_decode(d.codec, nil, 0, nil); res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("flush failed: %d", res)
	}
	return d.drain(d.last.Timestamp, d.last.Duration), nil
}

func (d *Decoder) drain(ts, dur mediatime.Time) []ports.Frame {
	var frames []ports.Frame
	var iter C.aom_codec_iter_t
	for {
		img := C.aom_codec_get_frame(d.codec, &iter)
		if img == nil {
			break
		}
		frames = append(frames, ports.Frame{
			Image:     d.yuvToRGBA(img),
			Timestamp: ts,
			Duration:  dur,
		})
	}
	return frames
}

// Close releases decoder resources.
func (d *Decoder) Close() {
	if d.codec != nil {
		C.aom_codec_destroy(d.codec)
		C.free(unsafe.Pointer(d.codec))
		d.codec = nil
	}
}

// yuvToRGBA converts YUV420 image to RGBA.
func (d *Decoder) yuvToRGBA(img *C.aom_image_t) *image.RGBA {
	width := int(C.get_width(img))
	height := int(C.get_height(img))

	yPlane := C.get_plane(img, 0)
	uPlane := C.get_plane(img, 1)
	vPlane := C.get_plane(img, 2)

	yStride := int(C.get_stride(img, 0))
	uStride := int(C.get_stride(img, 1))
	vStride := int(C.get_stride(img, 2))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			yIdx := y*yStride + x
			uIdx := (y/2)*uStride + (x / 2)
			vIdx := (y/2)*vStride + (x / 2)

			yVal := int(*(*C.uchar)(unsafe.Pointer(uintptr(unsafe.Pointer(yPlane)) + uintptr(yIdx))))
			uVal := int(*(*C.uchar)(unsafe.Pointer(uintptr(unsafe.Pointer(uPlane)) + uintptr(uIdx))))
			vVal := int(*(*C.uchar)(unsafe.Pointer(uintptr(unsafe.Pointer(vPlane)) + uintptr(vIdx))))

			// YUV to RGB conversion
			c := yVal - 16
			d := uVal - 128
			e := vVal - 128

			r := clamp((298*c + 409*e + 128) >> 8)
			g := clamp((298*c - 100*d - 208*e + 128) >> 8)
			b := clamp((298*c + 516*d + 128) >> 8)

			idx := y*rgba.Stride + x*4
			rgba.Pix[idx] = uint8(r)
			rgba.Pix[idx+1] = uint8(g)
			rgba.Pix[idx+2] = uint8(b)
			rgba.Pix[idx+3] = 255
		}
	}

	return rgba
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// Ensure Decoder implements ports.SampleDecoder
var _ ports.SampleDecoder = (*Decoder)(nil)
