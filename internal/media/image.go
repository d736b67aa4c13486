package media

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/chai2010/webp"

	"github.com/megascops/megascops/internal/logging"
	"github.com/megascops/megascops/internal/model"
)

// decodeImage decodes path with the registered general-purpose decoder,
// falling back to a direct JPEG decode if that fails (mirrors a
// permissive-primary, strict-fallback decode strategy for slightly
// malformed JPEGs the general decoder rejects).
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err == nil {
		return img, nil
	}

	if _, serr := f.Seek(0, 0); serr != nil {
		return nil, err
	}
	img, jerr := jpeg.Decode(f)
	if jerr != nil {
		return nil, fmt.Errorf("primary decode: %v; jpeg fallback: %w", err, jerr)
	}
	return img, nil
}

// resizeNearestNeighbor downscales img so its longer side equals imgsz,
// the shorter side rounded up to the next even integer, using a
// nearest-neighbor sampler.
func resizeNearestNeighbor(img image.Image, imgsz int) image.Image {
	b := img.Bounds()
	w, h := targetDimensions(b.Dx(), b.Dy(), imgsz)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// encodeWebP encodes img as WebP at the given quality (0-100).
func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// processImage decodes, resizes, and WebP-encodes one image file,
// returning the emitted FrameItem or ErrorItem.
func processImage(fd model.FileDescriptor, imgsz, quality int, logger *logging.Logger) model.MediaItem {
	img, err := decodeImage(fd.WorkingPath)
	if err != nil {
		return model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, fmt.Sprintf("decode: %v", err))}
	}

	origW := img.Bounds().Dx()
	origH := img.Bounds().Dy()
	logger.Debug("decoded %s: %dx%d", fd.SourcePath, origW, origH)

	resized := resizeNearestNeighbor(img, imgsz)
	buf, err := encodeWebP(resized, quality)
	if err != nil {
		return model.ErrorItem{Record: model.ErrorRecord(fd.SourcePath, 0, fmt.Sprintf("encode: %v", err))}
	}

	shootTime := imageShootTime(fd.WorkingPath)

	return model.FrameItem{Frame: model.EncodedFrame{
		File:        fd,
		FrameIndex:  0,
		TotalFrames: 1,
		ShootTime:   shootTime,
		IFrame:      false,
		Width:       origW,
		Height:      origH,
		WebP:        buf,
	}}
}
