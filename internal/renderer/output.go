package renderer

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// WritePNG saves img to a PNG file at path.
func WritePNG(path string, img image.Image) error {
	outFile, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := EncodePNG(outFile, img); err != nil {
		outFile.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return outFile.Close()
}
