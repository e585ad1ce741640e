package sniffer

import (
	"bytes"
	"errors"
	"io"
)

type ImageType string

const (
	TypeJPEG ImageType = "jpg"
	TypePNG  ImageType = "png"
	TypeGIF  ImageType = "gif"
	TypeWEBP ImageType = "webp"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrTooLarge         = errors.New("image exceeds size limit")
)

const headSize = 512

type Result struct {
	Type ImageType
	MIME string
}

// Detect reads the whole image and identifies it from its leading bytes. The
// declared content type of an upload is never trusted.
func Detect(r io.Reader, maxBytes int64) (Result, []byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Result{}, nil, err
	}
	if int64(len(data)) > maxBytes {
		return Result{}, nil, ErrTooLarge
	}

	head := data
	if len(head) > headSize {
		head = head[:headSize]
	}
	result, err := DetectHead(head)
	if err != nil {
		return Result{}, nil, err
	}
	return result, data, nil
}

func DetectHead(head []byte) (Result, error) {
	switch {
	case isJPEG(head):
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case isPNG(head):
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	case isGIF(head):
		return Result{Type: TypeGIF, MIME: "image/gif"}, nil
	case isWEBP(head):
		return Result{Type: TypeWEBP, MIME: "image/webp"}, nil
	}
	return Result{}, ErrUnsupportedImage
}

func isJPEG(head []byte) bool {
	return len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, pngMagic)
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
}
