//go:build capture_gocv

package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// DeviceSource reads from a camera index or a video file through OpenCV.
type DeviceSource struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	isFile bool
}

func openDevice(ref string, _ Options) (Source, error) {
	var device interface{} = ref
	isFile := true
	if id, err := strconv.Atoi(ref); err == nil {
		device, isFile = id, false
	} else if _, err := os.Stat(ref); err != nil {
		return nil, fmt.Errorf("video source %s: %w", ref, err)
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open video capture %s: %w", ref, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("video capture %s did not open", ref)
	}
	slog.Info("video capture opened", "source", ref, "file", isFile,
		"fps", vc.Get(gocv.VideoCaptureFPS))
	return &DeviceSource{vc: vc, mat: gocv.NewMat(), isFile: isFile}, nil
}

// Capture reads the next frame. End of a video file is io.EOF; a camera
// that yields nothing is ErrNoFrame.
func (d *DeviceSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.vc.Read(&d.mat); !ok {
		if d.isFile {
			return nil, io.EOF
		}
		return nil, ErrNoFrame
	}
	if d.mat.Empty() {
		return nil, ErrNoFrame
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return img, nil
}

// Skip grabs a frame without decoding it.
func (d *DeviceSource) Skip() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isFile {
		pos := d.vc.Get(gocv.VideoCapturePosFrames)
		if pos >= d.vc.Get(gocv.VideoCaptureFrameCount) {
			return io.EOF
		}
	}
	d.vc.Grab(1)
	return nil
}

// FPS reports the native frame rate.
func (d *DeviceSource) FPS() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vc.Get(gocv.VideoCaptureFPS)
}

// ConfigureSize asks the device for a resolution and reports the result.
func (d *DeviceSource) ConfigureSize(width, height int) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isFile {
		d.vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		d.vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return int(d.vc.Get(gocv.VideoCaptureFrameWidth)), int(d.vc.Get(gocv.VideoCaptureFrameHeight)), nil
}

// Close releases the device.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.mat.Close()
	return d.vc.Close()
}
