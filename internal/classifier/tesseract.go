//go:build classifier_tesseract

package classifier

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/sevseg/internal/models"
)

// tesseractClassifier reads each digit crop as a single character.
type tesseractClassifier struct {
	cfg      Config
	tessdata string

	mu     sync.Mutex
	client *gosseract.Client
}

func newTesseract(cfg Config) (Classifier, error) {
	return &tesseractClassifier{cfg: cfg, tessdata: cfg.modelPath(models.BackendTesseract)}, nil
}

func (c *tesseractClassifier) Name() string { return models.BackendTesseract }

func (c *tesseractClassifier) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}
	if st, err := os.Stat(c.tessdata); err != nil || !st.IsDir() {
		return notFound(c.tessdata)
	}

	client := gosseract.NewClient()
	if err := client.SetTessdataPrefix(c.tessdata); err != nil {
		_ = client.Close()
		return fmt.Errorf("set tessdata prefix: %w", err)
	}
	if err := client.SetLanguage("eng"); err != nil {
		_ = client.Close()
		return fmt.Errorf("set language: %w", err)
	}
	if err := client.SetWhitelist("0123456789"); err != nil {
		_ = client.Close()
		return fmt.Errorf("set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		_ = client.Close()
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	c.client = client
	slog.Info("digit classifier loaded", "backend", c.Name(), "tessdata", c.tessdata)
	return nil
}

func (c *tesseractClassifier) Classify(strip image.Image) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, ErrNotLoaded
	}
	digits, err := SplitDigits(strip, c.cfg.DigitCount)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	out := make([]int, len(digits))
	for i, d := range digits {
		// Segments are On (white); tesseract expects dark glyphs on a light page.
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, imaging.Invert(d), imaging.PNG); err != nil {
			return nil, fmt.Errorf("encode digit %d: %w", i, err)
		}
		if err := c.client.SetImageFromBytes(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("set image for digit %d: %w", i, err)
		}
		text, err := c.client.Text()
		if err != nil {
			return nil, fmt.Errorf("ocr digit %d: %w", i, err)
		}
		out[i] = Blank
		if t := strings.TrimSpace(text); len(t) > 0 && t[0] >= '0' && t[0] <= '9' {
			out[i] = int(t[0] - '0')
		}
	}
	return out, nil
}

func (c *tesseractClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
