//go:build !classifier_tesseract

package classifier

func newTesseract(Config) (Classifier, error) {
	return nil, ErrBackendUnavailable
}
