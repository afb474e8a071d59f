package transcription

import "errors"

var (
	ErrUnsupportedAudio = errors.New("unsupported_audio")
	ErrEmptyAudio       = errors.New("empty_audio")
	ErrInvalidName      = errors.New("invalid_file_name")
	ErrNotFound         = errors.New("not_found")

	ErrExtractorTimeout     = errors.New("extractor_timeout")
	ErrExtractorUnavailable = errors.New("extractor_unavailable")
)

// IsValidationError reports whether err comes from a bad upload.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnsupportedAudio) ||
		errors.Is(err, ErrEmptyAudio) ||
		errors.Is(err, ErrInvalidName)
}
