package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	obslogger "github.com/smallbiznis/mutrapro/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	maxAudioBytes = 50 << 20
	midiRoute     = "/transcriptions/midi/"
)

var audioExtensions = []string{".wav", ".mp3", ".flac", ".ogg", ".aiff"}

// Result is returned to the caller of an upload.
type Result struct {
	Success           bool    `json:"success"`
	TranscriptionText string  `json:"transcription_text"`
	Events            []Event `json:"events"`
	MIDIFile          *string `json:"midi_file"`
}

type Service struct {
	log        *zap.Logger
	extractor  Extractor
	uploadsDir string
	outputsDir string
}

func NewService(log *zap.Logger, extractor Extractor, uploadsDir, outputsDir string) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:        log.Named("transcription.service"),
		extractor:  extractor,
		uploadsDir: defaultDir(uploadsDir, "uploads"),
		outputsDir: defaultDir(outputsDir, "outputs"),
	}
}

// Transcribe persists the upload, runs extraction and writes the MIDI
// output next to the other outputs.
func (s *Service) Transcribe(ctx context.Context, name string, body io.Reader) (*Result, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if !supportedAudio(name) {
		return nil, ErrUnsupportedAudio
	}

	audio, err := io.ReadAll(io.LimitReader(body, maxAudioBytes+1))
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrUnsupportedAudio, maxAudioBytes)
	}

	log := obslogger.WithContext(ctx, s.log)
	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + name
	if err := writeFile(s.uploadsDir, stored, audio); err != nil {
		return nil, err
	}
	log.Info("saved uploaded audio", zap.String("file", stored), zap.Int("bytes", len(audio)))

	extraction, err := s.extractor.Extract(ctx, name, audio)
	if err != nil {
		log.Error("note extraction failed", zap.String("file", stored), zap.Error(err))
		return nil, err
	}

	events := NormalizeEvents(extraction.Events)
	result := &Result{
		Success:           true,
		TranscriptionText: RenderText(events),
		Events:            events,
	}

	if len(extraction.MIDI) > 0 {
		midiName := strings.TrimSuffix(stored, filepath.Ext(stored)) + ".mid"
		if err := writeFile(s.outputsDir, midiName, extraction.MIDI); err != nil {
			log.Error("failed to write midi", zap.String("file", midiName), zap.Error(err))
		} else {
			url := midiRoute + midiName
			result.MIDIFile = &url
		}
	}
	return result, nil
}

// MIDIPath resolves a MIDI output name to a readable file path.
func (s *Service) MIDIPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	if !strings.EqualFold(filepath.Ext(name), ".mid") {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.outputsDir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

func supportedAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range audioExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func writeFile(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func defaultDir(dir, def string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return def
	}
	return dir
}
