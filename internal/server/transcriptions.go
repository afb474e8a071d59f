package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/mutrapro/internal/transcription"
)

func (s *Server) Transcribe(c *gin.Context) {
	if s.transcriptionSvc == nil {
		AbortWithError(c, ErrUnavailable)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer file.Close()

	resp, err := s.transcriptionSvc.Transcribe(c.Request.Context(), header.Filename, file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadMIDI(c *gin.Context) {
	if s.transcriptionSvc == nil {
		AbortWithError(c, ErrUnavailable)
		return
	}
	name := c.Param("name")
	path, err := s.transcriptionSvc.MIDIPath(name)
	if err != nil {
		if errors.Is(err, transcription.ErrInvalidName) {
			err = transcription.ErrNotFound
		}
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "audio/midi")
	c.FileAttachment(path, name)
}
