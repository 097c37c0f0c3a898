package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest"
	"github.com/ZanzyTHEbar/docchat/docchat/session"
)

const sessionKey = "session"

type usernameRequest struct {
	Username string `json:"username"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

type sessionView struct {
	ID       string        `json:"id"`
	State    session.State `json:"state"`
	Username string        `json:"username,omitempty"`
	Turns    int           `json:"turns"`
}

type messageResponse struct {
	Reply  conversation.Turn `json:"reply"`
	Failed bool              `json:"failed"`
	Model  string            `json:"model"`
}

func viewOf(sess *session.Session) sessionView {
	return sessionView{
		ID:       sess.ID(),
		State:    sess.State(),
		Username: sess.Username(),
		Turns:    len(sess.Display()),
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "model": s.opts.Model, "ocr": s.opts.OCR, "sessions": s.sessions.Len()})
}

// loadSession resolves :id or aborts with 404.
func (s *Server) loadSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func current(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// createSession starts a session. An optional username activates it immediately.
func (s *Server) createSession(c *gin.Context) {
	var req usernameRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	sess := s.sessions.Create()
	if req.Username != "" {
		if err := sess.SetUsername(req.Username); err != nil {
			s.sessions.Delete(sess.ID())
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(current(c)))
}

func (s *Server) deleteSession(c *gin.Context) {
	s.sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) setUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	sess := current(c)
	if err := sess.SetUsername(req.Username); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) clearUsername(c *gin.Context) {
	sess := current(c)
	sess.ClearUsername()
	// a cleared session goes straight back to asking for a name
	sess.Begin()
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) listMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": current(c).Display()})
}

func (s *Server) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	reply, err := current(c).OnUserInput(c.Request.Context(), req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		Reply:  reply,
		Failed: session.IsErrorTurn(reply),
		Model:  s.opts.Model,
	})
}

func (s *Server) upload(c *gin.Context) {
	sess := current(c)
	if sess.State() != session.StateActive {
		s.fail(c, session.ErrNotActive)
		return
	}

	limit := s.opts.MaxUploadBytes
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit*maxUploadFiles+1<<20)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form with field \"files\""})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in field \"files\""})
		return
	}
	if len(headers) > maxUploadFiles {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many files", "max": maxUploadFiles})
		return
	}

	docs := make([]ingest.Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := readPart(fh, limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		docs = append(docs, doc)
	}

	outcomes, err := sess.OnUpload(c.Request.Context(), docs...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// readPart reads at most limit+1 bytes so the coordinator can report an oversized file.
func readPart(fh *multipart.FileHeader, limit int64) (ingest.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Document{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return ingest.Document{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return ingest.Document{
		Name:         fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		Raw:          raw,
	}, nil
}

func (s *Server) reset(c *gin.Context) {
	sess := current(c)
	sess.OnReset()
	c.JSON(http.StatusOK, viewOf(sess))
}

// fail maps session errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrEmptyUsername), errors.Is(err, session.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrUsernameSet):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
