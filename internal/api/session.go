package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/httputil"
	"github.com/banshee-data/aotrack/internal/journal"
	"github.com/banshee-data/aotrack/internal/security"
	"github.com/banshee-data/aotrack/internal/version"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"message": "Welcome to the AOTrack Backend",
		"version": version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, tok uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    tok.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleUpload spools the uploaded container, extracts its preview and then
// binds it to the caller's session, creating one if needed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	path, filename, size, err := s.spool(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ds, err := s.loader.Load(path)
	if err != nil {
		s.discard(path)
		s.writeError(w, r, aoerr.LoadFailure(path, err))
		return
	}
	md, err := aotdata.ExtractMetadata(ds)
	ds.Close()
	if err != nil {
		s.discard(path)
		s.writeError(w, r, aoerr.LoadFailure(path, err))
		return
	}

	tok, ok := tokenFrom(r)
	if !ok || s.store.ReplacePath(tok, path) != nil {
		tok, err = s.store.Create(path)
		if err != nil {
			s.discard(path)
			s.writeError(w, r, err)
			return
		}
	}
	s.setSessionCookie(w, tok)

	if s.journal != nil {
		up := journal.Upload{
			Token:    tok.String(),
			Path:     path,
			Filename: filename,
			Size:     size,
			NumWFS:   md.NumWFS,
			NumLoops: md.NumLoops,
			At:       s.store.Now(),
		}
		if md.SystemName != nil {
			up.SystemName = *md.SystemName
		}
		if err := s.journal.RecordUpload(up); err != nil {
			log.Printf("journal: %v", err)
		}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{"metadata": md})
}

// spool copies the "file" part of a multipart body into the upload
// directory and returns its path.
func (s *Server) spool(r *http.Request) (path, filename string, size int64, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", "", 0, aoerr.InvalidParameter("upload must be multipart/form-data")
	}

	var part *multipart.Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return "", "", 0, aoerr.InvalidParameter("missing file")
		}
		if err != nil {
			return "", "", 0, uploadError(err)
		}
		if p.FormName() == "file" {
			part = p
			break
		}
		p.Close()
	}
	defer part.Close()

	if err := s.fs.MkdirAll(s.opts.UploadDir, 0o700); err != nil {
		return "", "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	filename = security.SanitizeFilename(filepath.Base(part.FileName()))
	path = filepath.Join(s.opts.UploadDir, uuid.NewString()+"_"+filename)

	out, err := s.fs.Create(path)
	if err != nil {
		return "", "", 0, fmt.Errorf("create spool file: %w", err)
	}
	size, err = io.Copy(out, part)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.discard(path)
		return "", "", 0, uploadError(err)
	}
	return path, filename, size, nil
}

func uploadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return aoerr.InvalidParameter("upload exceeds %d bytes", tooBig.Limit)
	}
	return fmt.Errorf("read upload: %w", err)
}

func (s *Server) discard(path string) {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to remove %s: %v", path, err)
	}
}

// handleSession reports whether the cookie names a live session, refreshing
// it when it does.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	tok, ok := tokenFrom(r)
	if !ok || s.store.Touch(tok) != nil {
		httputil.WriteJSONOK(w, map[string]bool{"active": false})
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"active":     true,
		"session_id": tok.String(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	deleted := false
	if tok, ok := tokenFrom(r); ok {
		deleted = s.store.DeleteOne(tok)
	}
	s.clearSessionCookie(w)
	httputil.WriteJSONOK(w, map[string]bool{"deleted": deleted})
}
