package server

import (
	"strings"

	"github.com/geminizip/geminizip/internal/gemini"
	"github.com/geminizip/geminizip/internal/mimetype"
	"github.com/geminizip/geminizip/internal/zipfile"
)

// DefaultIndexDocument is served for directory requests unless overridden
// with WithIndexDocument.
const DefaultIndexDocument = "index.gmi"

// resolve maps a normalized request path to a response.
//
// Rules, in order:
//  1. an exact non-directory match without a trailing slash is served;
//  2. a path naming a directory without its trailing slash redirects to
//     the canonical slash form, keeping relative links stable;
//  3. a slash-terminated path (the root included) serves its directory
//     index document if one exists;
//  4. a file addressed with a trailing slash is not found, so every
//     resource has exactly one discoverable URL;
//  5. anything else is not found.
func (s *Server) resolve(reqPath string) *gemini.Response {
	endsInSlash := reqPath == "" || strings.HasSuffix(reqPath, "/")

	if !endsInSlash {
		if e, ok := s.archive.Entry(reqPath); ok && !e.IsDir {
			return s.serve(e)
		}
		if _, ok := s.archive.Entry(reqPath + "/"); ok || s.archive.HasPrefix(reqPath+"/") {
			return gemini.Failure(gemini.StatusRedirectPermanent, reqPath+"/")
		}
		return gemini.Failure(gemini.StatusNotFound, "not found")
	}

	if e, ok := s.archive.Entry(reqPath + s.indexDocument); ok && !e.IsDir {
		return s.serve(e)
	}
	return gemini.Failure(gemini.StatusNotFound, "not found")
}

// serve opens the entry and pairs it with its MIME type. The body stream
// stays lazy; decompression happens as the response is written.
func (s *Server) serve(e zipfile.Entry) *gemini.Response {
	body, err := s.archive.Open(e)
	if err != nil {
		s.log().Error("open archive entry", "path", e.Path, "error", err)
		return gemini.Failure(gemini.StatusTemporaryFailure, "failed to open archive entry")
	}
	return &gemini.Response{
		Status: gemini.StatusSuccess,
		Meta:   mimetype.Resolve(e.Path),
		Body:   body,
	}
}
