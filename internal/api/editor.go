package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/editor"
	"github.com/fpang/caption-wizard/internal/media"
)

func filterCatalog() []filterInfo {
	out := make([]filterInfo, 0, len(editor.Filters))
	for _, f := range editor.Filters {
		out = append(out, filterInfo{ID: string(f), Label: f.Label()})
	}
	return out
}

type renderResponse struct {
	MediaType       string `json:"mediaType"`
	URL             string `json:"url"`
	Key             string `json:"key,omitempty"`
	Rotation        int    `json:"rotation"`
	Filter          string `json:"filter"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	MetadataContext string `json:"metadataContext,omitempty"`
}

// editRequest is the edit state carried by a render request.
type editRequest struct {
	turns  []editor.Direction
	filter editor.Filter
}

// parseEdit reads the "rotation" (degrees, multiple of 90), "rotate"
// (repeatable cw/ccw) and "filter" form fields.
func parseEdit(r *http.Request) (editRequest, error) {
	var req editRequest
	if v := strings.TrimSpace(r.FormValue("rotation")); v != "" {
		deg, err := strconv.Atoi(v)
		if err != nil || deg%90 != 0 {
			return req, fmt.Errorf("invalid rotation %q: must be a multiple of 90", v)
		}
		quarter := ((deg/90)%4 + 4) % 4
		for range quarter {
			req.turns = append(req.turns, editor.Clockwise)
		}
	}
	for _, v := range r.MultipartForm.Value["rotate"] {
		d, err := editor.ParseDirection(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return req, err
		}
		req.turns = append(req.turns, d)
	}
	f, err := editor.ParseFilter(r.FormValue("filter"))
	if err != nil {
		return req, err
	}
	req.filter = f
	return req, nil
}

func (h *Handler) handleEditorRender(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		httpError(w, http.StatusBadRequest, "expected multipart form with an image field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	edit, err := parseEdit(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID := r.FormValue("sessionId")

	file, header, err := r.FormFile("image")
	if err != nil {
		// A video or text-only post has no pixels to edit; the reference is
		// handed back unchanged.
		if ref := r.FormValue("reference"); ref != "" {
			respondPassthrough(w, ref)
			return
		}
		httpError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	kind, err := media.DetectKind(header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		httpError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	if kind == media.KindVideo {
		ref := r.FormValue("reference")
		if ref == "" {
			httpError(w, http.StatusBadRequest, "video uploads pass through unedited: reference is required")
			return
		}
		respondPassthrough(w, ref)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}
	img, _, err := media.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httpError(w, http.StatusUnprocessableEntity, "could not decode image", err.Error())
		return
	}

	var metaContext string
	if meta, err := media.ExtractImageMetadata(data); err == nil {
		metaContext = meta.FormatMetadataContext()
	}

	buf := editor.New()
	buf.LoadSource(media.Fit(img, h.opts.MaxDimension), header.Filename)
	for _, d := range edit.turns {
		buf.Rotate(d)
	}
	buf.SetFilter(edit.filter)
	buf.Render()

	res, err := buf.Export()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to encode edited image", err.Error())
		return
	}

	width, height := buf.Size()
	resp := renderResponse{
		MediaType:       string(media.KindImage),
		Rotation:        buf.Rotation(),
		Filter:          string(buf.Filter()),
		Width:           width,
		Height:          height,
		MetadataContext: metaContext,
	}
	if h.opts.Uploader != nil {
		key, url, err := h.opts.Uploader.UploadExport(r.Context(), sessionID, res.Data)
		if err != nil {
			httpError(w, http.StatusBadGateway, "failed to store edited image", err.Error())
			return
		}
		resp.Key, resp.URL = key, url
	} else {
		resp.URL = res.DataURL()
	}

	log.Debug().
		Int("rotation", resp.Rotation).
		Str("filter", resp.Filter).
		Int("bytes", len(res.Data)).
		Msg("Edited image rendered")
	respondJSON(w, http.StatusOK, resp)
}

// respondPassthrough answers for media that is not edited: the reference is
// returned unchanged.
func respondPassthrough(w http.ResponseWriter, reference string) {
	buf := editor.New()
	buf.LoadVideo(reference)
	res, err := buf.Export()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to export media", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, renderResponse{
		MediaType: string(media.KindVideo),
		URL:       res.Reference,
		Filter:    string(editor.FilterNone),
	})
}
