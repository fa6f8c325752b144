package httpadapter

import (
	"net/http"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type uploadResponse struct {
	Document *domain.Document `json:"document"`
	Request  *domain.Request  `json:"request"`
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.svc.Documents.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	req, err := rt.svc.Requests.Submit(r.Context(), domain.RequestIndexDocument, domain.DocumentPayload{DocumentID: doc.ID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteDocument(r.Context(), doc.ID)
	noteRequest(r.Context(), req)
	writeJSON(w, http.StatusAccepted, uploadResponse{Document: doc, Request: req})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	query, err := bindListQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	docs, err := rt.svc.Documents.ListDocuments(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": filterList(docs, query.Limit, nil),
	})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Documents.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) indexDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Documents.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteDocument(r.Context(), doc.ID)
	req, err := rt.svc.Requests.Submit(r.Context(), domain.RequestIndexDocument, domain.DocumentPayload{DocumentID: doc.ID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	noteRequest(r.Context(), req)
	writeJSON(w, http.StatusAccepted, req)
}
