package handlers

import (
	"image"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds register uploads; reference images are single photos.
const maxUploadBytes = 16 << 20

type personResponse struct {
	Name       string `json:"name"`
	ImageCount int    `json:"image_count"`
}

// ListPersons returns all known people and their reference image counts.
func (a *API) ListPersons(w http.ResponseWriter, r *http.Request) {
	names := a.Engine.Names()
	persons := make([]personResponse, 0, len(names))
	for _, name := range names {
		persons = append(persons, personResponse{
			Name:       name,
			ImageCount: a.Engine.ImageCount(name),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persons": persons,
		"count":   len(persons),
	})
}

// RegisterPerson accepts a multipart form with a "name" field and an "image"
// file, adds the image as a new reference and reloads the matcher.
func (a *API) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	ok, err := a.Engine.Register(r.Context(), img, name)
	if err != nil {
		log.Printf("register %s failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, "no usable face in image")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"status": "registered",
		"name":   name,
	})
}

// DeletePerson removes a person's reference images and all derived state.
func (a *API) DeletePerson(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := a.Engine.RemovePerson(r.Context(), name); err != nil {
		log.Printf("remove %s failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "removed",
		"name":   name,
	})
}
