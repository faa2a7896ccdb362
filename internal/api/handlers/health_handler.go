package handlers

import (
	"net/http"

	"github.com/markdave123-py/Contexta/internal/api/render"
)

// Health reports liveness. It needs no authentication.
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
