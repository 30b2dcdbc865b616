package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// envelope is the body of every successful JSON response
type envelope map[string]interface{}

func writeSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, envelope{"status": "success", "data": data})
}
