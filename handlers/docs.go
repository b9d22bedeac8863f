package handlers

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

const openAPIPath = "/swagger/doc.json"

//go:embed openapi.json
var openAPISpec []byte

// OpenAPIHandler отдаёт описание API для Swagger UI.
func OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPISpec)
}

func SwaggerUIHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL(openAPIPath))
}
