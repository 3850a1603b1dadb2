package swagger

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	apicontract "github.com/tuanvumaihuynh/stock-ledger/api-contract"
)

const (
	DocsURL = "/docs"
	// YAMLURL serves the embedded document as written.
	YAMLURL = "/docs/openapi.yml"
	// JSONURL serves the document as loaded and resolved by the loader.
	JSONURL = "/docs/openapi.json"
)

// Register serves the Swagger UI and the API contract in both encodings.
func Register(r chi.Router, doc *openapi3.T) error {
	specJSON, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal openapi document: %w", err)
	}

	page := []byte(uiPage(YAMLURL, doc.Info.Title))
	r.Get(DocsURL, serveBytes("text/html; charset=utf-8", page))
	r.Get(YAMLURL, serveBytes("application/yaml", apicontract.GetSpecBytes()))
	r.Get(JSONURL, serveBytes("application/json", specJSON))
	return nil
}

func serveBytes(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write(body)
	}
}

func uiPage(specPath, title string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>%s</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.29.3/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.29.3/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: '%s',
      dom_id: '#swagger-ui',
      deepLinking: true,
    });
  };
</script>
</body>
</html>
`, title, specPath)
}
