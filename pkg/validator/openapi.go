// Package validator checks incoming requests against the embedded OpenAPI
// document of the audio API.
package validator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"mime"
	"net/http"

	apperrors "audio-library/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var document []byte

// Document returns the raw OpenAPI document
func Document() []byte {
	return document
}

// OpenAPIValidator validates requests against the OpenAPI document
type OpenAPIValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator loads and validates the embedded document
func NewOpenAPIValidator(ctx context.Context) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{doc: doc, router: router}, nil
}

// Validate checks parameters, and JSON bodies, of a request that maps to a
// documented operation. Undocumented routes pass.
func (v *OpenAPIValidator) Validate(r *http.Request) error {
	route, pathParams, err := v.router.FindRoute(r)
	if err != nil {
		return nil
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			MultiError:         false,
		},
	}

	// Uploads are streamed by the handler and must not be buffered here
	if !isJSON(r) {
		input.Options.ExcludeRequestBody = true
	}

	return openapi3filter.ValidateRequest(r.Context(), input)
}

// Middleware rejects requests that do not match the document
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Validate(c.Request); err != nil {
			c.Error(apperrors.NewBadRequestError(invalidMessage(err)).WithDetail(reason(err)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// DocumentHandler serves the OpenAPI document
func DocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", document)
	}
}

func isJSON(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func invalidMessage(err error) string {
	var bodyErr *openapi3filter.RequestError
	if errors.As(err, &bodyErr) && bodyErr.RequestBody != nil {
		return "invalid request body"
	}
	return "invalid request"
}

func reason(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, errorReason(reqErr))
		}
		return errorReason(reqErr)
	}
	return err.Error()
}

func errorReason(reqErr *openapi3filter.RequestError) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(reqErr.Err, &schemaErr) {
		return schemaErr.Reason
	}
	if reqErr.Reason != "" {
		return reqErr.Reason
	}
	if reqErr.Err != nil {
		return reqErr.Err.Error()
	}
	return reqErr.Error()
}
