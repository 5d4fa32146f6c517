package api

import (
	"net/http"

	"github.com/swaggo/swag"
)

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/health": {
            "get": {"summary": "Service health", "responses": {"200": {"description": "OK"}}}
        },
        "/direntry/decode": {
            "post": {
                "summary": "Decode a 10-byte directory entry",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/DecodeRequest"}}],
                "responses": {"200": {"description": "Decoded entry"}, "400": {"description": "Wrong entry size"}}
            }
        },
        "/direntry/offset": {
            "post": {
                "summary": "Re-encode the offset of a directory entry",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/OffsetRequest"}}],
                "responses": {"200": {"description": "Updated entry"}, "400": {"description": "Wrong entry size or offset out of range"}}
            }
        },
        "/header/decode": {
            "post": {
                "summary": "Decode a 72-byte object header",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/DecodeRequest"}}],
                "responses": {"200": {"description": "Decoded header"}, "400": {"description": "Wrong header size"}, "422": {"description": "Bad magic or corrupt header"}}
            }
        },
        "/scans": {
            "get": {"summary": "List recorded scans", "responses": {"200": {"description": "Scans"}, "503": {"description": "No catalog"}}},
            "post": {
                "summary": "Scan a directory dump",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}],
                "responses": {"200": {"description": "Scan report"}, "400": {"description": "Invalid request"}, "503": {"description": "No catalog"}}
            }
        },
        "/scans/{id}": {
            "get": {
                "summary": "Scan with its findings",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "outcome", "type": "string", "required": false}
                ],
                "responses": {"200": {"description": "Scan detail"}, "404": {"description": "Unknown scan"}}
            }
        },
        "/keys/{key}": {
            "get": {
                "summary": "Slots holding an object key",
                "parameters": [{"in": "path", "name": "key", "type": "string", "required": true, "description": "32 hex digits"}],
                "responses": {"200": {"description": "Key references"}, "400": {"description": "Malformed key"}}
            }
        }
    },
    "definitions": {
        "DecodeRequest": {
            "type": "object",
            "properties": {
                "hex": {"type": "string"},
                "data": {"type": "string", "format": "byte"}
            }
        },
        "OffsetRequest": {
            "type": "object",
            "properties": {
                "hex": {"type": "string"},
                "data": {"type": "string", "format": "byte"},
                "offset": {"type": "integer"}
            }
        },
        "ScanRequest": {
            "type": "object",
            "properties": {
                "dir_path": {"type": "string"},
                "content_path": {"type": "string"},
                "content_offset": {"type": "integer"},
                "heads_only": {"type": "boolean"},
                "stripe_phase": {"type": "boolean"},
                "validity_limit": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds the exported API document metadata
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "cachescan API",
	Description:      "Decode cache directory entries and object headers, and browse recorded scans.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

func handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}
