package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MBS Portal API",
        "description": "Grade parsing, analytics and Monte Carlo projections for pasted school portal reports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Profiles", "description": "Profile lifecycle and imports"},
        {"name": "Analysis", "description": "Derived statistics and projections"},
        {"name": "Export", "description": "Report card generation and downloads"},
        {"name": "System", "description": "Probes and instrumentation"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Instrumentation snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/import": {
            "post": {
                "tags": ["Profiles"],
                "summary": "Import pasted portal text",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Name or term anchor missing in text"}
                }
            }
        },
        "/profiles/{id}": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Fetch a stored profile",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Profile not found"}
                }
            },
            "delete": {
                "tags": ["Profiles"],
                "summary": "Delete a profile",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Profile not found"}
                }
            }
        },
        "/profiles/{id}/settings": {
            "put": {
                "tags": ["Profiles"],
                "summary": "Replace profile settings",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SettingsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/{id}/ponderations": {
            "put": {
                "tags": ["Profiles"],
                "summary": "Override assignment weights",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PonderationsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Index out of range"}
                }
            }
        },
        "/profiles/{id}/averages": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Weighted averages for a profile",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/{id}/analysis": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Full analysis for a profile",
                "description": "Averages, consistency, regressions, burnout risk, Monte Carlo projection band and path analysis.",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/{id}/report": {
            "post": {
                "tags": ["Export"],
                "summary": "Render a report card",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Export"],
                "summary": "Download a generated report",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "410": {"description": "Link expired"}
                }
            }
        }
    },
    "definitions": {
        "ImportRequest": {
            "type": "object",
            "properties": {
                "profileId": {"type": "string"},
                "text": {"type": "string"}
            },
            "required": ["text"]
        },
        "SettingsRequest": {
            "type": "object",
            "properties": {
                "niveau": {"type": "string", "enum": ["sec4", "sec5"]},
                "unitesMode": {"type": "string", "enum": ["defaut", "sans", "perso"]},
                "customUnites": {
                    "type": "object",
                    "additionalProperties": {"type": "number"}
                },
                "absenceRate": {"type": "number"}
            }
        },
        "PonderationUpdate": {
            "type": "object",
            "properties": {
                "termKey": {"type": "string", "enum": ["etape1", "etape2", "etape3"]},
                "subjectIndex": {"type": "integer"},
                "competencyIndex": {"type": "integer"},
                "assignmentIndex": {"type": "integer"},
                "pond": {"type": "string"}
            },
            "required": ["termKey", "pond"]
        },
        "PonderationsRequest": {
            "type": "object",
            "properties": {
                "updates": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/PonderationUpdate"}
                }
            },
            "required": ["updates"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
