// Package docs holds the Swagger document for the school API, served by
// gin-swagger at /swagger/index.html.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["students"],
                "summary": "List all students",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.studentResponse"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/read/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["students"],
                "summary": "Read a student by id",
                "parameters": [
                    {"type": "integer", "description": "Student id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.studentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/read/born-after/{date}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["students"],
                "summary": "List students born after a date",
                "parameters": [
                    {"type": "string", "description": "Date (YYYY-MM-DD)", "name": "date", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.studentResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/create": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["students"],
                "summary": "Register a student",
                "parameters": [
                    {"description": "Student", "name": "student", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.createStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.studentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/update/{id}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["students"],
                "summary": "Update a student",
                "parameters": [
                    {"type": "integer", "description": "Student id", "name": "id", "in": "path", "required": true},
                    {"description": "Student", "name": "student", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.updateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.studentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/delete/{id}": {
            "delete": {
                "tags": ["students"],
                "summary": "Delete a student",
                "parameters": [
                    {"type": "integer", "description": "Student id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.healthResponse"}}}
            }
        },
        "/health/deep": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Probe all dependencies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.deepHealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.deepHealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.readinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.readinessResponse"}}
                }
            }
        },
        "/admin/bootstrap": {
            "post": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Re-run the bootstrap",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "api.deepHealthResponse": {
            "type": "object",
            "properties": {
                "dependencies": {"type": "object", "additionalProperties": {"$ref": "#/definitions/bootstrap.ProbeResult"}},
                "failed": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "example": "degraded"}
            }
        },
        "api.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "student not found"},
                "status": {"type": "string", "example": "error"}
            }
        },
        "api.createStudentRequest": {
            "type": "object",
            "required": ["firstName", "id", "lastName"],
            "properties": {
                "birthDate": {"type": "string", "example": "2000-01-01"},
                "firstName": {"type": "string", "example": "John"},
                "id": {"type": "integer", "example": 1},
                "lastName": {"type": "string", "example": "Doe"}
            }
        },
        "api.healthResponse": {
            "type": "object",
            "properties": {
                "service": {"type": "string", "example": "school"},
                "status": {"type": "string", "example": "alive"}
            }
        },
        "api.readinessResponse": {
            "type": "object",
            "properties": {
                "failed": {"type": "array", "items": {"type": "string"}},
                "inProgress": {"type": "boolean"},
                "ready": {"type": "boolean"},
                "status": {"type": "string", "example": "degraded"}
            }
        },
        "api.studentResponse": {
            "type": "object",
            "properties": {
                "age": {"type": "integer", "example": 24},
                "birthDate": {"type": "string", "example": "2000-01-01"},
                "firstName": {"type": "string", "example": "John"},
                "id": {"type": "integer", "example": 1},
                "lastName": {"type": "string", "example": "Doe"}
            }
        },
        "api.updateStudentRequest": {
            "type": "object",
            "required": ["firstName", "lastName"],
            "properties": {
                "birthDate": {"type": "string", "example": "2000-01-01"},
                "firstName": {"type": "string", "example": "John"},
                "id": {"type": "integer", "example": 1},
                "lastName": {"type": "string", "example": "Doe"}
            }
        },
        "bootstrap.ProbeResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "latencyMs": {"type": "integer"},
                "name": {"type": "string"},
                "ok": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "School API",
	Description:      "Student registry with schema bootstrap, cache and lifecycle events.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
