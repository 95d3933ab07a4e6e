// Package docs registers the OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

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
    "paths": {
        "/v1/requests": {
            "post": {
                "summary": "Register a citizen petition",
                "tags": ["requests"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/TransitionResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/requests/{request_id}": {
            "get": {
                "summary": "Get a request",
                "tags": ["requests"],
                "parameters": [{"$ref": "#/parameters/RequestID"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/requests/{request_id}/assign": {"post": {"summary": "Assign to a responsible with a business-day term", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}, "409": {"description": "Invalid state or conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
        "/v1/requests/{request_id}/reassign": {"post": {"summary": "Reassign to another responsible", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}}}},
        "/v1/requests/{request_id}/submit": {"post": {"summary": "Submit a draft response for review", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}}}},
        "/v1/requests/{request_id}/approve": {"post": {"summary": "Approve the reviewed response", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}}}},
        "/v1/requests/{request_id}/return": {"post": {"summary": "Return the response for correction", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}}}},
        "/v1/requests/{request_id}/sign": {"post": {"summary": "Attach the signed response", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}}}},
        "/v1/requests/{request_id}/finalize": {"post": {"summary": "Attach delivery evidence and close", "tags": ["transitions"], "parameters": [{"$ref": "#/parameters/RequestID"}, {"$ref": "#/parameters/ActorID"}, {"$ref": "#/parameters/ActorRole"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionResponse"}}}}},
        "/v1/requests/{request_id}/history": {"get": {"summary": "Ordered audit trail", "tags": ["requests"], "parameters": [{"$ref": "#/parameters/RequestID"}], "responses": {"200": {"description": "OK"}}}},
        "/v1/requests/{request_id}/holder": {"get": {"summary": "Current holder", "tags": ["requests"], "parameters": [{"$ref": "#/parameters/RequestID"}], "responses": {"200": {"description": "OK"}}}},
        "/v1/requests/{request_id}/deadline": {"get": {"summary": "Deadline status", "tags": ["deadlines"], "parameters": [{"$ref": "#/parameters/RequestID"}], "responses": {"200": {"description": "OK"}}}},
        "/v1/tracking/{radicado}": {"get": {"summary": "Citizen tracking by radicado", "tags": ["tracking"], "parameters": [{"in": "path", "name": "radicado", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/v1/deadlines/preview": {"get": {"summary": "Preview a due date", "tags": ["deadlines"], "parameters": [{"in": "query", "name": "start", "type": "string", "format": "date"}, {"in": "query", "name": "business_days", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/v1/summary": {"get": {"summary": "Request counts per state", "tags": ["requests"], "responses": {"200": {"description": "OK"}}}}
    },
    "parameters": {
        "RequestID": {"in": "path", "name": "request_id", "type": "string", "required": true},
        "ActorID": {"in": "header", "name": "X-Actor-Id", "type": "string", "required": true},
        "ActorRole": {"in": "header", "name": "X-Actor-Role", "type": "string", "required": true, "enum": ["assigner", "responsible", "reviewer", "signer", "finalizer", "admin", "citizen"]}
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "retryable": {"type": "boolean"}
            }
        },
        "CreateRequestRequest": {
            "type": "object",
            "properties": {
                "citizen": {"type": "object"},
                "message": {"type": "string"},
                "attachment": {"type": "object"}
            }
        },
        "TransitionResponse": {
            "type": "object",
            "properties": {
                "request": {"type": "object"},
                "event": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "PQRSD Request Lifecycle API",
	Description:      "Citizen petition intake, assignment, review, signature and delivery.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
