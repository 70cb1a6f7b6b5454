package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PermitFlow API",
        "description": "Permit-to-work submission, approval and tracking.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "Permits", "description": "Submission, resubmission and tracking"},
        {"name": "Approvals", "description": "Tokenized approver actions"},
        {"name": "Admin", "description": "Reporting for administrators"},
        {"name": "Files", "description": "Signed evidence downloads"}
    ],
    "paths": {
        "/health": {
            "get": {"summary": "Liveness check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is unavailable"}}
            }
        },
        "/api/v1/permits": {
            "post": {
                "tags": ["Permits"],
                "summary": "Submit a permit-to-work request",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "payload", "in": "formData", "type": "string", "description": "Permit form as JSON"},
                    {"name": "ppe", "in": "formData", "type": "file"},
                    {"name": "team", "in": "formData", "type": "file"},
                    {"name": "certifications", "in": "formData", "type": "file"},
                    {"name": "siteConditions", "in": "formData", "type": "file"},
                    {"name": "originalTrackingId", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Risk assessment not confirmed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/permits/resubmit": {
            "post": {
                "tags": ["Permits"],
                "summary": "Resubmit a corrected permit replacing an earlier one",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitPermitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Original permit already resubmitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/permits/track": {
            "get": {
                "tags": ["Permits"],
                "summary": "Track a permit by tracking ID",
                "parameters": [
                    {"name": "id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Tracking ID not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/approvals/{token}": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Load a pending permit for the approver",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Invalid or expired approval token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already actioned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/approvals/{token}/decision": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve or reject a permit",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Invalid or expired approval token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already actioned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/permits": {
            "get": {
                "tags": ["Admin"],
                "summary": "List permits",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["Pending", "Approved", "Rejected", "Resubmitted"]},
                    {"name": "region", "in": "query", "type": "string"},
                    {"name": "circle", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/permits/summary": {
            "get": {
                "tags": ["Admin"],
                "summary": "Dashboard summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/files": {
            "get": {
                "tags": ["Files"],
                "summary": "Download an uploaded evidence file",
                "produces": ["image/jpeg", "image/png", "image/webp", "image/heic", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File content"},
                    "404": {"description": "File not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TeamMember": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "farmOrToclip": {"type": "string"}
            }
        },
        "SubmitPermitRequest": {
            "type": "object",
            "properties": {
                "requesterCompany": {"type": "string"},
                "siteName": {"type": "string"},
                "siteId": {"type": "string"},
                "region": {"type": "string"},
                "circle": {"type": "string"},
                "teamMembers": {"type": "array", "items": {"$ref": "#/definitions/TeamMember"}},
                "workTypes": {"type": "array", "items": {"type": "string"}},
                "otherWorkDescription": {"type": "string"},
                "riskAssessment": {"type": "string", "enum": ["I confirm", "I do not confirm"]},
                "ppeConfirmation": {"type": "string", "enum": ["Confirmed", "Not confirmed"]},
                "toolBoxTalks": {"type": "array", "items": {"type": "string"}},
                "permissionDate": {"type": "string", "format": "date"},
                "requesterEmail": {"type": "string", "format": "email"},
                "approverEmail": {"type": "string", "format": "email"},
                "contactNumber": {"type": "string"},
                "declaration": {"type": "boolean"},
                "originalTrackingId": {"type": "string"}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["Approved", "Rejected"]},
                "remarks": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"},
                "warnings": {"type": "array", "items": {"type": "string"}}
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
