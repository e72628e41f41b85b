package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TutorHub API",
        "description": "Tutoring marketplace: tuition requests, tutor applications, approval and payment settlement",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Applications", "description": "Tutor applications and approval decisions"},
        {"name": "Payments", "description": "Hosted checkout, settlement and payment history"},
        {"name": "Tuitions", "description": "Tuition requests posted by students"},
        {"name": "Tutors", "description": "Tutor directory"},
        {"name": "Reviews", "description": "Tutor ratings"},
        {"name": "Users", "description": "Accounts and roles"}
    ],
    "paths": {
        "/health": {
            "get": {"summary": "Liveness check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}
            }
        },
        "/applications": {
            "post": {
                "tags": ["Applications"],
                "summary": "Apply to a tuition",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Tuition assigned or application already pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/mine": {
            "get": {
                "tags": ["Applications"],
                "summary": "List my applications",
                "security": [{"Bearer": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/applications/approve/{id}": {
            "patch": {
                "tags": ["Applications"],
                "summary": "Approve an application",
                "description": "Assigns the tuition and rejects every other pending application for it in one transaction.",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Approved or already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the tuition owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown application", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Tuition already assigned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/reject/{id}": {
            "patch": {
                "tags": ["Applications"],
                "summary": "Reject an application",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Rejected or already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Approved applications are immutable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}": {
            "patch": {
                "tags": ["Applications"],
                "summary": "Edit a pending application",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateApplicationRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Applications"],
                "summary": "Withdraw an application",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/create-tutor-checkout-session": {
            "post": {
                "tags": ["Payments"],
                "summary": "Open a hosted checkout for an application",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCheckoutSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checkout URL and session id", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Application no longer payable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Gateway failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutor-payment-success": {
            "patch": {
                "tags": ["Payments"],
                "summary": "Settle a completed checkout",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "session_id", "in": "query", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Settlement outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Tuition assigned to another tutor", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/notifications": {
            "post": {
                "tags": ["Payments"],
                "summary": "Gateway payment notification",
                "responses": {
                    "200": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Bad signature", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments visible to the caller",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Payments"],
                "summary": "Export all payments as CSV",
                "security": [{"Bearer": []}],
                "produces": ["text/csv"],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/payments/{id}/receipt": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download a payment receipt",
                "security": [{"Bearer": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "PDF file"}, "404": {"description": "Not found"}}
            }
        },
        "/reviews": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Review a tutor",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReviewRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/tutors": {
            "get": {
                "tags": ["Tutors"],
                "summary": "List approved tutors",
                "parameters": [
                    {"name": "subject", "in": "query", "type": "string"},
                    {"name": "location", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Tutors"],
                "summary": "Create my tutor profile",
                "security": [{"Bearer": []}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/tutors/{id}/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "List a tutor's reviews",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/tuitions": {
            "get": {
                "tags": ["Tuitions"],
                "summary": "List tuitions",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "active", "assigned"]},
                    {"name": "subject", "in": "query", "type": "string"},
                    {"name": "location", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Tuitions"],
                "summary": "Post a tuition request",
                "security": [{"Bearer": []}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users": {
            "post": {
                "tags": ["Users"],
                "summary": "Register or refresh my account",
                "security": [{"Bearer": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"Bearer": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "SubmitApplicationRequest": {
            "type": "object",
            "required": ["tuitionId", "tutorEmail", "tutorName"],
            "properties": {
                "tuitionId": {"type": "string"},
                "tutorEmail": {"type": "string"},
                "tutorName": {"type": "string"},
                "qualifications": {"type": "string"},
                "experience": {"type": "string"},
                "expectedSalary": {"type": "number"}
            }
        },
        "UpdateApplicationRequest": {
            "type": "object",
            "properties": {
                "tutorName": {"type": "string"},
                "qualifications": {"type": "string"},
                "experience": {"type": "string"},
                "expectedSalary": {"type": "number"}
            }
        },
        "CreateCheckoutSessionRequest": {
            "type": "object",
            "required": ["amount", "tutorName", "studentEmail", "applicationId", "tuitionId"],
            "properties": {
                "amount": {"type": "number"},
                "tutorName": {"type": "string"},
                "studentEmail": {"type": "string"},
                "applicationId": {"type": "string"},
                "tuitionId": {"type": "string"}
            }
        },
        "CreateReviewRequest": {
            "type": "object",
            "required": ["tutorId", "rating"],
            "properties": {
                "tutorId": {"type": "string"},
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "comment": {"type": "string"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
