package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Estação Terapia API",
        "description": "Teletherapy marketplace backend: agenda, consultations, cancellation review and payouts",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Agenda", "description": "Psychologist agenda slots"},
        {"name": "Appointments", "description": "Consultation lifecycle"},
        {"name": "Cancellations", "description": "Cancellation and reschedule requests"},
        {"name": "Withdrawals", "description": "Psychologist payout requests"},
        {"name": "Documents", "description": "Supporting file uploads"},
        {"name": "Reports", "description": "Asynchronous CSV/PDF exports"},
        {"name": "Dashboard", "description": "Back-office counters"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/agenda": {
            "get": {
                "tags": ["Agenda"],
                "summary": "List agenda slots",
                "parameters": [
                    {"name": "psychologistId", "in": "query", "type": "string"},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"},
                    {"name": "onlyFree", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Agenda"],
                "summary": "Open an agenda slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAgendaSlotRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/agenda/{id}": {
            "delete": {
                "tags": ["Agenda"],
                "summary": "Remove an unbooked slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Slot already booked"}
                }
            }
        },
        "/appointments": {
            "get": {
                "tags": ["Appointments"],
                "summary": "List appointments",
                "parameters": [
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "psychologistId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Appointments"],
                "summary": "Book an appointment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookAppointmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot already booked"},
                    "412": {"description": "Insufficient credits"}
                }
            }
        },
        "/appointments/{id}": {
            "get": {
                "tags": ["Appointments"],
                "summary": "Get appointment detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/appointments/{id}/start": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Start a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}
            }
        },
        "/appointments/{id}/complete": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Complete a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid transition"}}
            }
        },
        "/appointments/{id}/no-show": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Register a no-show",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/NoShowRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/appointments/{id}/admin-cancel": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Cancel on behalf of the platform",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminCancelRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/appointments/decredential": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Decredential a psychologist",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecredentialRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cancellations": {
            "get": {
                "tags": ["Cancellations"],
                "summary": "List cancellation/reschedule requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Cancellations"],
                "summary": "Open a cancellation or reschedule request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCancellationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Justification required outside the grace window"},
                    "409": {"description": "Open request already exists"}
                }
            }
        },
        "/cancellations/{id}": {
            "get": {
                "tags": ["Cancellations"],
                "summary": "Get request detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cancellations/{id}/review": {
            "post": {
                "tags": ["Cancellations"],
                "summary": "Review a pending request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Already reviewed"}
                }
            }
        },
        "/withdrawals": {
            "get": {
                "tags": ["Withdrawals"],
                "summary": "List withdrawal requests",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Withdrawals"],
                "summary": "Open a withdrawal request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateWithdrawalRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/withdrawals/{id}/review": {
            "post": {
                "tags": ["Withdrawals"],
                "summary": "Review a withdrawal request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List documents",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "kind", "in": "formData", "required": true, "type": "string"}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/documents/{id}/url": {
            "get": {
                "tags": ["Documents"],
                "summary": "Issue a signed download link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/documents/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download by signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "File stream"}, "403": {"description": "Invalid or expired token"}}
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List export jobs",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Enqueue an export job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReportRequest"}}
                ],
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download by signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "File stream"}}
            }
        },
        "/dashboard/summary": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Admin dashboard summary",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "CreateAgendaSlotRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "horario": {"type": "string"}
            },
            "required": ["date", "horario"]
        },
        "BookAppointmentRequest": {
            "type": "object",
            "properties": {
                "agendaSlotId": {"type": "string"}
            },
            "required": ["agendaSlotId"]
        },
        "NoShowRequest": {
            "type": "object",
            "properties": {
                "absent": {"type": "string", "enum": ["PACIENTE", "PSICOLOGO"]}
            },
            "required": ["absent"]
        },
        "AdminCancelRequest": {
            "type": "object",
            "properties": {
                "motivo": {"type": "string"}
            },
            "required": ["motivo"]
        },
        "DecredentialRequest": {
            "type": "object",
            "properties": {
                "psychologistId": {"type": "string"},
                "motivo": {"type": "string"}
            },
            "required": ["psychologistId", "motivo"]
        },
        "CreateCancellationRequest": {
            "type": "object",
            "properties": {
                "appointmentId": {"type": "string"},
                "type": {"type": "string", "enum": ["CANCELAMENTO", "REAGENDAMENTO"]},
                "motivo": {"type": "string"},
                "forcaMaior": {"type": "boolean"},
                "documentId": {"type": "string"},
                "newDate": {"type": "string"},
                "newHorario": {"type": "string"}
            },
            "required": ["appointmentId", "type"]
        },
        "ReviewRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "note": {"type": "string"}
            },
            "required": ["status"]
        },
        "CreateWithdrawalRequest": {
            "type": "object",
            "properties": {
                "amountCents": {"type": "integer"},
                "pixKey": {"type": "string"},
                "notaFiscalId": {"type": "string"}
            },
            "required": ["amountCents", "pixKey"]
        },
        "CreateReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "params": {"type": "object"}
            },
            "required": ["type", "format"]
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
