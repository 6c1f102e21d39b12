package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "OrbitCal API",
        "description": "Recurring-event scheduling and occurrence materialization service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Events", "description": "Recurring event series management"},
        {"name": "Occurrences", "description": "Materialized occurrence slots"}
    ],
    "paths": {
        "/events": {
            "post": {
                "tags": ["Events"],
                "summary": "Create a recurring event series",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEventRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid rule or unknown timezone", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}": {
            "get": {
                "tags": ["Events"],
                "summary": "Get an event series",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Events"],
                "summary": "Apply a scoped edit (SINGLE, THIS_AND_FUTURE or ALL)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SeriesUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Events"],
                "summary": "Delete a series and all its occurrences",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/events/{id}/materialize": {
            "post": {
                "tags": ["Events"],
                "summary": "Extend the series' materialization horizon",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MaterializeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Expansion ceiling exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/occurrences/{date}": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "Get one occurrence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No occurrence on that date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Occurrences"],
                "summary": "Override one occurrence without touching the series",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SlotOverride"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Occurrences"],
                "summary": "Remove one occurrence permanently",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/events/{id}/occurrences/{date}/cancel": {
            "post": {
                "tags": ["Occurrences"],
                "summary": "Cancel one occurrence, keeping its row for history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/occurrences": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "List occurrences in a date range",
                "parameters": [
                    {"name": "ownerId", "in": "query", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/occurrences/export": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "Export occurrences as ICS, CSV or PDF",
                "parameters": [
                    {"name": "ownerId", "in": "query", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["ics", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered document"}
                }
            }
        }
    },
    "definitions": {
        "RecurrenceRule": {
            "type": "object",
            "properties": {
                "frequency": {"type": "string", "enum": ["DAILY", "WEEKLY", "MONTHLY", "YEARLY"]},
                "interval": {"type": "integer"},
                "by_weekdays": {"type": "array", "items": {"type": "integer"}},
                "day_of_month": {"type": "integer"},
                "until": {"type": "string", "format": "date"},
                "count": {"type": "integer"}
            },
            "required": ["frequency", "interval"]
        },
        "CreateEventRequest": {
            "type": "object",
            "properties": {
                "owner_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "start_date": {"type": "string", "format": "date-time"},
                "start_minute": {"type": "integer"},
                "duration_minutes": {"type": "integer"},
                "timezone": {"type": "string"},
                "all_day": {"type": "boolean"},
                "recurrence": {"$ref": "#/definitions/RecurrenceRule"},
                "rrule": {"type": "string"},
                "materialize_to": {"type": "string", "format": "date-time"}
            },
            "required": ["owner_id", "title", "start_date"]
        },
        "SeriesUpdateRequest": {
            "type": "object",
            "properties": {
                "scope": {"type": "string", "enum": ["SINGLE", "THIS_AND_FUTURE", "ALL"]},
                "target_date": {"type": "string", "format": "date"},
                "template": {"$ref": "#/definitions/TemplateEdit"},
                "override": {"$ref": "#/definitions/SlotOverride"}
            },
            "required": ["scope"]
        },
        "TemplateEdit": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "start_minute": {"type": "integer"},
                "duration_minutes": {"type": "integer"},
                "timezone": {"type": "string"}
            }
        },
        "SlotOverride": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "start_minute": {"type": "integer"},
                "duration_minutes": {"type": "integer"}
            }
        },
        "MaterializeRequest": {
            "type": "object",
            "properties": {
                "through": {"type": "string", "format": "date"}
            },
            "required": ["through"]
        },
        "OccurrenceSlot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "event_id": {"type": "string"},
                "local_date": {"type": "string", "format": "date"},
                "start_utc": {"type": "string", "format": "date-time"},
                "end_utc": {"type": "string", "format": "date-time"},
                "is_modified": {"type": "boolean"},
                "is_cancelled": {"type": "boolean"},
                "override_title": {"type": "string"},
                "override_start_minute": {"type": "integer"},
                "override_duration_minutes": {"type": "integer"},
                "tz_classification": {"type": "string", "enum": ["UNAMBIGUOUS", "RESOLVED_FORWARD_FROM_GAP", "RESOLVED_EARLIER_OF_PAIR", "RESOLVED_LATER_OF_PAIR", "FLOATING"]},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
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
