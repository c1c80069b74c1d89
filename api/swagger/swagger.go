package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Case Assignment API",
        "description": "Rule-driven attorney assignment, transfers and workload tracking for legal cases.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Assignments",
            "description": "Case assignment lifecycle"
        },
        {
            "name": "Transfers",
            "description": "Approval workflow for moving a case between attorneys"
        },
        {
            "name": "Rules",
            "description": "Assignment rule administration"
        },
        {
            "name": "Attorneys",
            "description": "Expertise and workload"
        },
        {
            "name": "Exports",
            "description": "Signed history downloads"
        }
    ],
    "paths": {
        "/cases/{caseId}/assignments": {
            "get": {
                "tags": [
                    "Assignments"
                ],
                "summary": "List active assignments of a case",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "caseId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Assignments"
                ],
                "summary": "Assign a case manually or through the rule engine",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "caseId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AssignCaseRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cases/{caseId}/assignments/reassign": {
            "post": {
                "tags": [
                    "Assignments"
                ],
                "summary": "Reassign a case role",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "caseId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReassignCaseRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cases/{caseId}/release": {
            "post": {
                "tags": [
                    "Assignments"
                ],
                "summary": "Release every active assignment of a closed case",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "caseId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReleaseCaseRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cases/{caseId}/assignments/history": {
            "get": {
                "tags": [
                    "Assignments"
                ],
                "summary": "Paginated assignment history",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "caseId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/cases/{caseId}/assignments/history/export": {
            "post": {
                "tags": [
                    "Assignments"
                ],
                "summary": "Export assignment history as CSV or PDF",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "caseId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/assignments/{id}/deactivate": {
            "post": {
                "tags": [
                    "Assignments"
                ],
                "summary": "Deactivate one assignment",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DeactivateAssignmentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": [
                    "Exports"
                ],
                "summary": "Download a history export",
                "produces": [
                    "application/octet-stream"
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File"
                    },
                    "404": {
                        "description": "Not found or expired"
                    }
                }
            }
        },
        "/transfers": {
            "get": {
                "tags": [
                    "Transfers"
                ],
                "summary": "List transfer requests",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Transfers"
                ],
                "summary": "Request a case transfer",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateTransferRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/transfers/{id}": {
            "get": {
                "tags": [
                    "Transfers"
                ],
                "summary": "Get a transfer request",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/transfers/{id}/process": {
            "post": {
                "tags": [
                    "Transfers"
                ],
                "summary": "Approve, reject or cancel a pending transfer",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ProcessTransferRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/rules": {
            "get": {
                "tags": [
                    "Rules"
                ],
                "summary": "List assignment rules",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Rules"
                ],
                "summary": "Create an assignment rule",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertRuleRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/rules/{id}": {
            "get": {
                "tags": [
                    "Rules"
                ],
                "summary": "Get an assignment rule",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Rules"
                ],
                "summary": "Replace an assignment rule",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertRuleRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/rules/{id}/deactivate": {
            "post": {
                "tags": [
                    "Rules"
                ],
                "summary": "Deactivate an assignment rule",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/rules/evaluate": {
            "post": {
                "tags": [
                    "Rules"
                ],
                "summary": "Dry-run rule selection for a case",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EvaluateRuleRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/attorneys/{id}/expertise": {
            "get": {
                "tags": [
                    "Attorneys"
                ],
                "summary": "List expertise with computed scores",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Attorneys"
                ],
                "summary": "Upsert one expertise area",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertExpertiseRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/attorneys/{id}/workload": {
            "get": {
                "tags": [
                    "Attorneys"
                ],
                "summary": "Latest workload snapshot",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/attorneys/{id}/workload/recalculate": {
            "post": {
                "tags": [
                    "Attorneys"
                ],
                "summary": "Recalculate workload now",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "AssignCaseRequest": {
            "type": "object",
            "properties": {
                "roleType": {
                    "type": "string",
                    "enum": [
                        "LEAD_ATTORNEY",
                        "ASSOCIATE",
                        "PARALEGAL",
                        "REVIEWER"
                    ]
                },
                "assignmentType": {
                    "type": "string",
                    "enum": [
                        "MANUAL",
                        "AUTOMATIC",
                        "RULE_BASED"
                    ]
                },
                "userId": {
                    "type": "string"
                },
                "effectiveFrom": {
                    "type": "string",
                    "format": "date-time"
                },
                "effectiveTo": {
                    "type": "string",
                    "format": "date-time"
                },
                "workloadWeight": {
                    "type": "number"
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "ReassignCaseRequest": {
            "type": "object",
            "properties": {
                "roleType": {
                    "type": "string"
                },
                "newUserId": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "ReleaseCaseRequest": {
            "type": "object",
            "properties": {
                "reason": {
                    "type": "string"
                },
                "successful": {
                    "type": "boolean"
                }
            }
        },
        "DeactivateAssignmentRequest": {
            "type": "object",
            "properties": {
                "reasonCode": {
                    "type": "string",
                    "enum": [
                        "REMOVED",
                        "EXPIRED"
                    ]
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "CreateTransferRequest": {
            "type": "object",
            "properties": {
                "caseId": {
                    "type": "string"
                },
                "fromUserId": {
                    "type": "string"
                },
                "toUserId": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "urgency": {
                    "type": "string",
                    "enum": [
                        "LOW",
                        "MEDIUM",
                        "HIGH",
                        "URGENT"
                    ]
                }
            }
        },
        "ProcessTransferRequest": {
            "type": "object",
            "properties": {
                "decision": {
                    "type": "string",
                    "enum": [
                        "APPROVED",
                        "REJECTED",
                        "CANCELLED"
                    ]
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "UpsertRuleRequest": {
            "type": "object",
            "properties": {
                "ruleName": {
                    "type": "string"
                },
                "ruleType": {
                    "type": "string",
                    "enum": [
                        "EXPERTISE_BASED",
                        "WORKLOAD_BALANCED",
                        "PREFERRED_ATTORNEY",
                        "CUSTOM"
                    ]
                },
                "caseType": {
                    "type": "string"
                },
                "priorityOrder": {
                    "type": "integer"
                },
                "maxWorkloadPercentage": {
                    "type": "number"
                },
                "minExpertiseScore": {
                    "type": "number"
                },
                "preferPreviousAttorney": {
                    "type": "boolean"
                },
                "ruleConditions": {
                    "type": "object"
                },
                "ruleActions": {
                    "type": "object"
                }
            }
        },
        "EvaluateRuleRequest": {
            "type": "object",
            "properties": {
                "caseId": {
                    "type": "string"
                }
            }
        },
        "UpsertExpertiseRequest": {
            "type": "object",
            "properties": {
                "expertiseArea": {
                    "type": "string"
                },
                "proficiencyLevel": {
                    "type": "string",
                    "enum": [
                        "BEGINNER",
                        "INTERMEDIATE",
                        "ADVANCED",
                        "EXPERT"
                    ]
                },
                "yearsExperience": {
                    "type": "integer"
                },
                "casesHandled": {
                    "type": "integer"
                },
                "successRate": {
                    "type": "number"
                },
                "lastCaseDate": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
