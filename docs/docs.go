// Package docs registers the OpenAPI document served at /swagger. Regenerate
// with `swag init -g cmd/docpilot/main.go`.
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
        "/health": {"get": {"tags": ["System"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/plans": {"get": {"tags": ["Plans"], "summary": "List active plans", "responses": {"200": {"description": "OK"}}}},
        "/webhooks/payments": {"post": {"tags": ["Webhooks"], "summary": "Payment provider webhook", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}}}},
        "/webhooks/wechatpay": {"post": {"tags": ["Webhooks"], "summary": "WeChat Pay v3 notification", "responses": {"200": {"description": "OK"}}}},
        "/checkout": {"post": {"security": [{"Bearer": []}], "tags": ["Checkout"], "summary": "Create checkout", "responses": {"200": {"description": "Reused"}, "201": {"description": "Created"}}}},
        "/points/balance": {"get": {"security": [{"Bearer": []}], "tags": ["Points"], "summary": "Get point balance", "responses": {"200": {"description": "OK"}}}},
        "/points/flows": {"get": {"security": [{"Bearer": []}], "tags": ["Points"], "summary": "List point flows", "responses": {"200": {"description": "OK"}}}},
        "/points/consume": {"post": {"security": [{"Bearer": []}], "tags": ["Points"], "summary": "Consume points", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/entitlements": {"get": {"security": [{"Bearer": []}], "tags": ["Entitlements"], "summary": "Get caller entitlements", "responses": {"200": {"description": "OK"}}}},
        "/admin/plans": {
            "get": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "List all plans", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "Create plan", "responses": {"201": {"description": "Created"}}}
        },
        "/admin/plans/{code}": {"patch": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "Update plan", "responses": {"200": {"description": "OK"}}}},
        "/admin/plans/{code}/status": {"patch": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "Update plan status", "responses": {"200": {"description": "OK"}}}},
        "/admin/plans/{code}/entitlements/{key}": {
            "put": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "Upsert plan entitlement", "responses": {"200": {"description": "OK"}}},
            "delete": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "Delete plan entitlement", "responses": {"204": {"description": "No Content"}}}
        },
        "/admin/points/adjust": {"post": {"security": [{"Bearer": []}], "tags": ["Admin Billing"], "summary": "Adjust points", "responses": {"200": {"description": "OK"}}}}
    },
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "DocPilot Billing API",
	Description:      "Payments, points ledger and plan entitlements.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
