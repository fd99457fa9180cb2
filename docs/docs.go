// Package docs registers the OpenAPI document served at /swagger.
//
// Regenerate from the handler annotations with:
//
//	swag init -g cmd/server/main.go -o docs
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
        "/users/me": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Create or fetch the caller's profile",
                "operationId": "ensureProfile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.UserIdentity"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/users/{id}/follow": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Follows"],
                "summary": "Follow a user",
                "operationId": "followUser",
                "parameters": [{"type": "string", "description": "User to follow", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Self follow", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Edge partially written; retry", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Follows"],
                "summary": "Unfollow a user",
                "operationId": "unfollowUser",
                "parameters": [{"type": "string", "description": "User to unfollow", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/users/me/status/{kind}/{gameId}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Add a game to played or wishlist",
                "operationId": "addStatus",
                "parameters": [
                    {"enum": ["played", "wishlist"], "type": "string", "description": "Collection", "name": "kind", "in": "path", "required": true},
                    {"type": "string", "description": "Game ID", "name": "gameId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.StatusEntry"}},
                    "400": {"description": "Unknown kind or bad body", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/users/{id}/status/{kind}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "List a user's played or wishlist games",
                "operationId": "listStatus",
                "parameters": [
                    {"type": "string", "description": "User ID or \"me\"", "name": "id", "in": "path", "required": true},
                    {"enum": ["played", "wishlist"], "type": "string", "description": "Collection", "name": "kind", "in": "path", "required": true},
                    {"type": "integer", "default": 100, "description": "Max entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.StatusEntry"}}},
                    "304": {"description": "Not Modified"}
                }
            }
        },
        "/users/me/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Notifications"],
                "summary": "List the caller's notifications",
                "operationId": "listNotifications",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/games/{id}/comments": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Comments"],
                "summary": "List a game's comments",
                "operationId": "listComments",
                "parameters": [
                    {"type": "string", "description": "Game ID", "name": "id", "in": "path", "required": true},
                    {"enum": ["newest", "oldest", "top"], "type": "string", "description": "Order", "name": "sort", "in": "query"},
                    {"type": "string", "description": "Only comments for this platform", "name": "platform", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}
            }
        }
    },
    "definitions": {
        "domain.UserIdentity": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "domain.StatusEntry": {
            "type": "object",
            "properties": {
                "game_id": {"type": "string"},
                "name": {"type": "string"},
                "cover": {"type": "string"},
                "added_at": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Game Social API",
	Description:      "Follows, played/wishlist collections, notification inboxes, activity feeds and comments.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
