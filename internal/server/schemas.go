package server

// JSON Schema documents used to shape-check request payloads before they
// reach the engine. Semantic validation (address syntax, content modes)
// stays in the dispatch package.

const sendSchema = `{
	"type": "object",
	"required": ["to"],
	"additionalProperties": false,
	"properties": {
		"to":       {"type": "string", "maxLength": 255},
		"from":     {"type": "string", "maxLength": 255},
		"cc":       {"type": "string", "maxLength": 1000},
		"bcc":      {"type": "string", "maxLength": 1000},
		"replyTo":  {"type": "string", "maxLength": 255},
		"subject":  {"type": "string", "maxLength": 500},
		"body":     {"type": "string", "maxLength": 100000},
		"template": {"type": "string", "maxLength": 100},
		"context":  {"type": "object"}
	}
}`

const preferenceUpdateSchema = `{
	"type": "object",
	"required": ["email"],
	"additionalProperties": false,
	"properties": {
		"email":      {"type": "string", "maxLength": 255},
		"suppressed": {"type": "boolean"},
		"digestOnly": {"type": "boolean"},
		"frequency":  {"type": "string", "enum": ["realtime", "hourly", "daily", "weekly"]}
	}
}`

const preferenceCheckSchema = `{
	"type": "object",
	"required": ["email"],
	"additionalProperties": false,
	"properties": {
		"email": {"type": "string", "maxLength": 255}
	}
}`

const templateValidateSchema = `{
	"type": "object",
	"required": ["template"],
	"additionalProperties": false,
	"properties": {
		"template": {"type": "string", "maxLength": 100000}
	}
}`
