package tooling

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaRegistry compiles every tool's input schema once, on first use.
type schemaRegistry struct {
	once    sync.Once
	initErr error
	byTool  map[string]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		raw := map[string]string{
			"read_file":      readFileSchema,
			"grep_search":    grepSearchSchema,
			"file_search":    fileSearchSchema,
			"list_directory": listDirectorySchema,
			"edit_file":      editFileSchema,
			"create_file":    createFileSchema,
			"delete_file":    deleteFileSchema,
			"note_to_self":   noteToSelfSchema,
			"dismiss_note":   dismissNoteSchema,
			"recall_memory":  recallMemorySchema,
			"done":           doneSchema,
			"submit_plan":    submitPlanSchema,
			"git_diff":       gitDiffSchema,
		}
		schemas.byTool = make(map[string]*jsonschema.Schema, len(raw))
		for name, s := range raw {
			compiled, err := jsonschema.CompileString("tool_"+name, s)
			if err != nil {
				schemas.initErr = err
				return
			}
			schemas.byTool[name] = compiled
		}
	})
	return schemas.initErr
}

// validateInput checks input against the named tool's compiled schema.
// An unknown tool name is not a schema error — Dispatch handles that as
// an unknown-tool result.
func validateInput(name string, input map[string]any) error {
	if err := initSchemas(); err != nil {
		return err
	}
	schema, ok := schemas.byTool[name]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}

const readFileSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": { "type": "string", "minLength": 1 },
    "startLine": { "type": "integer", "minimum": 1 },
    "endLine": { "type": "integer", "minimum": 1 }
  },
  "additionalProperties": false
}`

const grepSearchSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": { "type": "string", "minLength": 1 },
    "includePattern": { "type": "string" }
  },
  "additionalProperties": false
}`

const fileSearchSchema = `{
  "type": "object",
  "required": ["glob"],
  "properties": {
    "glob": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const listDirectorySchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": { "type": "string" }
  },
  "additionalProperties": false
}`

const editFileSchema = `{
  "type": "object",
  "required": ["path", "oldString", "newString"],
  "properties": {
    "path": { "type": "string", "minLength": 1 },
    "oldString": { "type": "string" },
    "newString": { "type": "string" }
  },
  "additionalProperties": false
}`

const createFileSchema = `{
  "type": "object",
  "required": ["path", "content"],
  "properties": {
    "path": { "type": "string", "minLength": 1 },
    "content": { "type": "string" }
  },
  "additionalProperties": false
}`

const deleteFileSchema = `{
  "type": "object",
  "required": ["path"],
  "properties": {
    "path": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const noteToSelfSchema = `{
  "type": "object",
  "required": ["content"],
  "properties": {
    "content": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const dismissNoteSchema = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const recallMemorySchema = `{
  "type": "object",
  "properties": {
    "query": { "type": "string" },
    "id": { "type": "string" }
  },
  "additionalProperties": false
}`

const doneSchema = `{
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const submitPlanSchema = `{
  "type": "object",
  "required": ["title", "description", "implementation"],
  "properties": {
    "title": { "type": "string", "minLength": 1 },
    "description": { "type": "string", "minLength": 1 },
    "implementation": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const gitDiffSchema = `{
  "type": "object",
  "additionalProperties": false
}`
