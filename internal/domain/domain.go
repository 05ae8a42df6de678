// Package domain holds the small data types shared across sessions and
// the controller that don't belong to any single component: Plan (C7
// Planner output, C8 input) and EditOperation (C7 Builder/Fixer output).
package domain

// Plan is produced once by the Planner session, consumed once by the
// Builder session, and never mutated after creation.
type Plan struct {
	Title          string
	Description    string
	Implementation string
}

// EditOpKind tags the EditOperation variant.
type EditOpKind string

const (
	EditReplace EditOpKind = "replace"
	EditCreate  EditOpKind = "create"
	EditDelete  EditOpKind = "delete"
)

// EditOperation is one of Replace/Create/Delete, built by the session
// package's extractEdits from a successful edit_file/create_file/
// delete_file call.
type EditOperation struct {
	Kind     EditOpKind
	FilePath string

	// Replace-only.
	OldString string
	NewString string

	// Create-only.
	Content string
}

// Replace constructs a Replace EditOperation.
func Replace(path, oldString, newString string) EditOperation {
	return EditOperation{Kind: EditReplace, FilePath: path, OldString: oldString, NewString: newString}
}

// Create constructs a Create EditOperation.
func Create(path, content string) EditOperation {
	return EditOperation{Kind: EditCreate, FilePath: path, Content: content}
}

// Delete constructs a Delete EditOperation.
func Delete(path string) EditOperation {
	return EditOperation{Kind: EditDelete, FilePath: path}
}
