// Package action maps request types to handlers. A Table holds named
// actions with their required parameters; Background wraps a handler so a
// request carrying background_job=true is launched as a background job
// instead of being answered inline.
package action
