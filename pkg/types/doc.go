// Package types defines the Cypress entities (workspaces, folders, files,
// users, collaborators, subscriptions), the Gateway and Backend interfaces
// every storage backend implements, and the standard errors shared by all
// packages.
package types
