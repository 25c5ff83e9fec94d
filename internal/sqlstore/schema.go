package sqlstore

// Table DDL. Every column is TEXT so one schema serves both SQLite and
// Postgres; timestamps use timeLayout.
const (
	createUsers = `CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TEXT
);`

	createWorkspaces = `CREATE TABLE IF NOT EXISTS workspaces (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    workspace_owner TEXT NOT NULL,
    icon_id TEXT NOT NULL DEFAULT '',
    logo TEXT,
    banner_url TEXT NOT NULL DEFAULT '',
    created_at TEXT,
    in_trash TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT ''
);`

	createFolders = `CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    title TEXT NOT NULL,
    icon_id TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '',
    banner_url TEXT NOT NULL DEFAULT '',
    created_at TEXT,
    in_trash TEXT NOT NULL DEFAULT ''
);`

	createFiles = `CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    folder_id TEXT NOT NULL,
    workspace_id TEXT NOT NULL,
    title TEXT NOT NULL,
    icon_id TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '',
    banner_url TEXT NOT NULL DEFAULT '',
    created_at TEXT,
    in_trash TEXT NOT NULL DEFAULT ''
);`

	createCollaborators = `CREATE TABLE IF NOT EXISTS collaborators (
    workspace_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    created_at TEXT,
    PRIMARY KEY (workspace_id, user_id)
);`

	createSubscriptions = `CREATE TABLE IF NOT EXISTS subscriptions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    created_at TEXT
);`
)

const (
	idxWorkspacesOwner    = `CREATE INDEX IF NOT EXISTS idx_workspaces_owner ON workspaces(workspace_owner);`
	idxFoldersWorkspace   = `CREATE INDEX IF NOT EXISTS idx_folders_workspace ON folders(workspace_id);`
	idxFilesFolder        = `CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id);`
	idxFilesWorkspace     = `CREATE INDEX IF NOT EXISTS idx_files_workspace ON files(workspace_id);`
	idxCollaboratorsUser  = `CREATE INDEX IF NOT EXISTS idx_collaborators_user ON collaborators(user_id);`
	idxUsersEmailPrefixes = `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`
)

var schemaDDL = []string{
	createUsers,
	createWorkspaces,
	createFolders,
	createFiles,
	createCollaborators,
	createSubscriptions,
}

var indexDDL = []string{
	idxWorkspacesOwner,
	idxFoldersWorkspace,
	idxFilesFolder,
	idxFilesWorkspace,
	idxCollaboratorsUser,
	idxUsersEmailPrefixes,
}

// Column lists in select order. The JSONL export and import use the same
// lists, so file and table stay aligned.
var (
	userColumns         = []string{"id", "email", "full_name", "avatar_url", "created_at"}
	workspaceColumns    = []string{"id", "title", "workspace_owner", "icon_id", "logo", "banner_url", "created_at", "in_trash", "data"}
	folderColumns       = []string{"id", "workspace_id", "title", "icon_id", "data", "banner_url", "created_at", "in_trash"}
	fileColumns         = []string{"id", "folder_id", "workspace_id", "title", "icon_id", "data", "banner_url", "created_at", "in_trash"}
	collaboratorColumns = []string{"workspace_id", "user_id", "created_at"}
	subscriptionColumns = []string{"id", "user_id", "status", "created_at"}
)

// orderCreated sorts rows without a timestamp first, then by creation time.
const orderCreated = ` ORDER BY (created_at IS NOT NULL), created_at, id`
