package domain

// Actions gated by the authorization policy.
const (
	ActionViewCollections  = "view_collections"
	ActionViewDocuments    = "view_documents"
	ActionCreateDocument   = "create_document"
	ActionEditDocument     = "edit_document"
	ActionDeleteDocument   = "delete_document"
	ActionCreateCollection = "create_collection"
	ActionDropCollection   = "drop_collection"
	ActionExecuteQuery     = "execute_query"
	ActionImportData       = "import_data"
	ActionExportData       = "export_data"
	ActionViewAnalytics    = "view_analytics"
	ActionManageBackups    = "manage_backups"
	ActionManageUsers      = "manage_users"
	ActionManageSettings   = "manage_settings"
	ActionViewSecurityLog  = "view_security_log"
)
