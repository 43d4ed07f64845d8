package store

// Nombres de tablas. Las del host (users, config_plugins) y la del plugin
// compañero (local_o365_objects) no son de este plugin; solo se leen, salvo
// users en el alta de cuentas.
const (
	TableToken      = "auth_classlink_token"
	TableState      = "auth_classlink_state"
	TablePrevLogin  = "auth_classlink_prevlogin"
	TableUsers      = "users"
	TablePlugins    = "config_plugins"
	TableO365Object = "local_o365_objects"
)

// Nombres de plugin en config_plugins.
const (
	PluginClasslink = "auth_classlink"
	PluginO365      = "local_o365"
)
