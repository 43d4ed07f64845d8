// Package logger provee el logger Zap del proceso con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una instancia global inicializada con Init() desde cmd/classlink.
//   - Context Scoping: cada intento de login lleva su propio logger "scoped"
//     (request_id, username) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Los componentes del core reciben *zap.Logger por inyección; el singleton
//     solo es el fallback cuando nadie inyectó uno.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("loginflow.rocreds"))
//	log.Info("token exchange ok", logger.Username(username), logger.ExternalID(uniqid))
package logger
